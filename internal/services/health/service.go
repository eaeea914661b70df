package health

// Service encapsulates health-related checks.
type Service struct {
	environment string
}

// NewService constructs a new health service.
func NewService(environment string) *Service {
	return &Service{environment: environment}
}

// Status returns a simple health payload.
func (s *Service) Status() map[string]string {
	return map[string]string{
		"status":      "healthy",
		"environment": s.environment,
	}
}
