package session

import (
	"strings"
	"testing"
)

func TestNamespaceSanitization(t *testing.T) {
	tests := []struct {
		owner    string
		filename string
		want     string
	}{
		{"u1", "My Report (v2).pdf", "u1_My_Report__v2_"},
		{"u1", "simple.pdf", "u1_simple"},
		{"u2", "simple.pdf", "u2_simple"},
		{"u1", "no-extension", "u1_no_extension"},
		{"u1", "dots.and.spaces here.pdf", "u1_dots_and_spaces_here"},
	}
	for _, tt := range tests {
		if got := Namespace(tt.owner, tt.filename); got != tt.want {
			t.Errorf("Namespace(%q, %q) = %q, want %q", tt.owner, tt.filename, got, tt.want)
		}
	}
}

func TestNamespaceTruncationCollides(t *testing.T) {
	long := strings.Repeat("a", 50)
	first := Namespace("u1", long+"-one.pdf")
	second := Namespace("u1", long+"-two.pdf")
	if first != second {
		t.Fatalf("expected filenames differing only past 50 sanitized chars to collide: %q vs %q", first, second)
	}
	if want := "u1_" + long; first != want {
		t.Fatalf("expected %q, got %q", want, first)
	}
}

func TestManagerActiveLifecycle(t *testing.T) {
	m := NewManager()

	if _, ok := m.Active(); ok {
		t.Fatalf("expected no active namespace on a fresh manager")
	}

	m.SetActive("u1_doc")
	ns, ok := m.Active()
	if !ok || ns != "u1_doc" {
		t.Fatalf("expected active u1_doc, got %q (%v)", ns, ok)
	}

	// Last writer wins.
	m.SetActive("u1_other")
	ns, _ = m.Active()
	if ns != "u1_other" {
		t.Fatalf("expected active u1_other, got %q", ns)
	}

	m.Clear()
	if _, ok := m.Active(); ok {
		t.Fatalf("expected cleared namespace")
	}
}
