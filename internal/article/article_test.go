package article

import (
	"testing"
	"time"
)

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("https://example.com/story")
	b := Fingerprint("https://example.com/story")
	if a != b {
		t.Errorf("same link produced different fingerprints: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestFingerprintDistinguishesLinks(t *testing.T) {
	if Fingerprint("https://a/x") == Fingerprint("https://b/x") {
		t.Error("different links must not collide")
	}
}

func TestNewWithEmptyLink(t *testing.T) {
	now := time.Now()
	a := New("Council approves budget", "", "", now, "Tribune", "https://tribune.example")
	b := New("Council approves budget", "", "", now, "Tribune", "https://tribune.example")
	c := New("Mill reopens after fire", "", "", now, "Tribune", "https://tribune.example")

	if a.Fingerprint == "" {
		t.Fatal("empty link must still produce a fingerprint")
	}
	if a.Fingerprint != b.Fingerprint {
		t.Error("empty-link fingerprint should be deterministic")
	}
	if a.Fingerprint == c.Fingerprint {
		t.Error("different articles without links should not share a fingerprint")
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  City Council Approves Budget  ", "city council approves budget"},
		{"BREAKING: Fire at Mill", "breaking: fire at mill"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTitle(tt.in); got != tt.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}
	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Errorf("ClampScore(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
