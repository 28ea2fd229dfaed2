package theme

import (
	"testing"

	"charm.land/lipgloss/v2"
)

func TestProgressBar_Width(t *testing.T) {
	for _, pct := range []int{-5, 0, 37, 100, 140} {
		if w := lipgloss.Width(ProgressBar(pct, 20)); w != 20 {
			t.Errorf("ProgressBar(%d, 20) width = %d, want 20", pct, w)
		}
	}
}

func TestDivider_Width(t *testing.T) {
	if w := lipgloss.Width(Divider(42)); w != 42 {
		t.Errorf("Divider(42) width = %d, want 42", w)
	}
}

func TestPad(t *testing.T) {
	if w := lipgloss.Width(Pad(Correct.Render("pass"), 8)); w != 8 {
		t.Errorf("Pad width = %d, want 8", w)
	}
	if got := Pad("toolong", 3); got != "toolong" {
		t.Errorf("Pad(%q, 3) = %q", "toolong", got)
	}
}
