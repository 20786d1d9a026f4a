package distribution

import (
	"strings"
	"testing"
)

func TestDefaultRenderer(t *testing.T) {
	vars := map[string]string{"subject_type": "lead", "subject_id": "42", "attempt_order": "1"}

	out, err := DefaultRenderer{}.Render("lead_offer", vars)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "lead #42") {
		t.Errorf("out = %q", out)
	}

	// Unknown keys fall back instead of blocking a dispatch.
	out, err = DefaultRenderer{}.Render("unknown_key", vars)
	if err != nil {
		t.Fatalf("Render fallback: %v", err)
	}
	if !strings.Contains(out, "#42") {
		t.Errorf("fallback out = %q", out)
	}
}
