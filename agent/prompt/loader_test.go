package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	p := LoadPromptSet()
	for name, v := range map[string]string{
		"planner":    p.Planner,
		"finalizer":  p.Finalizer,
		"correction": p.Correction,
		"request":    p.Request,
	} {
		if v == "" {
			t.Fatalf("%s prompt is empty", name)
		}
		if v != strings.TrimSpace(v) {
			t.Fatalf("%s prompt is not trimmed", name)
		}
	}
}

func TestRenderedPromptsEmbedArguments(t *testing.T) {
	t.Parallel()

	p := LoadPromptSet()
	if got := p.DraftRequest(`{"id":"T-1"}`); !strings.Contains(got, `{"id":"T-1"}`) || strings.Contains(got, "%!") {
		t.Fatalf("DraftRequest() = %q", got)
	}
	if got := p.CorrectionFor("similar_claims has 2 items"); !strings.Contains(got, "similar_claims has 2 items") || strings.Contains(got, "%!") {
		t.Fatalf("CorrectionFor() = %q", got)
	}
}
