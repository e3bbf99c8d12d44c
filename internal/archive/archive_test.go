package archive

import (
	"strings"
	"testing"

	"github.com/nidhogg/emergence/internal/knowledge"
)

func TestSummarize(t *testing.T) {
	result := &knowledge.Result{
		Topic: "resource sharing",
		ConceptGroups: []knowledge.ConceptGroup{
			{Representative: "trust grows through repeated cooperation"},
			{Representative: "shared strategy beats isolation"},
		},
		Synergies: []knowledge.Synergy{
			{Pair: [2]string{"cooperative", "creative"}, Agents: []string{"Alice", "Charlie"}},
		},
	}

	got := summarize(result)

	if !strings.HasPrefix(got, "resource sharing") {
		t.Errorf("summary does not start with topic: %q", got)
	}
	for _, want := range []string{
		"trust grows through repeated cooperation",
		"shared strategy beats isolation",
		"synergy: cooperative+creative",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q: %q", want, got)
		}
	}
}

func TestSummarizeNoGroupsOrSynergies(t *testing.T) {
	result := &knowledge.Result{Topic: "cold start"}
	if got := summarize(result); got != "cold start" {
		t.Errorf("got %q, want topic only", got)
	}
}
