package experiment

import (
	"strings"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

// deriveOutcome scores a directed interaction from the utterance text and
// the speaker's disposition. Lexical on purpose: cooperation is the share of
// cooperative over competitive cue hits, promise keeping leans on the
// speaker's stated tendency, and information quality is a length-based
// richness proxy.
func (r *Runner) deriveOutcome(speaker *agent.Profile, content string) trust.Outcome {
	lower := strings.ToLower(content)

	var coop, comp int
	for _, w := range r.keywords.Cooperation {
		coop += strings.Count(lower, w)
	}
	for _, w := range r.keywords.Competition {
		comp += strings.Count(lower, w)
	}

	cooperation := 0.5
	if coop+comp > 0 {
		cooperation = float64(coop) / float64(coop+comp)
	}

	quality := float64(len(content)) / 400.0
	if quality > 1 {
		quality = 1
	}

	return trust.Outcome{
		Cooperation: cooperation,
		PromiseKept: speaker.CooperationTendency,
		InfoQuality: quality,
	}
}

// strategyResult converts a trust outcome and an applied trust delta into
// the signals the strategy tracker scores.
func strategyResult(out trust.Outcome, before, after float64) strategy.Result {
	gained := 0.5 + (after-before)*5 // one full learning step spans ~0.1
	if gained < 0 {
		gained = 0
	}
	if gained > 1 {
		gained = 1
	}
	return strategy.Result{
		CooperationSuccess: out.Cooperation,
		CompetitionSuccess: 1 - out.Cooperation,
		TrustGained:        gained,
	}
}

// parseRecipients finds the other agents a reply addresses by name.
func parseRecipients(content string, speaker string, names []string) []string {
	var recipients []string
	for _, name := range names {
		if name == speaker {
			continue
		}
		if strings.Contains(content, name) {
			recipients = append(recipients, name)
		}
	}
	return recipients
}
