package agent

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewProfileValidation(t *testing.T) {
	if _, err := NewProfile("", PersonalityCooperative, StrategyRandom, 0.5, 0.5); err == nil {
		t.Error("empty name should be rejected")
	}
	if _, err := NewProfile("Alice", "chaotic", StrategyRandom, 0.5, 0.5); err == nil {
		t.Error("unknown personality should be rejected")
	}
	if _, err := NewProfile("Alice", PersonalityCooperative, "yolo", 0.5, 0.5); err == nil {
		t.Error("unknown strategy should be rejected")
	}

	p, err := NewProfile("Alice", PersonalityCooperative, StrategyGenerousTitForTat, 0.8, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	if p.Behavior == "" {
		t.Error("behavior description should be populated")
	}
}

func TestSetStrategyRegeneratesBehavior(t *testing.T) {
	p, err := NewProfile("Bob", PersonalityCompetitive, StrategyAdaptive, 0.4, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	before := p.Behavior

	p.SetStrategy(StrategyTitForTat)
	if p.Strategy != StrategyTitForTat {
		t.Errorf("got %q, want tit_for_tat", p.Strategy)
	}
	if p.Behavior == before {
		t.Error("behavior description should change with the strategy")
	}
}

func TestBuildInstructions(t *testing.T) {
	p, err := NewProfile("Alice", PersonalityCooperative, StrategyGenerousTitForTat, 0.8, 0.9)
	if err != nil {
		t.Fatal(err)
	}

	got := BuildInstructions(p, []string{"Bob", "Charlie"})
	for _, want := range []string{
		"named Alice",
		"messages addressed directly to you",
		"Bob, Charlie",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("instructions missing %q", want)
		}
	}
}

func TestRosterOthersSorted(t *testing.T) {
	r := NewRoster(zap.NewNop())
	for _, name := range []string{"Charlie", "Alice", "Bob"} {
		p, err := NewProfile(name, PersonalityCreative, StrategyRandom, 0.5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		r.Register(p)
	}

	got := r.Others("Bob")
	want := []string{"Alice", "Charlie"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestRosterListKeepsRegistrationOrder(t *testing.T) {
	r := NewRoster(zap.NewNop())
	for _, name := range []string{"Charlie", "Alice", "Bob"} {
		p, err := NewProfile(name, PersonalityCreative, StrategyRandom, 0.5, 0.5)
		if err != nil {
			t.Fatal(err)
		}
		r.Register(p)
	}

	names := r.Names()
	want := []string{"Charlie", "Alice", "Bob"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestRosterGetUnknown(t *testing.T) {
	r := NewRoster(zap.NewNop())
	if _, ok := r.Get("Ghost"); ok {
		t.Error("unknown agent should not be found")
	}
}
