package memory

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestRecordFromTracksPartnerAndPrefix(t *testing.T) {
	m := NewAgentMemory("Alice")

	msg := m.RecordFrom("Bob", "hello there")
	if msg.Role != RolePartner {
		t.Errorf("got role %q, want %q", msg.Role, RolePartner)
	}
	if msg.Content != "[Bob]: hello there" {
		t.Errorf("got content %q, want %q", msg.Content, "[Bob]: hello there")
	}
	if !m.HasPartner("Bob") {
		t.Error("Bob should be a direct partner after delivery")
	}
}

func TestRecordSelfDoesNotAddPartner(t *testing.T) {
	m := NewAgentMemory("Alice")
	m.RecordSelf("thinking out loud")

	if got := len(m.DirectPartners()); got != 0 {
		t.Errorf("got %d partners, want 0", got)
	}
}

func TestContextEmptyReturnsSentinel(t *testing.T) {
	m := NewAgentMemory("Alice")
	if got := m.Context(10); got != NoHistory {
		t.Errorf("got %q, want %q", got, NoHistory)
	}
}

func TestContextLimitsToLastMessages(t *testing.T) {
	m := NewAgentMemory("Alice")
	m.RecordSelf("first")
	m.RecordSelf("second")
	m.RecordSelf("third")

	got := m.Context(2)
	if strings.Contains(got, "first") {
		t.Errorf("context should drop oldest message, got %q", got)
	}
	if !strings.Contains(got, "second") || !strings.Contains(got, "third") {
		t.Errorf("context missing recent messages, got %q", got)
	}
}

func TestRoleContentPairs(t *testing.T) {
	m := NewAgentMemory("Alice")
	m.RecordSelf("my opening")
	m.RecordFrom("Bob", "a reply")

	pairs := m.RoleContentPairs()
	if len(pairs) != 2 {
		t.Fatalf("got %d pairs, want 2", len(pairs))
	}
	if pairs[0].Role != "assistant" || pairs[0].Content != "my opening" {
		t.Errorf("pair 0: got %+v", pairs[0])
	}
	if pairs[1].Role != "user" || pairs[1].Content != "[Bob]: a reply" {
		t.Errorf("pair 1: got %+v", pairs[1])
	}
}

func TestDirectPartnersSorted(t *testing.T) {
	m := NewAgentMemory("Dana")
	m.RecordFrom("Charlie", "hi")
	m.RecordFrom("Alice", "hi")
	m.RecordFrom("Bob", "hi")
	m.RecordFrom("Alice", "again")

	got := m.DirectPartners()
	want := []string{"Alice", "Bob", "Charlie"}
	if len(got) != len(want) {
		t.Fatalf("got %d partners, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("partner %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

// Three agents, one exchange between two of them: the bystander must see
// nothing, and the two participants each see exactly their own view.
func TestRouteIsolation(t *testing.T) {
	arena := NewArena(zap.NewNop())
	arena.Add("Alice")
	arena.Add("Bob")
	arena.Add("Charlie")

	_, errs := arena.Route("Alice", "let's work together", []string{"Bob"})
	if len(errs) != 0 {
		t.Fatalf("unexpected routing errors: %v", errs)
	}

	alice, _ := arena.Get("Alice")
	bob, _ := arena.Get("Bob")
	charlie, _ := arena.Get("Charlie")

	if alice.Len() != 1 {
		t.Errorf("Alice has %d messages, want 1", alice.Len())
	}
	if alice.History()[0].Role != RoleSelf {
		t.Error("Alice's copy should be recorded as self")
	}
	if bob.Len() != 1 {
		t.Errorf("Bob has %d messages, want 1", bob.Len())
	}
	if bob.History()[0].Content != "[Alice]: let's work together" {
		t.Errorf("Bob's copy: got %q", bob.History()[0].Content)
	}
	if charlie.Len() != 0 {
		t.Errorf("Charlie has %d messages, want 0: bystanders must see nothing", charlie.Len())
	}
	if charlie.Context(10) != NoHistory {
		t.Error("Charlie's context should be the no-history sentinel")
	}
}

func TestRouteDeliveredCopiesAreIndependent(t *testing.T) {
	arena := NewArena(zap.NewNop())
	arena.Add("Alice")
	arena.Add("Bob")
	arena.Add("Charlie")

	arena.Route("Alice", "shared announcement", []string{"Bob", "Charlie"})

	bob, _ := arena.Get("Bob")
	charlie, _ := arena.Get("Charlie")
	if bob.History()[0].ID == charlie.History()[0].ID {
		t.Error("each recipient must get an independent message copy")
	}
}

func TestRouteUnknownRecipientSkipped(t *testing.T) {
	arena := NewArena(zap.NewNop())
	arena.Add("Alice")
	arena.Add("Bob")

	_, errs := arena.Route("Alice", "hello", []string{"Ghost", "Bob"})
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	var re *RoutingError
	if !errors.As(errs[0], &re) || re.Recipient != "Ghost" {
		t.Errorf("got error %v, want RoutingError for Ghost", errs[0])
	}

	// Delivery to the known recipient still happened.
	bob, _ := arena.Get("Bob")
	if bob.Len() != 1 {
		t.Errorf("Bob has %d messages, want 1", bob.Len())
	}
}

func TestRouteSkipsSpeakerInRecipients(t *testing.T) {
	arena := NewArena(zap.NewNop())
	arena.Add("Alice")

	arena.Route("Alice", "note to self", []string{"Alice"})

	alice, _ := arena.Get("Alice")
	if alice.Len() != 1 {
		t.Errorf("Alice has %d messages, want 1 (self record only)", alice.Len())
	}
	if alice.HasPartner("Alice") {
		t.Error("an agent must never become its own partner")
	}
}

func TestMemoryReadsDuringRouting(t *testing.T) {
	arena := NewArena(zap.NewNop())
	arena.Add("Alice")
	arena.Add("Bob")

	const turns = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < turns; i++ {
			arena.Route("Alice", "update", []string{"Bob"})
		}
	}()

	bob, _ := arena.Get("Bob")
	for i := 0; i < turns; i++ {
		bob.History()
		bob.Context(5)
		bob.RoleContentPairs()
		bob.DirectPartners()
	}
	<-done

	if bob.Len() != turns {
		t.Errorf("Bob has %d messages, want %d", bob.Len(), turns)
	}
}
