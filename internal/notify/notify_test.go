package notify

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeSink struct {
	name string
	sent []string
	err  error
}

func (f *fakeSink) Platform() string { return f.name }
func (f *fakeSink) Send(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, text)
	return nil
}

func TestBroadcasterFansOut(t *testing.T) {
	a := &fakeSink{name: "slack"}
	b := &fakeSink{name: "discord"}
	br := NewBroadcaster(zap.NewNop(), a, b)

	if err := br.Notify(context.Background(), "phase complete"); err != nil {
		t.Fatal(err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("delivery counts: slack %d, discord %d, want 1 each", len(a.sent), len(b.sent))
	}
}

func TestBroadcasterSkipsFailingSink(t *testing.T) {
	bad := &fakeSink{name: "slack", err: errors.New("rate limited")}
	good := &fakeSink{name: "discord"}
	br := NewBroadcaster(zap.NewNop(), bad, good)

	// A failing sink never fails the notification.
	if err := br.Notify(context.Background(), "still delivered"); err != nil {
		t.Fatal(err)
	}
	if len(good.sent) != 1 {
		t.Errorf("good sink got %d messages, want 1", len(good.sent))
	}
}

func TestBroadcasterPlatforms(t *testing.T) {
	br := NewBroadcaster(zap.NewNop(), &fakeSink{name: "slack"})
	got := br.Platforms()
	if len(got) != 1 || got[0] != "slack" {
		t.Errorf("got %v, want [slack]", got)
	}
}
