package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/notifier"
)

func TestDispatchFansOutToAllNotifiers(t *testing.T) {
	a := &mockNotifier{name: "a"}
	b := &mockNotifier{name: "b"}
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), a, b)

	d.Dispatch(context.Background(), notifier.Event{
		Kind:     notifier.EventSystemAlert,
		Priority: escalation.PriorityMedium,
		Title:    "aviso",
	})

	if len(a.events()) != 1 || len(b.events()) != 1 {
		t.Fatalf("expected delivery to both notifiers, got %d and %d", len(a.events()), len(b.events()))
	}
	if got := a.events()[0].ExpirySeconds; got != 300 {
		t.Errorf("expected medium priority expiry hint 300, got %d", got)
	}
}

func TestDispatchSurvivesFailingNotifier(t *testing.T) {
	bad := &mockNotifier{name: "bad", sendErr: errors.New("socket closed")}
	good := &mockNotifier{name: "good"}
	d := NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)), bad, good)

	d.Dispatch(context.Background(), notifier.Event{
		Kind:     notifier.EventEscalationCreated,
		Priority: escalation.PriorityUrgent,
		Title:    "urgente",
	})

	if len(good.events()) != 1 {
		t.Fatalf("expected healthy notifier to receive the event, got %d", len(good.events()))
	}
	if got := good.events()[0].ExpirySeconds; got != 0 {
		t.Errorf("urgent events must not auto-expire, got %d", got)
	}
}

func TestExpiryHintLowPriority(t *testing.T) {
	if got := expiryHint(escalation.PriorityLow); got != 60 {
		t.Errorf("expected 60, got %d", got)
	}
}
