package service

import (
	"testing"

	"github.com/uptalk/switchboard/internal/domain/conversation"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"¡Hola!", "hola"},
		{"  Buenos   DÍAS  ", "buenos días"},
		{"¿cuánto cuesta?", "cuánto cuesta"},
		{"llama al +34 600-123-456", "llama al +34 600-123-456"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyGreetingFreshConversation(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("hola", nil)

	if got.Intent != IntentGreeting {
		t.Fatalf("expected greeting, got %s", got.Intent)
	}
	if got.Confidence < 0.8 {
		t.Errorf("expected confidence >= 0.8, got %v", got.Confidence)
	}
}

func TestClassifyIntents(t *testing.T) {
	c := NewClassifier()
	tests := []struct {
		text string
		want string
	}{
		{"quiero reservar una cita", IntentBooking},
		{"necesito cancelar mi reserva", IntentCancellation},
		{"¿cuánto cuesta el tinte?", IntentPrices},
		{"¿a qué hora abren?", IntentHours},
		{"quiero hablar con un supervisor", IntentHumanAgent},
		{"gracias", IntentThanks},
		{"adios", IntentFarewell},
		{"zzzz qwerty", IntentUnknown},
	}
	for _, tt := range tests {
		got := c.Classify(tt.text, nil)
		if got.Intent != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got.Intent, tt.want)
		}
	}
}

func TestClassifyUnknownHasZeroConfidence(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("xyzzy plugh", nil)
	if got.Intent != IntentUnknown || got.Confidence != 0 {
		t.Errorf("expected unknown/0, got %s/%v", got.Intent, got.Confidence)
	}
}

func TestClassifyContinuityBonus(t *testing.T) {
	c := NewClassifier()
	text := "quiero reservar para el viernes"

	without := c.Classify(text, nil)
	ctx := conversation.DefaultContext("conv-1")
	ctx.CurrentIntent = IntentBooking
	with := c.Classify(text, ctx)

	if with.Confidence <= without.Confidence {
		t.Errorf("expected continuity bonus: %v <= %v", with.Confidence, without.Confidence)
	}
}

func TestClassifyPendingBookingBoostsAffirmation(t *testing.T) {
	c := NewClassifier()

	without := c.Classify("si", nil)
	ctx := conversation.DefaultContext("conv-1")
	ctx.PendingBooking = &conversation.BookingDraft{Service: "corte"}
	with := c.Classify("si", ctx)

	if with.Intent != IntentAffirmation {
		t.Fatalf("expected affirmation, got %s", with.Intent)
	}
	if with.Confidence <= without.Confidence {
		t.Errorf("expected pending-booking boost: %v <= %v", with.Confidence, without.Confidence)
	}
}

func TestClassifyConfidenceClamped(t *testing.T) {
	c := NewClassifier()
	ctx := conversation.DefaultContext("conv-1")
	ctx.CurrentIntent = IntentAffirmation
	ctx.CurrentFlow = "booking"
	ctx.PendingBooking = &conversation.BookingDraft{Service: "corte"}

	got := c.Classify("si", ctx)
	if got.Confidence > 1 {
		t.Errorf("confidence must be clamped to 1, got %v", got.Confidence)
	}
}

func TestExtractEntities(t *testing.T) {
	c := NewClassifier()
	got := c.Classify("quiero una cita el 12/05 a las 10:30, mi correo es ana@example.com", nil)

	kinds := map[string]bool{}
	for _, e := range got.Entities {
		kinds[e.Kind] = true
	}
	for _, want := range []string{"date", "time", "email"} {
		if !kinds[want] {
			t.Errorf("expected %s entity, got %v", want, got.Entities)
		}
	}
}

func TestExtractEntitiesMayOverlap(t *testing.T) {
	c := NewClassifier()
	// "10:30" is a time; the digits also shape a phone-like span in
	// longer numbers. Overlap is allowed, dedup is the caller's job.
	got := c.Classify("mi numero es 600 123 456 y llego a las 10:30", nil)

	var phone, clock bool
	for _, e := range got.Entities {
		switch e.Kind {
		case "phone":
			phone = true
		case "time":
			clock = true
		}
	}
	if !phone || !clock {
		t.Errorf("expected phone and time entities, got %v", got.Entities)
	}
}
