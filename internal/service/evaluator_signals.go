package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// SignalInput is everything a complexity signal may inspect. Signals are
// pure functions so the rule set stays testable in isolation and
// swappable without touching the evaluator orchestration.
type SignalInput struct {
	Message        string // raw inbound text
	Normalized     string
	Classification Classification
	Context        *conversation.Context
	Client         *client.Client // nil when the profile is unavailable
	Duration       time.Duration  // conversation age at this turn
}

// Signal scores one aspect of a turn. Zero points means the signal did
// not fire; a non-empty reason accompanies any positive score.
type Signal func(in SignalInput) (points float64, reason string)

var complexityKeywords = regexp.MustCompile(
	`\b(reembolso|factura|garant[ií]a|seguro|devoluci[oó]n|reclamaci[oó]n|presupuesto|grupo|evento|boda|contrato)\b`)

var urgencyKeywords = regexp.MustCompile(
	`\b(urgente|urgencia|ya mismo|ahora mismo|cuanto antes|inmediatamente|emergencia)\b`)

var timeWindowKeywords = regexp.MustCompile(
	`\b(hoy mismo|esta (mañana|tarde|noche)|antes de las? \d{1,2}|para hoy|este mediod[ií]a)\b`)

var numericToken = regexp.MustCompile(`\b\d[\d:/.-]*\b`)

// inherentlyComplexIntents always add complexity points: these requests
// routinely need judgement calls automation gets wrong.
var inherentlyComplexIntents = map[string]bool{
	IntentReschedule:   true,
	IntentComplaint:    true,
	IntentCancellation: true,
}

// complexitySignals is the full rule set the evaluator folds over, in
// the order reasons should surface in summaries.
func complexitySignals() []Signal {
	return []Signal{
		signalComplexityKeywords,
		signalMessageLength,
		signalQuestionMarks,
		signalNumericTokens,
		signalHistoryVolume,
		signalIntentChanges,
		signalFailedAttempts,
		signalConversationDuration,
		signalPendingBookingNotes,
		signalClientAllergies,
		signalClientLoyalty,
		signalPriorComplaints,
		signalVeryLowConfidence,
		signalComplexIntent,
		signalEntityVolume,
		signalUrgencyLanguage,
		signalTimeWindow,
	}
}

// --- message-content signals ---

func signalComplexityKeywords(in SignalInput) (float64, string) {
	matches := complexityKeywords.FindAllString(in.Normalized, -1)
	if len(matches) == 0 {
		return 0, ""
	}
	points := float64(len(matches)) * 2
	if points > 4 {
		points = 4
	}
	return points, "mensaje menciona temas complejos (" + strings.Join(matches, ", ") + ")"
}

func signalMessageLength(in SignalInput) (float64, string) {
	switch n := len(in.Message); {
	case n > 400:
		return 3, "mensaje muy largo"
	case n > 200:
		return 2, "mensaje largo"
	default:
		return 0, ""
	}
}

func signalQuestionMarks(in SignalInput) (float64, string) {
	if strings.Count(in.Message, "?") > 2 {
		return 1.5, "multiples preguntas en un mensaje"
	}
	return 0, ""
}

func signalNumericTokens(in SignalInput) (float64, string) {
	if len(numericToken.FindAllString(in.Normalized, -1)) >= 3 {
		return 1.5, "muchos datos numericos o fechas"
	}
	return 0, ""
}

// --- conversation-history signals ---

func signalHistoryVolume(in SignalInput) (float64, string) {
	if in.Context == nil {
		return 0, ""
	}
	if n := len(in.Context.RecentMessages); n >= 8 {
		return 2, fmt.Sprintf("conversacion larga (%d mensajes recientes)", n)
	}
	return 0, ""
}

func signalIntentChanges(in SignalInput) (float64, string) {
	if in.Context == nil {
		return 0, ""
	}
	changes := 0
	prev := ""
	for _, m := range in.Context.RecentMessages {
		if m.Intent == "" {
			continue
		}
		if prev != "" && m.Intent != prev {
			changes++
		}
		prev = m.Intent
	}
	if changes >= 3 {
		return 2, "el cliente cambia de tema repetidamente"
	}
	return 0, ""
}

func signalFailedAttempts(in SignalInput) (float64, string) {
	if in.Context == nil {
		return 0, ""
	}
	n := in.Context.IntVar(varFailedAttempts)
	if n == 0 {
		return 0, ""
	}
	return float64(n), fmt.Sprintf("%d intentos sin entender al cliente", n)
}

func signalConversationDuration(in SignalInput) (float64, string) {
	if in.Duration > 30*time.Minute {
		return 2, "conversacion de mas de 30 minutos"
	}
	return 0, ""
}

func signalPendingBookingNotes(in SignalInput) (float64, string) {
	if in.Context != nil && in.Context.PendingBooking != nil && in.Context.PendingBooking.Notes != "" {
		return 1, "reserva pendiente con notas especiales"
	}
	return 0, ""
}

// --- client-behaviour signals ---

func signalClientAllergies(in SignalInput) (float64, string) {
	if in.Client != nil && len(in.Client.Allergies) > 0 {
		return 2, "cliente con alergias registradas"
	}
	return 0, ""
}

func signalClientLoyalty(in SignalInput) (float64, string) {
	if in.Client != nil && in.Client.LoyaltyTier == client.TierVIP {
		return 1, "cliente VIP"
	}
	return 0, ""
}

func signalPriorComplaints(in SignalInput) (float64, string) {
	if in.Client == nil || in.Client.PriorComplaints == 0 {
		return 0, ""
	}
	points := float64(in.Client.PriorComplaints)
	if points > 3 {
		points = 3
	}
	return points, "cliente con quejas anteriores"
}

// --- intent signals ---

func signalVeryLowConfidence(in SignalInput) (float64, string) {
	if in.Classification.Confidence < 0.3 {
		return 2, "intencion del mensaje poco clara"
	}
	return 0, ""
}

func signalComplexIntent(in SignalInput) (float64, string) {
	if inherentlyComplexIntents[in.Classification.Intent] {
		return 2, "solicitud de tipo complejo (" + in.Classification.Intent + ")"
	}
	return 0, ""
}

func signalEntityVolume(in SignalInput) (float64, string) {
	if len(in.Classification.Entities) >= 3 {
		return 1.5, "solicitud con muchos detalles concretos"
	}
	return 0, ""
}

// --- temporal signals ---

func signalUrgencyLanguage(in SignalInput) (float64, string) {
	if urgencyKeywords.MatchString(in.Normalized) {
		return 2, "lenguaje de urgencia"
	}
	return 0, ""
}

func signalTimeWindow(in SignalInput) (float64, string) {
	if timeWindowKeywords.MatchString(in.Normalized) {
		return 1.5, "plazo de tiempo explicito"
	}
	return 0, ""
}
