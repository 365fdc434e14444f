package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
)

// varFailedAttempts is the context variable holding the count of
// consecutive turns the classifier could not understand.
const varFailedAttempts = "failedAttempts"

const maxSummaryLen = 200

// Evaluation is the outcome of scoring one turn. When ShouldEscalate is
// false the remaining escalation fields are zero.
type Evaluation struct {
	ShouldEscalate bool
	Reason         escalation.Reason
	Priority       escalation.Priority
	Summary        string
	Score          float64
	Reasons        []string
	Confidence     float64 // how sure the analysis itself is, in [0.3, 0.9]
}

// EvaluatorInput carries one turn plus whatever surrounding state was
// available. Context and Client may be nil; the signals degrade
// gracefully without them.
type EvaluatorInput struct {
	ConversationID string
	Message        string
	Classification Classification
	Context        *conversation.Context
	Client         *client.Client
	Duration       time.Duration
}

var complaintKeywords = regexp.MustCompile(
	`\b(queja|reclamar|reclamaci[oó]n|indignad[oa]|fatal|p[eé]simo|horrible|desastre|inaceptable|denunciar?)\b`)

var humanRequestKeywords = regexp.MustCompile(
	`\b(hablar con (una? )?(persona|humano|supervisora?|encargad[oa]|gerente)|atenci[oó]n humana|una persona real)\b`)

var paymentKeywords = regexp.MustCompile(
	`\b(cobro|cobrado|cobraron|pago|pagu[eé]|tarjeta|reembolso|me han cobrado|doble cargo|cargo duplicado)\b`)

var medicalKeywords = regexp.MustCompile(
	`\b(reacci[oó]n al[eé]rgica|alergia grave|emergencia|urgencias|sangra(ndo|do)?|quemadura|dolor (fuerte|intenso)|marea(da|do)|desmay)`)

// Evaluator decides whether a turn needs a human. Short-circuit checks
// catch the cases that must never wait on a score; everything else folds
// the complexity signal set and compares against configured thresholds.
type Evaluator struct {
	contexts *ContextStore
	cfg      config.Pipeline
	signals  []Signal
	log      *slog.Logger
}

func NewEvaluator(contexts *ContextStore, cfg config.Pipeline, log *slog.Logger) *Evaluator {
	return &Evaluator{
		contexts: contexts,
		cfg:      cfg,
		signals:  complexitySignals(),
		log:      log.With("service", "evaluator"),
	}
}

// Evaluate never returns an error: any internal failure degrades to a
// technical-issue escalation so a broken analyzer cannot strand a client.
func (e *Evaluator) Evaluate(ctx context.Context, in EvaluatorInput) (ev Evaluation) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("evaluator panic", "conversation_id", in.ConversationID, "panic", fmt.Sprint(r))
			ev = e.technicalFallback(in)
		}
	}()

	normalized := Normalize(in.Message)

	attempts, err := e.trackFailedAttempts(ctx, in)
	if err != nil {
		e.log.Error("failed attempt tracking", "conversation_id", in.ConversationID, "error", err)
		return e.technicalFallback(in)
	}

	// Checks that bypass scoring entirely, most severe first.
	if complaintKeywords.MatchString(normalized) || in.Classification.Intent == IntentComplaint {
		return e.direct(in, escalation.ReasonComplaint, escalation.PriorityHigh,
			"el cliente expresa una queja")
	}
	if paymentKeywords.MatchString(normalized) {
		return e.direct(in, escalation.ReasonPaymentIssue, escalation.PriorityHigh,
			"posible problema de cobro o pago")
	}
	if in.Classification.Intent == IntentHumanAgent || humanRequestKeywords.MatchString(normalized) {
		return e.direct(in, escalation.ReasonClientRequest, escalation.PriorityLow,
			"el cliente pide hablar con una persona")
	}
	if attempts >= e.cfg.FailedAttemptLimit {
		return e.direct(in, escalation.ReasonRepeatedFailure, escalation.PriorityMedium,
			fmt.Sprintf("%d turnos seguidos sin entender al cliente", attempts))
	}

	score, reasons := e.fold(SignalInput{
		Message:        in.Message,
		Normalized:     normalized,
		Classification: in.Classification,
		Context:        in.Context,
		Client:         in.Client,
		Duration:       in.Duration,
	})

	medical := medicalKeywords.MatchString(normalized)

	ev = Evaluation{
		Score:      score,
		Reasons:    reasons,
		Confidence: analysisConfidence(score, len(reasons)),
	}

	switch {
	case medical:
		ev.ShouldEscalate = true
		ev.Reason = escalation.ReasonComplexRequest
		ev.Priority = escalation.PriorityUrgent
		ev.Reasons = append([]string{"posible urgencia medica"}, reasons...)
	case score >= e.cfg.ComplexityHigh:
		ev.ShouldEscalate = true
		ev.Reason = escalation.ReasonComplexRequest
		ev.Priority = escalation.PriorityHigh
	case score >= e.cfg.ComplexityMedium:
		ev.ShouldEscalate = true
		ev.Reason = escalation.ReasonComplexRequest
		ev.Priority = escalation.PriorityMedium
	default:
		return ev
	}
	ev.Summary = buildSummary(in.Message, ev.Reasons)
	return ev
}

// trackFailedAttempts bumps the consecutive not-understood counter when
// confidence falls below the threshold and resets it otherwise. The
// counter lives in context variables so it survives cache eviction.
func (e *Evaluator) trackFailedAttempts(ctx context.Context, in EvaluatorInput) (int, error) {
	understood := in.Classification.Confidence >= e.cfg.ConfidenceThreshold &&
		in.Classification.Intent != IntentUnknown
	if understood {
		if in.Context != nil && in.Context.IntVar(varFailedAttempts) > 0 {
			_, err := e.contexts.Update(ctx, in.ConversationID, conversation.ContextUpdate{
				Variables: map[string]any{varFailedAttempts: 0},
			})
			if err != nil {
				return 0, err
			}
		}
		return 0, nil
	}

	attempts := 1
	if in.Context != nil {
		attempts = in.Context.IntVar(varFailedAttempts) + 1
	}
	_, err := e.contexts.Update(ctx, in.ConversationID, conversation.ContextUpdate{
		Variables: map[string]any{varFailedAttempts: attempts},
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (e *Evaluator) fold(in SignalInput) (float64, []string) {
	var score float64
	var reasons []string
	for _, sig := range e.signals {
		points, reason := sig(in)
		if points <= 0 {
			continue
		}
		score += points
		reasons = append(reasons, reason)
	}
	return score, reasons
}

// direct builds an evaluation for the short-circuit paths where the
// reason and priority are fixed and no score fold is needed.
func (e *Evaluator) direct(in EvaluatorInput, reason escalation.Reason, prio escalation.Priority, why string) Evaluation {
	reasons := []string{why}
	return Evaluation{
		ShouldEscalate: true,
		Reason:         reason,
		Priority:       prio,
		Summary:        buildSummary(in.Message, reasons),
		Reasons:        reasons,
		Confidence:     0.9,
	}
}

func (e *Evaluator) technicalFallback(in EvaluatorInput) Evaluation {
	reasons := []string{"fallo interno al analizar el mensaje"}
	return Evaluation{
		ShouldEscalate: true,
		Reason:         escalation.ReasonTechnicalIssue,
		Priority:       escalation.PriorityLow,
		Summary:        buildSummary(in.Message, reasons),
		Reasons:        reasons,
		Confidence:     0.3,
	}
}

// buildSummary condenses the client's words plus the strongest reasons
// into a note an agent can scan before taking the conversation.
func buildSummary(message string, reasons []string) string {
	excerpt := strings.TrimSpace(message)
	if r := []rune(excerpt); len(r) > 80 {
		excerpt = string(r[:77]) + "..."
	}
	top := reasons
	if len(top) > 3 {
		sorted := make([]string, len(reasons))
		copy(sorted, reasons)
		sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
		top = sorted[:3]
	}
	s := fmt.Sprintf("Cliente: %q. Motivos: %s.", excerpt, strings.Join(top, "; "))
	if r := []rune(s); len(r) > maxSummaryLen {
		s = string(r[:maxSummaryLen-3]) + "..."
	}
	return s
}

// analysisConfidence maps score mass and reason count into [0.3, 0.9]:
// more independent signals agreeing means a more trustworthy verdict.
func analysisConfidence(score float64, reasonCount int) float64 {
	c := 0.3 + score*0.03 + float64(reasonCount)*0.05
	if c > 0.9 {
		return 0.9
	}
	if c < 0.3 {
		return 0.3
	}
	return c
}
