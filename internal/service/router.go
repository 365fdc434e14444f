package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/database"
)

const fallbackReply = "Lo siento, estamos teniendo un problema técnico. Un compañero del equipo revisará tu mensaje enseguida."

const rateLimitReply = "Estás enviando mensajes muy rápido. Espera un momento antes de volver a escribir, por favor."

const escalatedReply = "Gracias por tu mensaje. Un compañero del equipo te atenderá en breve."

// responses maps each recognized intent to the automated reply. The
// classifier is pluggable; this table is the whole response layer.
var responses = map[string]string{
	IntentGreeting:     "¡Hola! Soy el asistente del salón. ¿En qué puedo ayudarte?",
	IntentFarewell:     "¡Gracias por escribirnos! Que tengas un buen día.",
	IntentBooking:      "Perfecto, te ayudo con la reserva. ¿Qué día y a qué hora te vendría bien?",
	IntentCancellation: "Entendido, puedo ayudarte a cancelar. ¿Me confirmas el día de tu cita?",
	IntentReschedule:   "Claro, podemos cambiar tu cita. ¿Qué nueva fecha prefieres?",
	IntentHours:        "Abrimos de lunes a viernes de 9:00 a 20:00 y los sábados de 9:00 a 14:00.",
	IntentPrices:       "Te paso nuestra lista de precios. ¿Qué servicio te interesa en concreto?",
	IntentServices:     "Ofrecemos corte, color, peinado, manicura y tratamientos. ¿Cuál te interesa?",
	IntentLocation:     "Estamos en Calle Mayor 12, junto a la plaza. ¿Te paso la ubicación?",
	IntentAffirmation:  "¡Genial! Lo dejo anotado.",
	IntentNegation:     "De acuerdo, no hay problema.",
	IntentThanks:       "¡A ti! ¿Puedo ayudarte con algo más?",
	IntentUnknown:      "No estoy seguro de haberte entendido. ¿Puedes decírmelo de otra forma?",
}

// TurnOutcome is the data payload of a processed turn's Result.
type TurnOutcome struct {
	ConversationID string  `json:"conversation_id"`
	Reply          string  `json:"reply,omitempty"`
	Intent         string  `json:"intent,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Escalated      bool    `json:"escalated"`
	EscalationID   string  `json:"escalation_id,omitempty"`
	AgentHandling  bool    `json:"agent_handling,omitempty"`
}

// Router runs the inbound pipeline: admission, persistence, context,
// classification, evaluation, and either an automated reply or a
// handoff. It is the only component allowed to decide that a turn
// failed; everything unexpected collapses into a fallback reply plus a
// forced escalation so the client never faces silence.
type Router struct {
	db         database.Store
	limiter    *RateLimiter
	contexts   *ContextStore
	classifier *Classifier
	evaluator  *Evaluator
	registry   *Registry
	takeovers  *TakeoverManager
	outbound   *Outbound
	log        *slog.Logger

	now func() time.Time
}

func NewRouter(db database.Store, contexts *ContextStore, classifier *Classifier, evaluator *Evaluator, registry *Registry, takeovers *TakeoverManager, outbound *Outbound, cfg config.Rate, log *slog.Logger) *Router {
	return &Router{
		db:         db,
		limiter:    NewRateLimiter(cfg.MessagesPerWindow, cfg.Window),
		contexts:   contexts,
		classifier: classifier,
		evaluator:  evaluator,
		registry:   registry,
		takeovers:  takeovers,
		outbound:   outbound,
		log:        log.With("service", "router"),
		now:        time.Now,
	}
}

// Limiter exposes the pipeline admission limiter for sweeping.
func (r *Router) Limiter() *RateLimiter { return r.limiter }

// ProcessMessage is the single entry point for every inbound message,
// whatever channel it arrived on. It never returns an error to the
// caller: expected violations come back as rejected Results and
// internal failures as the fallback outcome.
func (r *Router) ProcessMessage(ctx context.Context, req conversation.InboundRequest) (res domain.Result) {
	if req.Content == "" || req.ClientID == "" || !req.Channel.Valid() {
		return domain.RejectedCode(domain.CodeInvalid, "mensaje incompleto: faltan contenido, cliente o canal")
	}

	if !r.limiter.Admit(req.ClientID + ":" + string(req.Channel)) {
		r.log.Warn("inbound throttled", "client_id", req.ClientID, "channel", req.Channel)
		return domain.RejectedCode(domain.CodeThrottled, rateLimitReply)
	}

	conv, err := r.findOrCreateConversation(ctx, req)
	if err != nil {
		r.log.Error("conversation lookup", "client_id", req.ClientID, "error", err)
		return r.fallback(ctx, nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("pipeline panic", "conversation_id", conv.ID, "panic", fmt.Sprint(rec))
			res = r.fallback(ctx, conv)
		}
	}()

	if _, err := r.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: conv.ID,
		Sender:         conversation.SenderClient,
		Content:        req.Content,
		MediaRef:       req.MediaRef,
		Metadata:       req.Metadata,
	}); err != nil {
		r.log.Error("persist inbound message", "conversation_id", conv.ID, "error", err)
		return r.fallback(ctx, conv)
	}

	cctx, err := r.contexts.Get(ctx, conv.ID)
	if err != nil {
		r.log.Error("load context", "conversation_id", conv.ID, "error", err)
		return r.fallback(ctx, conv)
	}

	cls := r.classifier.Classify(req.Content, cctx)

	if _, err := r.contexts.Update(ctx, conv.ID, conversation.ContextUpdate{
		CurrentIntent: &cls.Intent,
		AppendMessages: []conversation.ContextMessage{{
			Sender:    conversation.SenderClient,
			Content:   req.Content,
			Intent:    cls.Intent,
			Timestamp: r.now().UTC(),
		}},
	}); err != nil {
		r.log.Error("update context", "conversation_id", conv.ID, "error", err)
		return r.fallback(ctx, conv)
	}

	// While an agent actively holds the conversation automation stays
	// quiet: the message is recorded and the agent sees it live.
	if r.takeovers.Controlling(conv.ID) {
		return domain.OK("mensaje entregado al agente", &TurnOutcome{
			ConversationID: conv.ID,
			Intent:         cls.Intent,
			Confidence:     cls.Confidence,
			AgentHandling:  true,
		})
	}

	// An escalated conversation waiting for pickup gets a holding reply,
	// not a fresh evaluation.
	if conv.Status == conversation.StatusEscalated {
		r.reply(ctx, conv, escalatedReply)
		outcome := &TurnOutcome{
			ConversationID: conv.ID,
			Reply:          escalatedReply,
			Intent:         cls.Intent,
			Confidence:     cls.Confidence,
			Escalated:      true,
		}
		if esc, err := r.registry.openFor(conv.ID); err == nil {
			outcome.EscalationID = esc.ID
		}
		return domain.OK("conversación en espera de agente", outcome)
	}

	ev := r.evaluator.Evaluate(ctx, EvaluatorInput{
		ConversationID: conv.ID,
		Message:        req.Content,
		Classification: cls,
		Context:        cctx,
		Client:         r.lookupClient(ctx, conv.ClientID),
		Duration:       r.now().Sub(conv.CreatedAt),
	})

	if ev.ShouldEscalate {
		return r.escalate(ctx, conv, cls, ev)
	}

	reply := responses[cls.Intent]
	if reply == "" {
		reply = responses[IntentUnknown]
	}
	r.reply(ctx, conv, reply)

	return domain.OK("mensaje procesado", &TurnOutcome{
		ConversationID: conv.ID,
		Reply:          reply,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
	})
}

func (r *Router) findOrCreateConversation(ctx context.Context, req conversation.InboundRequest) (*conversation.Conversation, error) {
	conv, err := r.db.FindActiveConversation(ctx, req.ClientID, req.Channel)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return r.db.CreateConversation(ctx, &conversation.Conversation{
		ClientID: req.ClientID,
		Channel:  req.Channel,
		Status:   conversation.StatusActive,
	})
}

func (r *Router) escalate(ctx context.Context, conv *conversation.Conversation, cls Classification, ev Evaluation) domain.Result {
	esc, err := r.registry.Create(ctx, escalation.CreateRequest{
		ConversationID: conv.ID,
		ClientID:       conv.ClientID,
		Reason:         ev.Reason,
		Priority:       ev.Priority,
		Summary:        ev.Summary,
	})
	if err != nil {
		r.log.Error("create escalation", "conversation_id", conv.ID, "error", err)
		return r.fallback(ctx, conv)
	}

	r.reply(ctx, conv, escalatedReply)

	r.log.Info("turn escalated",
		"conversation_id", conv.ID, "escalation_id", esc.ID,
		"reason", ev.Reason, "priority", ev.Priority, "score", ev.Score)

	return domain.OK("conversación escalada a un agente", &TurnOutcome{
		ConversationID: conv.ID,
		Reply:          escalatedReply,
		Intent:         cls.Intent,
		Confidence:     cls.Confidence,
		Escalated:      true,
		EscalationID:   esc.ID,
	})
}

// fallback is the outermost safety net: the client gets a generic
// apology and the conversation is forced into the escalation queue so a
// human follows up on whatever broke.
func (r *Router) fallback(ctx context.Context, conv *conversation.Conversation) domain.Result {
	outcome := &TurnOutcome{Reply: fallbackReply}

	if conv != nil {
		outcome.ConversationID = conv.ID
		r.reply(ctx, conv, fallbackReply)
		if esc, err := r.registry.Create(ctx, escalation.CreateRequest{
			ConversationID: conv.ID,
			ClientID:       conv.ClientID,
			Reason:         escalation.ReasonTechnicalIssue,
			Priority:       escalation.PriorityLow,
			Summary:        "Fallo interno al procesar el mensaje del cliente.",
		}); err != nil {
			r.log.Error("forced escalation failed", "conversation_id", conv.ID, "error", err)
		} else {
			outcome.Escalated = true
			outcome.EscalationID = esc.ID
		}
	}

	return domain.Result{Success: false, Code: domain.CodeFallback, Message: fallbackReply, Data: outcome}
}

// reply delivers and records an automated message. Delivery problems
// are logged, never fatal: the reply still travels in the Result
// envelope for synchronous channels.
func (r *Router) reply(ctx context.Context, conv *conversation.Conversation, body string) {
	if err := r.outbound.Deliver(ctx, conv, body); err != nil {
		r.log.Warn("outbound delivery failed", "conversation_id", conv.ID, "error", err)
	}
	if _, err := r.db.CreateMessage(ctx, &conversation.Message{
		ConversationID: conv.ID,
		Sender:         conversation.SenderAutomated,
		Content:        body,
	}); err != nil {
		r.log.Error("persist automated reply", "conversation_id", conv.ID, "error", err)
	}
}

func (r *Router) lookupClient(ctx context.Context, clientID string) *client.Client {
	c, err := r.db.GetClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn("client lookup failed", "client_id", clientID, "error", err)
		}
		return nil
	}
	return c
}
