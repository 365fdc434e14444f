package service

import (
	"regexp"
	"strings"

	"github.com/uptalk/switchboard/internal/domain/conversation"
)

// Intent names produced by the classifier.
const (
	IntentGreeting     = "greeting"
	IntentFarewell     = "farewell"
	IntentBooking      = "booking"
	IntentCancellation = "cancellation"
	IntentReschedule   = "reschedule"
	IntentHours        = "hours"
	IntentPrices       = "prices"
	IntentServices     = "services"
	IntentLocation     = "location"
	IntentHumanAgent   = "human_agent"
	IntentAffirmation  = "affirmation"
	IntentNegation     = "negation"
	IntentThanks       = "thanks"
	IntentComplaint    = "complaint"
	IntentUnknown      = "unknown"
)

// Entity is a span extracted from a message. Extraction is unordered and
// may emit overlapping matches; the caller disambiguates.
type Entity struct {
	Kind  string `json:"kind"` // "date", "time", "phone", "email", "service"
	Value string `json:"value"`
}

// Classification is the classifier output for one message.
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities,omitempty"`
}

// intentPattern couples an intent name with its ordered match patterns.
type intentPattern struct {
	intent   string
	patterns []*regexp.Regexp
}

const (
	baseConfidence    = 0.5
	spanRatioWeight   = 0.35
	continuityBonus   = 0.1
	flowBonus         = 0.1
	pendingDraftBonus = 0.15
)

// Classifier maps free text to a labeled intent with confidence and
// extracted entities. It is a deterministic pattern matcher; swapping in
// a smarter model only needs the same Classify signature.
type Classifier struct {
	intents  []intentPattern
	entities map[string][]*regexp.Regexp
}

// NewClassifier builds the default Spanish-first pattern tables.
func NewClassifier() *Classifier {
	mk := func(exprs ...string) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(exprs))
		for _, e := range exprs {
			out = append(out, regexp.MustCompile(e))
		}
		return out
	}

	return &Classifier{
		intents: []intentPattern{
			{IntentGreeting, mk(`\b(hola|buenas|buenos d[ií]as|buenas tardes|buenas noches|hey|hello|hi)\b`)},
			{IntentFarewell, mk(`\b(adi[oó]s|hasta luego|hasta pronto|chao|chau|nos vemos|bye)\b`)},
			{IntentHumanAgent, mk(
				`hablar con (un |una |el |la )?(humano|persona|agente|supervisor|encargad[oa]|gerente)`,
				`\b(atenci[oó]n al cliente|quiero un humano|p[aá]same con alguien)\b`,
			)},
			{IntentBooking, mk(
				`\b(reservar?|reserva|cita|agendar|turno|apartar|quiero agendar)\b`,
				`\b(tienen? (hueco|espacio|disponibilidad))\b`,
			)},
			{IntentCancellation, mk(`\b(cancelar?|anular?|cancelar? mi (cita|reserva|turno))\b`)},
			{IntentReschedule, mk(`\b(cambiar|mover|reprogramar|aplazar)\b.*\b(cita|reserva|turno|hora)\b`)},
			{IntentHours, mk(`\b(horarios?|a qu[eé] hora (abren|cierran)|cu[aá]ndo (abren|cierran)|est[aá]n abiertos)\b`)},
			{IntentPrices, mk(`\b(precios?|tarifas?|cu[aá]nto (cuesta|vale|sale|cobran))\b`)},
			{IntentServices, mk(`\b(servicios?|tratamientos?|qu[eé] (hacen|ofrecen))\b`)},
			{IntentLocation, mk(`\b(d[oó]nde (est[aá]n|quedan)|direcci[oó]n|ubicaci[oó]n|c[oó]mo llego)\b`)},
			{IntentComplaint, mk(`\b(queja|reclamo|reclamaci[oó]n|p[eé]sim[oa]|terrible|fatal|indignad[oa])\b`)},
			{IntentThanks, mk(`\b(gracias|muchas gracias|mil gracias|te agradezco)\b`)},
			{IntentAffirmation, mk(`^(s[ií]|claro|vale|ok|okay|perfecto|confirmo|de acuerdo|dale)\b`)},
			{IntentNegation, mk(`^(no|mejor no|todav[ií]a no|a[uú]n no)\b`)},
		},
		entities: map[string][]*regexp.Regexp{
			"date": mk(
				`\b\d{1,2}[/-]\d{1,2}(?:[/-]\d{2,4})?\b`,
				`\b(hoy|mañana|pasado mañana|lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado|domingo)\b`,
			),
			"time": mk(
				`\b\d{1,2}:\d{2}\b`,
				`\b(?:a las? )?\d{1,2}\s*(?:am|pm|hs|horas)\b`,
			),
			"phone": mk(`\+?\d[\d\s.-]{6,14}\d`),
			"email": mk(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`),
			"service": mk(
				`\b(corte|tinte|mechas|peinado|manicura|pedicura|masaje|depilacion|limpieza facial|tratamiento capilar|keratina|uñas)\b`,
			),
		},
	}
}

// punctStripper removes everything except letters (accented included),
// digits, and spaces.
var punctStripper = regexp.MustCompile(`[^\p{L}\p{N}\s@.:+/-]`)

var whitespaceCollapser = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips punctuation (keeping accented letters and
// the separators entity patterns rely on) and collapses whitespace.
func Normalize(text string) string {
	t := strings.ToLower(text)
	t = punctStripper.ReplaceAllString(t, " ")
	t = whitespaceCollapser.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Classify maps a message to its best intent. ctx may be nil.
func (c *Classifier) Classify(text string, ctx *conversation.Context) Classification {
	normalized := Normalize(text)
	if normalized == "" {
		return Classification{Intent: IntentUnknown, Confidence: 0}
	}

	best := Classification{Intent: IntentUnknown, Confidence: 0}
	for _, ip := range c.intents {
		for _, p := range ip.patterns {
			loc := p.FindStringIndex(normalized)
			if loc == nil {
				continue
			}

			span := float64(loc[1]-loc[0]) / float64(len(normalized))
			conf := baseConfidence + spanRatioWeight*span
			if ctx != nil && ctx.CurrentIntent == ip.intent {
				conf += continuityBonus
			}
			conf += contextBoost(ip.intent, ctx)

			if conf > best.Confidence {
				best = Classification{Intent: ip.intent, Confidence: conf}
			}
		}
	}

	best.Confidence = clamp01(best.Confidence)
	best.Entities = c.extractEntities(normalized)
	return best
}

// contextBoost rewards intents that fit the conversation's current flow
// or react to a pending booking draft.
func contextBoost(intent string, ctx *conversation.Context) float64 {
	if ctx == nil {
		return 0
	}

	var boost float64
	if ctx.CurrentFlow != "" && flowMatchesIntent(ctx.CurrentFlow, intent) {
		boost += flowBonus
	}
	if ctx.PendingBooking != nil {
		switch intent {
		case IntentAffirmation, IntentNegation, IntentCancellation:
			boost += pendingDraftBonus
		}
	}
	return boost
}

func flowMatchesIntent(flow, intent string) bool {
	switch flow {
	case "booking":
		return intent == IntentBooking || intent == IntentAffirmation ||
			intent == IntentNegation || intent == IntentCancellation
	case "cancellation":
		return intent == IntentCancellation || intent == IntentAffirmation
	}
	return flow == intent
}

// extractEntities runs every entity table over the text independently.
func (c *Classifier) extractEntities(normalized string) []Entity {
	var out []Entity
	for kind, patterns := range c.entities {
		for _, p := range patterns {
			for _, m := range p.FindAllString(normalized, -1) {
				out = append(out, Entity{Kind: kind, Value: strings.TrimSpace(m)})
			}
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
