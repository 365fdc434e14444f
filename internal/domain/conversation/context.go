package conversation

import "time"

// DefaultRecentMessageCap bounds the recent-message window kept in a
// Context when no explicit cap is configured.
const DefaultRecentMessageCap = 10

// ContextMessage is the trimmed message view kept in the recent-message
// window of a Context.
type ContextMessage struct {
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingDraft is an in-progress booking accumulated across turns.
type BookingDraft struct {
	Service   string `json:"service,omitempty"`
	Date      string `json:"date,omitempty"`
	Time      string `json:"time,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Confirmed bool   `json:"confirmed"`
}

// Preferences holds per-client conversation preferences.
type Preferences struct {
	Language     string  `json:"language,omitempty"`
	Reminders    bool    `json:"reminders"`
	PreferredVia Channel `json:"preferred_via,omitempty"`
}

// Context is the mutable per-conversation state consulted and updated on
// every turn. It is owned exclusively by its Conversation and must only
// be mutated through the context store, which enforces the
// recent-message cap and persistence.
type Context struct {
	ConversationID  string           `json:"conversation_id"`
	CurrentIntent   string           `json:"current_intent,omitempty"`
	CurrentFlow     string           `json:"current_flow,omitempty"`
	FlowStep        int              `json:"flow_step"`
	PendingBooking  *BookingDraft    `json:"pending_booking,omitempty"`
	RecentMessages  []ContextMessage `json:"recent_messages"`
	Variables       map[string]any   `json:"variables"`
	UserPreferences Preferences      `json:"user_preferences"`
}

// DefaultContext synthesizes an empty Context for a conversation with no
// stored state.
func DefaultContext(conversationID string) *Context {
	return &Context{
		ConversationID: conversationID,
		RecentMessages: []ContextMessage{},
		Variables:      map[string]any{},
		UserPreferences: Preferences{
			Language: "es",
		},
	}
}

// ContextUpdate is a partial Context applied as a shallow merge. Nil
// fields leave the current value untouched; non-nil fields replace it.
type ContextUpdate struct {
	CurrentIntent   *string
	CurrentFlow     *string
	FlowStep        *int
	PendingBooking  **BookingDraft // set to &nil to clear the draft
	AppendMessages  []ContextMessage
	Variables       map[string]any // merged key-by-key, not replaced wholesale
	UserPreferences *Preferences
}

// IntVar reads an integer counter from the Variables map, tolerating the
// float64 shape JSON round-trips produce.
func (c *Context) IntVar(key string) int {
	switch v := c.Variables[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
