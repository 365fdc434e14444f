package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/notifier"
	"github.com/uptalk/switchboard/internal/service"
)

// memStore is a minimal in-memory database.Store for handler tests.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation.Conversation
	messages      []conversation.Message
	contexts      map[string]*conversation.Context
	escalations   map[string]*escalation.Escalation
	nextID        int
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[string]*conversation.Conversation),
		contexts:      make(map[string]*conversation.Context),
		escalations:   make(map[string]*escalation.Escalation),
	}
}

func (m *memStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *memStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) FindActiveConversation(_ context.Context, clientID string, channel conversation.Channel) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conversations {
		if c.ClientID == clientID && c.Channel == channel && c.Status != conversation.StatusClosed {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) CreateConversation(_ context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *c
	created.ID = m.id()
	created.CreatedAt = time.Now()
	m.conversations[created.ID] = &created
	cp := created
	return &cp, nil
}

func (m *memStore) UpdateConversationStatus(_ context.Context, id string, status conversation.Status, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	c.AgentID = agentID
	return nil
}

func (m *memStore) TouchConversation(_ context.Context, id string) error { return nil }

func (m *memStore) CreateMessage(_ context.Context, msg *conversation.Message) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *msg
	created.ID = m.id()
	created.CreatedAt = time.Now()
	m.messages = append(m.messages, created)
	cp := created
	return &cp, nil
}

func (m *memStore) ListMessages(_ context.Context, conversationID string, _ int) ([]conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []conversation.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) GetContext(_ context.Context, conversationID string) (*conversation.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) SaveContext(_ context.Context, c *conversation.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contexts[c.ConversationID] = &cp
	return nil
}

func (m *memStore) SaveEscalation(_ context.Context, e *escalation.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.escalations[e.ID] = &cp
	return nil
}

func (m *memStore) ListEscalations(_ context.Context, _ escalation.Filters, _ int) ([]escalation.Escalation, error) {
	return nil, nil
}

func (m *memStore) GetClient(_ context.Context, id string) (*client.Client, error) {
	return nil, domain.ErrNotFound
}

// testCache is a map-backed cache port implementation.
type testCache struct {
	mu    sync.Mutex
	items map[string][]byte
}

func (c *testCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

type nullSender struct{}

func (nullSender) Channel() conversation.Channel       { return conversation.ChannelWeb }
func (nullSender) Send(context.Context, string, string) error { return nil }

type nullNotifier struct{}

func (nullNotifier) Name() string                              { return "null" }
func (nullNotifier) Send(context.Context, notifier.Event) error { return nil }

func newTestServer(t *testing.T, authCfg config.Auth) (*httptest.Server, *memStore) {
	t.Helper()
	db := newMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Defaults()

	dispatcher := service.NewDispatcher(log, nullNotifier{})
	contexts := service.NewContextStore(&testCache{items: map[string][]byte{}}, db, cfg.Cache)
	registry := service.NewRegistry(db, dispatcher, cfg.Escalation, log)
	outbound := service.NewOutbound(cfg, log, nullSender{})
	takeovers := service.NewTakeoverManager(db, contexts, registry, outbound, dispatcher, cfg.Takeover, log)
	evaluator := service.NewEvaluator(contexts, cfg.Pipeline, log)
	router := service.NewRouter(db, contexts, service.NewClassifier(), evaluator, registry, takeovers, outbound, cfg.Rate, log)

	h := NewHandlers(router, contexts, registry, takeovers, db)
	r := chi.NewRouter()
	MountRoutes(r, h, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }, authCfg)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeResult(t *testing.T, resp *http.Response) domain.Result {
	t.Helper()
	defer resp.Body.Close()
	var res domain.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	return res
}

func TestInboundMessageEndpoint(t *testing.T) {
	srv, db := newTestServer(t, config.Auth{})

	resp := postJSON(t, srv.URL+"/api/v1/messages", conversation.InboundRequest{
		Content: "hola", ClientID: "cl-1", Channel: conversation.ChannelWeb,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	res := decodeResult(t, resp)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Message)
	}

	if len(db.conversations) != 1 {
		t.Errorf("expected one conversation created, got %d", len(db.conversations))
	}
}

func TestInboundMessageValidation(t *testing.T) {
	srv, _ := newTestServer(t, config.Auth{})

	resp := postJSON(t, srv.URL+"/api/v1/messages", conversation.InboundRequest{
		ClientID: "cl-1", Channel: conversation.ChannelWeb,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", resp.StatusCode)
	}
}

func TestEscalationEndpoints(t *testing.T) {
	srv, db := newTestServer(t, config.Auth{})
	conv, _ := db.CreateConversation(context.Background(), &conversation.Conversation{
		ClientID: "cl-1", Channel: conversation.ChannelWeb, Status: conversation.StatusActive,
	})

	// Manual creation from the dashboard.
	resp := postJSON(t, srv.URL+"/api/v1/escalations", map[string]string{
		"conversation_id": conv.ID,
		"client_id":       "cl-1",
		"reason":          "complaint",
		"priority":        "high",
		"summary":         "cliente muy molesto",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var esc escalation.Escalation
	if err := json.NewDecoder(resp.Body).Decode(&esc); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// Shows up in the active queue.
	listResp, err := http.Get(srv.URL + "/api/v1/escalations/active?priority=high")
	if err != nil {
		t.Fatal(err)
	}
	var active []escalation.Escalation
	if err := json.NewDecoder(listResp.Body).Decode(&active); err != nil {
		t.Fatal(err)
	}
	listResp.Body.Close()
	if len(active) != 1 || active[0].ID != esc.ID {
		t.Fatalf("expected the created escalation in the queue, got %+v", active)
	}

	// Assign, then resolve.
	resp = postJSON(t, srv.URL+"/api/v1/escalations/"+esc.ID+"/assign", map[string]string{"agent_id": "agent-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Second assign conflicts.
	resp = postJSON(t, srv.URL+"/api/v1/escalations/"+esc.ID+"/assign", map[string]string{"agent_id": "agent-2"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double assign: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/v1/escalations/"+esc.ID+"/resolve", map[string]string{"agent_id": "agent-1", "notes": "hablado por teléfono"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resp.StatusCode)
	}
	var resolvedOut escalation.Escalation
	if err := json.NewDecoder(resp.Body).Decode(&resolvedOut); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resolvedOut.ResolvedBy != "agent-1" {
		t.Errorf("expected resolver recorded, got %q", resolvedOut.ResolvedBy)
	}

	// Unknown id is a 404.
	resp = postJSON(t, srv.URL+"/api/v1/escalations/nope/assign", map[string]string{"agent_id": "agent-1"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown escalation, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTakeoverEndpoints(t *testing.T) {
	srv, db := newTestServer(t, config.Auth{})
	conv, _ := db.CreateConversation(context.Background(), &conversation.Conversation{
		ClientID: "cl-1", Channel: conversation.ChannelWeb, Status: conversation.StatusActive,
	})
	base := srv.URL + "/api/v1/conversations/" + conv.ID + "/takeover"

	resp := postJSON(t, base, map[string]string{"agent_id": "agent-1"})
	if res := decodeResult(t, resp); !res.Success {
		t.Fatalf("start failed: %q", res.Message)
	}

	// Second agent is rejected with the envelope, HTTP 409.
	resp = postJSON(t, base, map[string]string{"agent_id": "agent-2"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for second agent, got %d", resp.StatusCode)
	}
	if res := decodeResult(t, resp); res.Success {
		t.Error("expected rejected envelope for second agent")
	}

	resp = postJSON(t, base+"/message", map[string]string{"agent_id": "agent-1", "content": "Hola, soy Marta"})
	if res := decodeResult(t, resp); !res.Success {
		t.Errorf("send failed: %q", res.Message)
	}

	resp = postJSON(t, base+"/end", map[string]string{"agent_id": "agent-1", "resolution": "resuelto"})
	if res := decodeResult(t, resp); !res.Success {
		t.Errorf("end failed: %q", res.Message)
	}

	conv2, _ := db.GetConversation(context.Background(), conv.ID)
	if conv2.Status != conversation.StatusActive {
		t.Errorf("expected conversation active after end, got %s", conv2.Status)
	}
}

func TestContextEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, config.Auth{})

	// Run a turn so a context exists.
	resp := postJSON(t, srv.URL+"/api/v1/messages", conversation.InboundRequest{
		Content: "hola", ClientID: "cl-1", Channel: conversation.ChannelWeb,
	})
	res := decodeResult(t, resp)
	data, _ := json.Marshal(res.Data)
	var outcome service.TurnOutcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		t.Fatal(err)
	}

	ctxURL := srv.URL + "/api/v1/conversations/" + outcome.ConversationID + "/context"
	getResp, err := http.Get(ctxURL)
	if err != nil {
		t.Fatal(err)
	}
	var cctx conversation.Context
	if err := json.NewDecoder(getResp.Body).Decode(&cctx); err != nil {
		t.Fatal(err)
	}
	getResp.Body.Close()
	if len(cctx.RecentMessages) != 1 || cctx.CurrentIntent == "" {
		t.Errorf("expected populated context, got %+v", cctx)
	}

	req, _ := http.NewRequest(http.MethodDelete, ctxURL, http.NoBody)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var cleared conversation.Context
	if err := json.NewDecoder(delResp.Body).Decode(&cleared); err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if len(cleared.RecentMessages) != 0 {
		t.Errorf("expected cleared history, got %d messages", len(cleared.RecentMessages))
	}
}

func TestOperatorRoutesRequireAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, config.Auth{Enabled: true, TokenHash: string(hash)})

	resp, err := http.Get(srv.URL + "/api/v1/escalations/active")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/escalations/active", http.NoBody)
	req.Header.Set("Authorization", "Bearer operator-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", resp.StatusCode)
	}

	// The public inbound endpoint stays open.
	resp = postJSON(t, srv.URL+"/api/v1/messages", conversation.InboundRequest{
		Content: "hola", ClientID: "cl-1", Channel: conversation.ChannelWeb,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 on public endpoint, got %d", resp.StatusCode)
	}
}
