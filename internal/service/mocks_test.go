package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/client"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/domain/escalation"
	"github.com/uptalk/switchboard/internal/port/notifier"
)

// memCache is an in-memory cache.Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// mockStore is an in-memory database.Store for tests.
type mockStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation.Conversation
	messages      []conversation.Message
	contexts      map[string]*conversation.Context
	escalations   map[string]*escalation.Escalation
	clients       map[string]*client.Client
	nextID        int

	failCreateMessage error // injected fault for pipeline fallback tests
}

func newMockStore() *mockStore {
	return &mockStore{
		conversations: make(map[string]*conversation.Conversation),
		contexts:      make(map[string]*conversation.Context),
		escalations:   make(map[string]*escalation.Escalation),
		clients:       make(map[string]*client.Client),
	}
}

func (m *mockStore) id() string {
	m.nextID++
	return fmt.Sprintf("id-%d", m.nextID)
}

func (m *mockStore) GetConversation(_ context.Context, id string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) FindActiveConversation(_ context.Context, clientID string, channel conversation.Channel) (*conversation.Conversation, error) {
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

func (m *mockStore) CreateConversation(_ context.Context, c *conversation.Conversation) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *c
	created.ID = m.id()
	created.Status = conversation.StatusActive
	created.CreatedAt = time.Now()
	created.LastActivity = created.CreatedAt
	m.conversations[created.ID] = &created
	cp := created
	return &cp, nil
}

func (m *mockStore) UpdateConversationStatus(_ context.Context, id string, status conversation.Status, agentID string) error {
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

func (m *mockStore) TouchConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		c.LastActivity = time.Now()
	}
	return nil
}

func (m *mockStore) CreateMessage(_ context.Context, msg *conversation.Message) (*conversation.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateMessage != nil {
		return nil, m.failCreateMessage
	}
	created := *msg
	created.ID = m.id()
	created.CreatedAt = time.Now()
	m.messages = append(m.messages, created)
	cp := created
	return &cp, nil
}

func (m *mockStore) ListMessages(_ context.Context, conversationID string, _ int) ([]conversation.Message, error) {
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

func (m *mockStore) GetContext(_ context.Context, conversationID string) (*conversation.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contexts[conversationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) SaveContext(_ context.Context, c *conversation.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.contexts[c.ConversationID] = &cp
	return nil
}

func (m *mockStore) SaveEscalation(_ context.Context, e *escalation.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.escalations[e.ID] = &cp
	return nil
}

func (m *mockStore) ListEscalations(_ context.Context, _ escalation.Filters, _ int) ([]escalation.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []escalation.Escalation
	for _, e := range m.escalations {
		out = append(out, *e)
	}
	return out, nil
}

func (m *mockStore) GetClient(_ context.Context, id string) (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// mockNotifier records events for assertions.
type mockNotifier struct {
	mu      sync.Mutex
	name    string
	sent    []notifier.Event
	sendErr error
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(_ context.Context, e notifier.Event) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *mockNotifier) events() []notifier.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notifier.Event, len(m.sent))
	copy(out, m.sent)
	return out
}

// mockSender records outbound sends per channel.
type mockSender struct {
	mu      sync.Mutex
	channel conversation.Channel
	sent    []string
	sendErr error
}

func (m *mockSender) Channel() conversation.Channel { return m.channel }

func (m *mockSender) Send(_ context.Context, to, body string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+body)
	return nil
}
