// Package service contains the switchboard application services: the
// message pipeline and the registries behind it.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/uptalk/switchboard/internal/config"
	"github.com/uptalk/switchboard/internal/domain"
	"github.com/uptalk/switchboard/internal/domain/conversation"
	"github.com/uptalk/switchboard/internal/port/cache"
	"github.com/uptalk/switchboard/internal/port/database"
)

// cacheEntry wraps a Context with its last-access timestamp. An entry is
// only valid while now - LastAccess <= session timeout.
type cacheEntry struct {
	Context    *conversation.Context `json:"context"`
	LastAccess time.Time             `json:"last_access"`
}

// ContextStore serves per-conversation Context state from a tiered cache
// with a durable fallback.
//
// Concurrent updates to the same conversation are last-write-wins at the
// merge step: the store serializes read-merge-write within one process,
// but two instances (or two awaited pipeline turns) can still interleave.
// Callers needing strict ordering must serialize per conversation.
type ContextStore struct {
	cache cache.Cache
	db    database.Store
	cfg   config.Cache

	group singleflight.Group
	mu    sync.Mutex // serializes read-merge-write within this process

	// tracked remembers lastAccess per conversation so the sweep can
	// evict expired cache copies without iterating the cache itself.
	trackMu sync.Mutex
	tracked map[string]time.Time

	now func() time.Time // for testing
}

// NewContextStore creates a ContextStore. db may be nil when persistence
// is disabled in config.
func NewContextStore(c cache.Cache, db database.Store, cfg config.Cache) *ContextStore {
	return &ContextStore{
		cache:   c,
		db:      db,
		cfg:     cfg,
		tracked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func contextKey(conversationID string) string {
	return "ctx:" + conversationID
}

// Get returns the Context for a conversation, loading from the durable
// store on cache miss or expiry and synthesizing a default when nothing
// is stored anywhere.
func (s *ContextStore) Get(ctx context.Context, conversationID string) (*conversation.Context, error) {
	if c, ok := s.cached(ctx, conversationID); ok {
		return c, nil
	}

	// Collapse concurrent loads for the same conversation.
	v, err, _ := s.group.Do(conversationID, func() (any, error) {
		return s.load(ctx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*conversation.Context), nil
}

// cached returns a valid cache copy, refreshing its last-access clock.
func (s *ContextStore) cached(ctx context.Context, conversationID string) (*conversation.Context, bool) {
	raw, ok, err := s.cache.Get(ctx, contextKey(conversationID))
	if err != nil {
		slog.Warn("context cache read failed", "conversation_id", conversationID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		slog.Warn("context cache entry corrupt", "conversation_id", conversationID, "error", err)
		_ = s.cache.Delete(ctx, contextKey(conversationID))
		return nil, false
	}

	if s.now().Sub(entry.LastAccess) > s.cfg.SessionTimeout {
		_ = s.cache.Delete(ctx, contextKey(conversationID))
		return nil, false
	}

	s.put(ctx, entry.Context)
	return entry.Context, true
}

// load fetches the durable context or synthesizes a default, then warms
// the cache.
func (s *ContextStore) load(ctx context.Context, conversationID string) (*conversation.Context, error) {
	if s.cfg.Persist && s.db != nil {
		c, err := s.db.GetContext(ctx, conversationID)
		switch {
		case err == nil:
			s.put(ctx, c)
			return c, nil
		case errors.Is(err, domain.ErrNotFound):
			// fall through to default synthesis
		default:
			return nil, fmt.Errorf("load context: %w", err)
		}
	}

	c := conversation.DefaultContext(conversationID)
	s.put(ctx, c)
	return c, nil
}

// Update applies a shallow merge of the partial onto the current
// Context, re-truncates the recent-message window and writes through to
// the durable store before returning.
func (s *ContextStore) Update(ctx context.Context, conversationID string, upd conversation.ContextUpdate) (*conversation.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	merged := s.merge(current, upd)
	s.put(ctx, merged)

	if s.cfg.Persist && s.db != nil {
		if err := s.db.SaveContext(ctx, merged); err != nil {
			return nil, fmt.Errorf("persist context: %w", err)
		}
	}
	return merged, nil
}

// merge applies upd onto base and enforces the recent-message cap
// (newest kept, oldest evicted).
func (s *ContextStore) merge(base *conversation.Context, upd conversation.ContextUpdate) *conversation.Context {
	out := *base
	if upd.CurrentIntent != nil {
		out.CurrentIntent = *upd.CurrentIntent
	}
	if upd.CurrentFlow != nil {
		out.CurrentFlow = *upd.CurrentFlow
	}
	if upd.FlowStep != nil {
		out.FlowStep = *upd.FlowStep
	}
	if upd.PendingBooking != nil {
		out.PendingBooking = *upd.PendingBooking
	}
	if upd.UserPreferences != nil {
		out.UserPreferences = *upd.UserPreferences
	}

	if len(upd.Variables) > 0 {
		vars := make(map[string]any, len(base.Variables)+len(upd.Variables))
		for k, v := range base.Variables {
			vars[k] = v
		}
		for k, v := range upd.Variables {
			vars[k] = v
		}
		out.Variables = vars
	}

	if len(upd.AppendMessages) > 0 {
		msgs := make([]conversation.ContextMessage, 0, len(base.RecentMessages)+len(upd.AppendMessages))
		msgs = append(msgs, base.RecentMessages...)
		msgs = append(msgs, upd.AppendMessages...)
		out.RecentMessages = msgs
	}

	limit := s.cfg.MessageCap
	if limit <= 0 {
		limit = conversation.DefaultRecentMessageCap
	}
	if len(out.RecentMessages) > limit {
		out.RecentMessages = out.RecentMessages[len(out.RecentMessages)-limit:]
	}
	return &out
}

// Clear resets a conversation to the default Context, preserving
// previously set user preferences.
func (s *ContextStore) Clear(ctx context.Context, conversationID string) (*conversation.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs := conversation.DefaultContext("").UserPreferences
	if current, err := s.Get(ctx, conversationID); err == nil {
		prefs = current.UserPreferences
	}

	fresh := conversation.DefaultContext(conversationID)
	fresh.UserPreferences = prefs
	s.put(ctx, fresh)

	if s.cfg.Persist && s.db != nil {
		if err := s.db.SaveContext(ctx, fresh); err != nil {
			return nil, fmt.Errorf("persist cleared context: %w", err)
		}
	}
	return fresh, nil
}

// put refreshes the cache entry and last-access bookkeeping.
func (s *ContextStore) put(ctx context.Context, c *conversation.Context) {
	now := s.now()
	raw, err := json.Marshal(cacheEntry{Context: c, LastAccess: now})
	if err != nil {
		slog.Error("context cache encode failed", "conversation_id", c.ConversationID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, contextKey(c.ConversationID), raw, s.cfg.SessionTimeout); err != nil {
		slog.Warn("context cache write failed", "conversation_id", c.ConversationID, "error", err)
	}
	s.trackMu.Lock()
	s.tracked[c.ConversationID] = now
	s.trackMu.Unlock()
}

// StartSweep evicts expired cache copies every interval. Durable state
// is never touched. Returns a cancel function.
func (s *ContextStore) StartSweep(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
	return cancel
}

func (s *ContextStore) sweep(ctx context.Context) {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()

	now := s.now()
	for id, last := range s.tracked {
		if now.Sub(last) > s.cfg.SessionTimeout {
			_ = s.cache.Delete(ctx, contextKey(id))
			delete(s.tracked, id)
		}
	}
}
