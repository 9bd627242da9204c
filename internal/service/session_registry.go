package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	"github.com/reviewdesk/draft-review-console/internal/store"
)

// Session is the independent review state of one operator.
type Session struct {
	Operator string
	Store    *store.DraftStore
	Pipeline *ActionPipeline
	Chat     *ChatSync

	initialLoad sync.Once
}

// Revision combines the draft and chat revisions so one number changes whenever either does.
func (s *Session) Revision() uint64 {
	return s.Store.Revision() + s.Chat.Revision()
}

// SessionRegistry creates sessions lazily and shares the gateway and dispatcher between them.
type SessionRegistry struct {
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	clock      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// RegistryDependencies bundles collaborators for the registry.
type RegistryDependencies struct {
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(deps RegistryDependencies) *SessionRegistry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRegistry{
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		clock:      deps.Clock,
		sessions:   make(map[string]*Session),
	}
}

// Get returns the operator's session, creating it and loading the drafts on
// first access. A failed initial load is kept in the store's error slot.
func (r *SessionRegistry) Get(ctx context.Context, operator string) *Session {
	r.mu.Lock()
	session, ok := r.sessions[operator]
	if !ok {
		session = r.newSession(operator)
		r.sessions[operator] = session
	}
	r.mu.Unlock()

	// Concurrent first requests of the same operator wait for one initial load.
	session.initialLoad.Do(func() {
		if err := session.Pipeline.Refresh(ctx); err != nil {
			r.logger.Warn("initial draft load failed", zap.String("operator", operator), zap.Error(err))
		}
	})
	return session
}

// Lookup returns an existing session without creating one.
func (r *SessionRegistry) Lookup(operator string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[operator]
	return session, ok
}

// Operators lists operators with a live session.
func (r *SessionRegistry) Operators() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Shutdown waits for background chat sends of every session.
func (r *SessionRegistry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Chat.Wait()
	}
}

func (r *SessionRegistry) newSession(operator string) *Session {
	drafts := store.New()
	return &Session{
		Operator: operator,
		Store:    drafts,
		Pipeline: NewActionPipeline(PipelineDependencies{
			Store:      drafts,
			Gateway:    r.gateway,
			Dispatcher: r.dispatcher,
			Logger:     r.logger,
			Operator:   operator,
			Clock:      r.clock,
		}),
		Chat: NewChatSync(ChatDependencies{
			Gateway:    r.gateway,
			Dispatcher: r.dispatcher,
			Logger:     r.logger,
			Operator:   operator,
			Clock:      r.clock,
		}),
	}
}
