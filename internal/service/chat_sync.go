package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// Texts of the synthetic messages shown in place of a transcript.
const (
	NoConversationText   = "No conversation is linked to this draft."
	TranscriptFailedText = "The conversation history could not be loaded."
)

// ChatState is a consistent copy of the chat panel.
type ChatState struct {
	Active     *domain.DraftRecord
	Transcript []domain.ChatMessage
	Loading    bool
	Error      string
	Revision   uint64
}

// ChatListener is called after every chat state change with the new revision.
type ChatListener func(revision uint64)

// ChatSync tracks the one conversation open in a session. Responses that
// arrive after the operator switched or closed the conversation are dropped.
type ChatSync struct {
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	operator   string
	now        func() time.Time

	mu         sync.RWMutex
	active     *domain.DraftRecord
	transcript []domain.ChatMessage
	loading    bool
	chatError  string
	generation uint64
	revision   uint64

	listenersMu sync.RWMutex
	listeners   map[uint64]ChatListener
	nextID      uint64

	sends sync.WaitGroup
}

// ChatDependencies bundles collaborators for ChatSync.
type ChatDependencies struct {
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Operator   string
	Clock      func() time.Time
}

// NewChatSync creates a closed chat panel.
func NewChatSync(deps ChatDependencies) *ChatSync {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ChatSync{
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		logger:     logger.With(zap.String("operator", deps.Operator)),
		operator:   deps.Operator,
		now:        clock,
		transcript: []domain.ChatMessage{},
		listeners:  make(map[uint64]ChatListener),
	}
}

// Open makes the record the active conversation and loads its transcript.
// Without a conversation reference no backend call is made. The returned
// error is the fetch failure, already reflected in the transcript.
func (c *ChatSync) Open(ctx context.Context, record domain.DraftRecord) error {
	rec := record.Clone()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.active = &rec
	c.chatError = ""
	if !rec.HasConversation() {
		c.transcript = []domain.ChatMessage{c.systemMessage(NoConversationText)}
		c.loading = false
		rev := c.bump()
		c.mu.Unlock()
		c.notify(rev)
		return nil
	}
	ref := *rec.ConversationRef
	c.transcript = []domain.ChatMessage{}
	c.loading = true
	rev := c.bump()
	c.mu.Unlock()
	c.notify(rev)

	messages, err := c.gateway.FetchTranscript(ctx, ref)

	c.mu.Lock()
	if !c.isCurrent(gen, ref) {
		c.mu.Unlock()
		c.logger.Debug("discarding stale transcript", zap.String("conversation_ref", ref))
		return nil
	}
	c.loading = false
	// The transcript was emptied when loading started, so anything in it now
	// was sent by the operator during the fetch and stays after the history.
	sentDuringLoad := c.transcript
	if err != nil {
		c.transcript = []domain.ChatMessage{c.systemMessage(TranscriptFailedText)}
		c.chatError = apperrors.HumanMessage(err)
	} else {
		c.transcript = make([]domain.ChatMessage, 0, len(messages)+len(sentDuringLoad))
		c.transcript = append(c.transcript, messages...)
	}
	c.transcript = append(c.transcript, sentDuringLoad...)
	rev = c.bump()
	c.mu.Unlock()
	c.notify(rev)

	if err != nil {
		c.logger.Warn("transcript fetch failed", zap.String("conversation_ref", ref), zap.Error(err))
	}
	return err
}

// Close clears the active conversation. In-flight fetches become stale.
func (c *ChatSync) Close() {
	c.mu.Lock()
	c.generation++
	c.active = nil
	c.transcript = []domain.ChatMessage{}
	c.loading = false
	c.chatError = ""
	rev := c.bump()
	c.mu.Unlock()
	c.notify(rev)
}

// SendHumanMessage appends the operator's message to the transcript at once
// and delivers it in the background. Delivery failures are logged and
// recorded in the chat error slot; the message is never removed.
func (c *ChatSync) SendHumanMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperrors.NewValidationError("message text is required", nil)
	}

	c.mu.Lock()
	ref, ok := c.activeRef()
	if !ok {
		c.mu.Unlock()
		return apperrors.NewValidationError("no conversation is linked to the open draft", nil)
	}
	gen := c.generation
	c.transcript = append(c.transcript, domain.ChatMessage{
		Sender:    domain.SenderHumanOperator,
		Text:      text,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
	rev := c.bump()
	c.mu.Unlock()
	c.notify(rev)

	sendCtx := context.WithoutCancel(ctx)
	c.sends.Add(1)
	go func() {
		defer c.sends.Done()
		err := c.gateway.SendChatMessage(sendCtx, ref, text)
		if err != nil {
			c.logger.Warn("chat message not delivered", zap.String("conversation_ref", ref), zap.Error(err))
			c.setErrorIfCurrent(gen, ref, apperrors.HumanMessage(err))
		}
		publishEvent(sendCtx, c.dispatcher, c.logger, c.operator, events.Event{
			Type:    events.EventChatMessageSent,
			Payload: events.ChatPayload{ConversationRef: ref, TextPreview: stringPreview(text, 120)},
		}, err)
	}()
	return nil
}

// ToggleAutomation enables or disables the automated agent for the active conversation.
func (c *ChatSync) ToggleAutomation(ctx context.Context, enabled bool) error {
	c.mu.RLock()
	ref, ok := c.activeRef()
	c.mu.RUnlock()
	if !ok {
		return apperrors.NewValidationError("no conversation is linked to the open draft", nil)
	}

	err := c.gateway.ToggleAutomation(ctx, ref, enabled)
	if err != nil {
		c.logger.Warn("automation toggle failed", zap.String("conversation_ref", ref), zap.Bool("enabled", enabled), zap.Error(err))
	}
	publishEvent(ctx, c.dispatcher, c.logger, c.operator, events.Event{
		Type:    events.EventChatAutomationToggled,
		Payload: events.ChatPayload{ConversationRef: ref, Enabled: &enabled},
	}, err)
	return err
}

// Wait blocks until every background send has finished.
func (c *ChatSync) Wait() {
	c.sends.Wait()
}

// Active returns a copy of the open record.
func (c *ChatSync) Active() (domain.DraftRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return domain.DraftRecord{}, false
	}
	return c.active.Clone(), true
}

// Transcript returns a copy of the current transcript.
func (c *ChatSync) Transcript() []domain.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.ChatMessage{}, c.transcript...)
}

// Loading reports whether a transcript fetch for the active conversation is running.
func (c *ChatSync) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Error returns the chat error slot.
func (c *ChatSync) Error() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.chatError
}

// State copies the whole panel under one lock.
func (c *ChatSync) State() ChatState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state := ChatState{
		Transcript: append([]domain.ChatMessage{}, c.transcript...),
		Loading:    c.loading,
		Error:      c.chatError,
		Revision:   c.revision,
	}
	if c.active != nil {
		rec := c.active.Clone()
		state.Active = &rec
	}
	return state
}

// Revision increases on every chat state change.
func (c *ChatSync) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Subscribe registers a listener and returns a function that removes it.
func (c *ChatSync) Subscribe(fn ChatListener) func() {
	c.listenersMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *ChatSync) setErrorIfCurrent(gen uint64, ref, message string) {
	c.mu.Lock()
	if !c.isCurrent(gen, ref) {
		c.mu.Unlock()
		return
	}
	c.chatError = message
	rev := c.bump()
	c.mu.Unlock()
	c.notify(rev)
}

// isCurrent must be called with mu held.
func (c *ChatSync) isCurrent(gen uint64, ref string) bool {
	if c.generation != gen {
		return false
	}
	current, ok := c.activeRef()
	return ok && current == ref
}

// activeRef must be called with mu held.
func (c *ChatSync) activeRef() (string, bool) {
	if c.active == nil || !c.active.HasConversation() {
		return "", false
	}
	return *c.active.ConversationRef, true
}

// bump must be called with mu held.
func (c *ChatSync) bump() uint64 {
	c.revision++
	return c.revision
}

func (c *ChatSync) systemMessage(text string) domain.ChatMessage {
	return domain.ChatMessage{
		Sender:    domain.SenderAutomatedAgent,
		Text:      text,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	}
}

func (c *ChatSync) notify(revision uint64) {
	c.listenersMu.RLock()
	listeners := make([]ChatListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(revision)
	}
}
