package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	"github.com/reviewdesk/draft-review-console/internal/store"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// ActionPipeline turns operator commands into an immediate local mutation, a
// backend call and a reconciliation step. Optimistic changes are never rolled
// back: a failed call only fills the store's error slot.
type ActionPipeline struct {
	store      *store.DraftStore
	gateway    gateway.Gateway
	dispatcher events.Dispatcher
	logger     *zap.Logger
	operator   string
	now        func() time.Time

	refreshMu sync.Mutex
	refreshes int
}

// PipelineDependencies bundles collaborators for the pipeline.
type PipelineDependencies struct {
	Store      *store.DraftStore
	Gateway    gateway.Gateway
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Operator   string
	Clock      func() time.Time
}

// NewActionPipeline constructs the pipeline.
func NewActionPipeline(deps PipelineDependencies) *ActionPipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &ActionPipeline{
		store:      deps.Store,
		gateway:    deps.Gateway,
		dispatcher: deps.Dispatcher,
		logger:     logger.With(zap.String("operator", deps.Operator)),
		operator:   deps.Operator,
		now:        clock,
	}
}

// Store exposes the state container the pipeline mutates.
func (p *ActionPipeline) Store() *store.DraftStore {
	return p.store
}

// Refresh replaces the collection with the backend's. A malformed response
// empties the collection; transport failures keep the current one.
func (p *ActionPipeline) Refresh(ctx context.Context) error {
	p.beginRefresh()
	defer p.endRefresh()
	p.store.ClearError()

	records, err := p.gateway.FetchDrafts(ctx)
	if err != nil {
		if apperrors.IsFormatError(err) {
			p.store.ReplaceAll(nil)
		}
		p.store.SetError(apperrors.HumanMessage(err))
		p.logger.Warn("refresh failed", zap.Error(err))
		p.publishEvent(ctx, events.Event{Type: events.EventDraftsRefreshed}, err)
		return err
	}

	p.store.ReplaceAll(records)
	p.publishEvent(ctx, events.Event{
		Type:    events.EventDraftsRefreshed,
		Payload: events.RefreshPayload{Count: len(records)},
	}, nil)
	return nil
}

// beginRefresh and endRefresh keep the loading flag raised until the last of
// several overlapping refreshes has finished.
func (p *ActionPipeline) beginRefresh() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	p.refreshes++
	p.store.SetLoading(true)
}

func (p *ActionPipeline) endRefresh() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	p.refreshes--
	if p.refreshes == 0 {
		p.store.SetLoading(false)
	}
}

// Approve marks the draft approved locally, then submits the decision with the
// final message and reconciles with a full refresh.
func (p *ActionPipeline) Approve(ctx context.Context, id, finalMessage string) error {
	return p.decide(ctx, id, domain.ReviewActionApprove, &finalMessage)
}

// Reject marks the draft rejected locally, then submits the decision.
func (p *ActionPipeline) Reject(ctx context.Context, id string) error {
	return p.decide(ctx, id, domain.ReviewActionReject, nil)
}

func (p *ActionPipeline) decide(ctx context.Context, id string, action domain.ReviewAction, finalMessage *string) error {
	status, op, eventType := domain.DraftStatusApproved, domain.OperationApprove, events.EventDraftApproved
	if action == domain.ReviewActionReject {
		status, op, eventType = domain.DraftStatusRejected, domain.OperationReject, events.EventDraftRejected
	}

	if current, ok := p.store.Get(id); ok && !current.IsPending() {
		return apperrors.NewConflict("draft already processed", map[string]any{"id": id, "status": current.Status})
	}

	// A missing id means a refresh removed the record; the server still decides.
	now := p.now()
	p.store.UpsertField(id, domain.DraftPatch{Status: &status, ProcessedAt: &now})
	p.store.SetInFlight(id, op, true)
	defer p.store.SetInFlight(id, op, false)

	event := events.Event{
		Type:    eventType,
		DraftID: id,
		Payload: events.DecisionPayload{Status: status, FinalMessage: finalMessage},
	}
	if err := p.gateway.SubmitAction(ctx, id, action, finalMessage); err != nil {
		p.store.SetError(apperrors.HumanMessage(err))
		p.logger.Warn("decision not confirmed", zap.String("draft_id", id), zap.String("action", string(action)), zap.Error(err))
		p.publishEvent(ctx, event, err)
		return err
	}
	p.publishEvent(ctx, event, nil)

	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("reconciliation refresh failed", zap.String("draft_id", id), zap.Error(err))
	}
	return nil
}

// UpdateDraftContent edits the draft message locally. Unknown ids are ignored.
func (p *ActionPipeline) UpdateDraftContent(ctx context.Context, id, message string) error {
	current, ok := p.store.Get(id)
	if !ok {
		return nil
	}
	if !current.IsPending() {
		return apperrors.NewConflict("only pending drafts can be edited", map[string]any{"id": id})
	}
	p.store.UpsertField(id, domain.DraftPatch{DraftMessage: &message})
	p.publishEvent(ctx, events.Event{
		Type:    events.EventDraftEdited,
		DraftID: id,
		Payload: events.EditPayload{MessagePreview: stringPreview(message, 120)},
	}, nil)
	return nil
}

// Regenerate asks the backend for new content for one field of a pending
// draft. The (draft, target) flag is raised for the duration of the call.
func (p *ActionPipeline) Regenerate(ctx context.Context, id string, target domain.RegenerationTarget) (string, error) {
	if !target.Valid() {
		return "", apperrors.NewValidationError("target must be CONTEXT or MESSAGE", map[string]any{"target": target})
	}
	current, ok := p.store.Get(id)
	if !ok {
		return "", apperrors.NewNotFound("draft", map[string]any{"id": id})
	}
	if !current.IsPending() {
		return "", apperrors.NewConflict("only pending drafts can be regenerated", map[string]any{"id": id})
	}

	op := domain.OperationForTarget(target)
	p.store.SetInFlight(id, op, true)
	defer p.store.SetInFlight(id, op, false)

	event := events.Event{
		Type:    events.EventDraftRegenerated,
		DraftID: id,
		Payload: events.RegenerationPayload{Target: target},
	}
	result, err := p.gateway.SubmitRegeneration(ctx, gateway.RegenerationRequest{
		ID:              id,
		Target:          target,
		ContextSnapshot: current.ContextSummary,
		CustomerName:    current.CustomerName,
	})
	if err != nil {
		p.store.SetError(apperrors.HumanMessage(err))
		p.logger.Warn("regeneration failed", zap.String("draft_id", id), zap.String("target", string(target)), zap.Error(err))
		p.publishEvent(ctx, event, err)
		return "", err
	}

	if latest, ok := p.store.Get(id); ok && latest.IsPending() {
		patch := domain.DraftPatch{DraftMessage: &result.NewContent}
		if target == domain.RegenerateContext {
			patch = domain.DraftPatch{ContextSummary: &result.NewContent}
		}
		p.store.UpsertField(id, patch)
	} else {
		p.logger.Info("regenerated content discarded", zap.String("draft_id", id))
	}
	p.publishEvent(ctx, event, nil)
	return result.NewContent, nil
}

// RegeneratingContext reports whether the context summary of the draft is being regenerated.
func (p *ActionPipeline) RegeneratingContext(id string) bool {
	return p.store.InFlight(id, domain.OperationRegenerateContext)
}

// RegeneratingMessage reports whether the draft message is being regenerated.
func (p *ActionPipeline) RegeneratingMessage(id string) bool {
	return p.store.InFlight(id, domain.OperationRegenerateMessage)
}

// Busy reports whether any command is in flight for the draft.
func (p *ActionPipeline) Busy(id string) bool {
	return p.store.AnyInFlight(id)
}

func (p *ActionPipeline) publishEvent(ctx context.Context, event events.Event, cause error) {
	publishEvent(ctx, p.dispatcher, p.logger, p.operator, event, cause)
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, operator string, event events.Event, cause error) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.Operator = operator
	switch {
	case cause != nil:
		event.Outcome = events.OutcomeFailed
		event.Error = cause.Error()
	case event.Outcome == "":
		event.Outcome = events.OutcomeSucceeded
	}
	if event.Type == events.EventDraftEdited {
		event.Outcome = events.OutcomeLocal
	}
	if err := dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// stringPreview shortens body to at most max bytes without splitting a rune.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	suffix := "..."
	if max <= len(suffix) {
		suffix = ""
	}
	cut := max - len(suffix)
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + suffix
}
