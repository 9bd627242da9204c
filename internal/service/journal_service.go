package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/repository"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// EventPublisher pushes serialized events to other processes.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// JournalService records every operator command in the decision journal and
// fans it out to other processes. Both sinks are optional.
type JournalService struct {
	dispatcher events.Dispatcher
	decisions  repository.DecisionRepository
	publisher  EventPublisher
	channel    string
	logger     *zap.Logger
}

// JournalDependencies bundles collaborators for the journal.
type JournalDependencies struct {
	Dispatcher events.Dispatcher
	Decisions  repository.DecisionRepository
	Publisher  EventPublisher
	Channel    string
	Logger     *zap.Logger
}

// NewJournalService creates the service.
func NewJournalService(deps JournalDependencies) *JournalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{
		dispatcher: deps.Dispatcher,
		decisions:  deps.Decisions,
		publisher:  deps.Publisher,
		channel:    deps.Channel,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to every event type.
func (j *JournalService) RegisterHandlers() {
	if j.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		j.dispatcher.Subscribe(eventType, j.handle)
	}
}

// Enabled reports whether journal entries are persisted.
func (j *JournalService) Enabled() bool {
	return j != nil && j.decisions != nil
}

// Entries lists journal entries for one draft, newest first.
func (j *JournalService) Entries(ctx context.Context, draftID string, limit int) ([]domain.DecisionEntry, error) {
	if !j.Enabled() {
		return nil, apperrors.NewDomainError("JOURNAL_DISABLED", "decision journal is not configured", http.StatusServiceUnavailable, nil)
	}
	entries, err := j.decisions.ListByDraft(ctx, draftID, limit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

func (j *JournalService) handle(ctx context.Context, event events.Event) error {
	j.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("draft_id", event.DraftID),
		zap.String("operator", event.Operator),
		zap.String("outcome", string(event.Outcome)))

	var errs []error
	if j.decisions != nil {
		if err := j.record(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if j.publisher != nil && j.channel != "" {
		if err := j.fanOut(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("fan-out: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (j *JournalService) record(ctx context.Context, event events.Event) error {
	payload, err := payloadMap(event.Payload)
	if err != nil {
		return err
	}
	entry := &domain.DecisionEntry{
		ID:        event.ID,
		EventType: string(event.Type),
		Operator:  event.Operator,
		Outcome:   string(event.Outcome),
		Payload:   payload,
		CreatedAt: event.Timestamp,
	}
	if event.DraftID != "" {
		draftID := event.DraftID
		entry.DraftID = &draftID
	}
	if event.Error != "" {
		msg := event.Error
		entry.Error = &msg
	}
	return j.decisions.Create(ctx, entry)
}

func (j *JournalService) fanOut(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return j.publisher.Publish(ctx, j.channel, body)
}

func payloadMap(payload any) (map[string]any, error) {
	if payload == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
