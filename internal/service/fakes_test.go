package service

import (
	"context"
	"sync"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	"github.com/reviewdesk/draft-review-console/internal/store"
)

type actionCall struct {
	ID           string
	Action       domain.ReviewAction
	FinalMessage *string
}

// fakeGateway records calls. A non-nil gate channel blocks the matching call
// until the test sends on it (or closes it); entered is signalled first.
type fakeGateway struct {
	mu sync.Mutex

	drafts      []domain.DraftRecord
	fetchErr    error
	actionErr   error
	regenResult string
	regenErr    error
	transcripts map[string][]domain.ChatMessage
	transcript  error
	sendErr     error
	toggleErr   error

	fetchCalls      int
	actions         []actionCall
	regenerations   []gateway.RegenerationRequest
	transcriptCalls []string
	sent            []string
	toggles         []bool

	fetchGate      chan struct{}
	actionGate     chan struct{}
	regenGate      chan struct{}
	transcriptGate map[string]chan struct{}
	entered        chan string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		transcripts:    map[string][]domain.ChatMessage{},
		transcriptGate: map[string]chan struct{}{},
		entered:        make(chan string, 16),
	}
}

func (f *fakeGateway) wait(ctx context.Context, gate chan struct{}, name string) {
	if gate == nil {
		return
	}
	f.entered <- name
	select {
	case <-gate:
	case <-ctx.Done():
	}
}

func (f *fakeGateway) FetchDrafts(ctx context.Context) ([]domain.DraftRecord, error) {
	f.mu.Lock()
	gate := f.fetchGate
	f.mu.Unlock()
	f.wait(ctx, gate, "fetch")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]domain.DraftRecord, len(f.drafts))
	for i := range f.drafts {
		out[i] = f.drafts[i].Clone()
	}
	return out, nil
}

func (f *fakeGateway) SubmitAction(ctx context.Context, id string, action domain.ReviewAction, finalMessage *string) error {
	f.mu.Lock()
	gate := f.actionGate
	f.mu.Unlock()
	f.wait(ctx, gate, "action:"+id)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, actionCall{ID: id, Action: action, FinalMessage: finalMessage})
	return f.actionErr
}

func (f *fakeGateway) SubmitRegeneration(ctx context.Context, req gateway.RegenerationRequest) (gateway.RegenerationResult, error) {
	f.mu.Lock()
	gate := f.regenGate
	f.mu.Unlock()
	f.wait(ctx, gate, "regenerate:"+req.ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.regenerations = append(f.regenerations, req)
	if f.regenErr != nil {
		return gateway.RegenerationResult{}, f.regenErr
	}
	return gateway.RegenerationResult{NewContent: f.regenResult}, nil
}

func (f *fakeGateway) FetchTranscript(ctx context.Context, ref string) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	f.transcriptCalls = append(f.transcriptCalls, ref)
	gate := f.transcriptGate[ref]
	f.mu.Unlock()
	f.wait(ctx, gate, "transcript:"+ref)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transcript != nil {
		return nil, f.transcript
	}
	return append([]domain.ChatMessage{}, f.transcripts[ref]...), nil
}

func (f *fakeGateway) SendChatMessage(ctx context.Context, ref, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ref+":"+text)
	return f.sendErr
}

func (f *fakeGateway) ToggleAutomation(ctx context.Context, ref string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, enabled)
	return f.toggleErr
}

func (f *fakeGateway) setDrafts(records ...domain.DraftRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = records
}

func (f *fakeGateway) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func recordAll(d events.Dispatcher) *recordedEvents {
	rec := &recordedEvents{}
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, e)
			return nil
		})
	}
	return rec
}

func (r *recordedEvents) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func pendingDraft(id string) domain.DraftRecord {
	return domain.DraftRecord{
		ID:             id,
		CustomerName:   "Customer " + id,
		ContextSummary: "context " + id,
		DraftMessage:   "draft " + id,
		Status:         domain.DraftStatusPending,
	}
}

func withConversation(d domain.DraftRecord, ref string) domain.DraftRecord {
	d.ConversationRef = &ref
	return d
}

func newSeededStore(records ...domain.DraftRecord) *store.DraftStore {
	s := store.New()
	s.ReplaceAll(records)
	return s
}
