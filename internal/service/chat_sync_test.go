package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

func newTestChat(gw *fakeGateway) (*ChatSync, *recordedEvents) {
	dispatcher := events.NewInMemoryDispatcher()
	rec := recordAll(dispatcher)
	c := NewChatSync(ChatDependencies{
		Gateway:    gw,
		Dispatcher: dispatcher,
		Operator:   "ana",
		Clock:      func() time.Time { return fixedNow },
	})
	return c, rec
}

func TestOpenWithoutConversationMakesNoCall(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestChat(gw)

	require.NoError(t, c.Open(context.Background(), pendingDraft("1")))

	assert.Empty(t, gw.transcriptCalls)
	state := c.State()
	require.NotNil(t, state.Active)
	assert.Equal(t, "1", state.Active.ID)
	assert.False(t, state.Loading)
	require.Len(t, state.Transcript, 1)
	assert.Equal(t, NoConversationText, state.Transcript[0].Text)
}

func TestOpenLoadsTranscript(t *testing.T) {
	gw := newFakeGateway()
	gw.transcripts["chat-1"] = []domain.ChatMessage{
		{Sender: domain.SenderCustomer, Text: "hello", Timestamp: "10:00"},
		{Sender: domain.SenderAutomatedAgent, Text: "hi", Timestamp: "10:01"},
	}
	c, _ := newTestChat(gw)

	require.NoError(t, c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1")))

	assert.Equal(t, []string{"chat-1"}, gw.transcriptCalls)
	assert.Len(t, c.Transcript(), 2)
	assert.False(t, c.Loading())
	assert.Empty(t, c.Error())
}

func TestOpenFailureShowsSyntheticMessage(t *testing.T) {
	gw := newFakeGateway()
	gw.transcript = apperrors.NewNetworkError("fetch_transcript", errors.New("timeout"))
	c, _ := newTestChat(gw)

	err := c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1"))
	require.Error(t, err)

	transcript := c.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, TranscriptFailedText, transcript[0].Text)
	assert.False(t, c.Loading())
	assert.NotEmpty(t, c.Error())
}

func TestStaleTranscriptIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	gw.transcripts["chat-a"] = []domain.ChatMessage{{Sender: domain.SenderCustomer, Text: "from A"}}
	gw.transcripts["chat-b"] = []domain.ChatMessage{{Sender: domain.SenderCustomer, Text: "from B"}}
	gateA := make(chan struct{})
	gw.transcriptGate["chat-a"] = gateA
	c, _ := newTestChat(gw)

	openedA := make(chan error, 1)
	go func() { openedA <- c.Open(context.Background(), withConversation(pendingDraft("a"), "chat-a")) }()
	waitEntered(t, gw, "transcript:chat-a")
	assert.True(t, c.Loading())

	c.Close()
	require.NoError(t, c.Open(context.Background(), withConversation(pendingDraft("b"), "chat-b")))

	close(gateA)
	require.NoError(t, <-openedA)

	state := c.State()
	require.NotNil(t, state.Active)
	assert.Equal(t, "b", state.Active.ID)
	require.Len(t, state.Transcript, 1)
	assert.Equal(t, "from B", state.Transcript[0].Text)
	assert.False(t, state.Loading)
}

func TestReopeningSameConversationDiscardsOlderFetch(t *testing.T) {
	gw := newFakeGateway()
	gate := make(chan struct{})
	gw.transcriptGate["chat-a"] = gate
	gw.transcripts["chat-a"] = []domain.ChatMessage{{Sender: domain.SenderCustomer, Text: "x"}}
	c, _ := newTestChat(gw)

	first := make(chan error, 1)
	go func() { first <- c.Open(context.Background(), withConversation(pendingDraft("a"), "chat-a")) }()
	waitEntered(t, gw, "transcript:chat-a")

	second := make(chan error, 1)
	go func() { second <- c.Open(context.Background(), withConversation(pendingDraft("a"), "chat-a")) }()
	waitEntered(t, gw, "transcript:chat-a")

	close(gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Len(t, c.Transcript(), 1)
	assert.False(t, c.Loading())
}

func TestCloseClearsState(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestChat(gw)
	require.NoError(t, c.Open(context.Background(), pendingDraft("1")))

	c.Close()
	_, ok := c.Active()
	assert.False(t, ok)
	assert.Empty(t, c.Transcript())
	assert.False(t, c.Loading())
}

func TestSendHumanMessageAppendsImmediately(t *testing.T) {
	gw := newFakeGateway()
	gw.sendErr = apperrors.NewRemoteError("send_chat_message", 500, "telegram down")
	c, rec := newTestChat(gw)
	require.NoError(t, c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1")))

	require.NoError(t, c.SendHumanMessage(context.Background(), "  on its way  "))
	transcript := c.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, domain.SenderHumanOperator, transcript[0].Sender)
	assert.Equal(t, "on its way", transcript[0].Text)

	c.Wait()
	assert.Equal(t, []string{"chat-1:on its way"}, gw.sent)
	assert.Len(t, c.Transcript(), 1, "failed delivery keeps the message")
	assert.Contains(t, c.Error(), "telegram down")

	sent := rec.ofType(events.EventChatMessageSent)
	require.Len(t, sent, 1)
	assert.Equal(t, events.OutcomeFailed, sent[0].Outcome)
}

func TestMessageSentWhileTranscriptLoadsIsKept(t *testing.T) {
	gw := newFakeGateway()
	gw.transcripts["chat-1"] = []domain.ChatMessage{{Sender: domain.SenderCustomer, Text: "old"}}
	gate := make(chan struct{})
	gw.transcriptGate["chat-1"] = gate
	c, _ := newTestChat(gw)

	opened := make(chan error, 1)
	go func() { opened <- c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1")) }()
	waitEntered(t, gw, "transcript:chat-1")

	require.NoError(t, c.SendHumanMessage(context.Background(), "hello"))
	close(gate)
	require.NoError(t, <-opened)
	c.Wait()

	transcript := c.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, "old", transcript[0].Text)
	assert.Equal(t, domain.SenderHumanOperator, transcript[1].Sender)
	assert.Equal(t, "hello", transcript[1].Text)
	assert.Equal(t, []string{"chat-1:hello"}, gw.sent)
	assert.False(t, c.Loading())
}

func TestMessageSentWhileTranscriptFailsIsKept(t *testing.T) {
	gw := newFakeGateway()
	gw.transcript = apperrors.NewNetworkError("fetch_transcript", errors.New("timeout"))
	gate := make(chan struct{})
	gw.transcriptGate["chat-1"] = gate
	c, _ := newTestChat(gw)

	opened := make(chan error, 1)
	go func() { opened <- c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1")) }()
	waitEntered(t, gw, "transcript:chat-1")

	require.NoError(t, c.SendHumanMessage(context.Background(), "hello"))
	close(gate)
	require.Error(t, <-opened)
	c.Wait()

	transcript := c.Transcript()
	require.Len(t, transcript, 2)
	assert.Equal(t, TranscriptFailedText, transcript[0].Text)
	assert.Equal(t, "hello", transcript[1].Text)
}

func TestSendHumanMessageValidation(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestChat(gw)

	err := c.SendHumanMessage(context.Background(), "hello")
	assert.True(t, apperrors.IsValidationError(err), "nothing open")

	require.NoError(t, c.Open(context.Background(), pendingDraft("1")))
	err = c.SendHumanMessage(context.Background(), "hello")
	assert.True(t, apperrors.IsValidationError(err), "no conversation linked")

	require.NoError(t, c.Open(context.Background(), withConversation(pendingDraft("2"), "chat-2")))
	err = c.SendHumanMessage(context.Background(), "   ")
	assert.True(t, apperrors.IsValidationError(err))

	c.Wait()
	assert.Empty(t, gw.sent)
}

func TestToggleAutomation(t *testing.T) {
	gw := newFakeGateway()
	c, rec := newTestChat(gw)

	assert.Error(t, c.ToggleAutomation(context.Background(), false))

	require.NoError(t, c.Open(context.Background(), withConversation(pendingDraft("1"), "chat-1")))
	require.NoError(t, c.ToggleAutomation(context.Background(), false))
	assert.Equal(t, []bool{false}, gw.toggles)

	toggled := rec.ofType(events.EventChatAutomationToggled)
	require.Len(t, toggled, 1)
	payload, ok := toggled[0].Payload.(events.ChatPayload)
	require.True(t, ok)
	require.NotNil(t, payload.Enabled)
	assert.False(t, *payload.Enabled)
}

func TestChatSubscribersSeeRevisions(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestChat(gw)
	var revisions []uint64
	unsubscribe := c.Subscribe(func(rev uint64) { revisions = append(revisions, rev) })

	require.NoError(t, c.Open(context.Background(), pendingDraft("1")))
	c.Close()
	unsubscribe()
	c.Close()

	assert.Equal(t, []uint64{1, 2}, revisions)
	assert.Equal(t, uint64(3), c.Revision())
}
