package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

func TestRegistryLoadsDraftsOnFirstAccess(t *testing.T) {
	gw := newFakeGateway()
	gw.setDrafts(pendingDraft("1"), pendingDraft("2"))
	registry := NewSessionRegistry(RegistryDependencies{Gateway: gw})

	session := registry.Get(context.Background(), "ana")
	assert.Len(t, session.Store.Pending(), 2)
	assert.Equal(t, 1, gw.fetchCount())

	again := registry.Get(context.Background(), "ana")
	assert.Same(t, session, again)
	assert.Equal(t, 1, gw.fetchCount(), "existing sessions are not reloaded")
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	gw := newFakeGateway()
	gw.setDrafts(pendingDraft("1"))
	registry := NewSessionRegistry(RegistryDependencies{Gateway: gw})

	ana := registry.Get(context.Background(), "ana")
	ben := registry.Get(context.Background(), "ben")

	require.NoError(t, ana.Pipeline.UpdateDraftContent(context.Background(), "1", "ana's edit"))
	require.NoError(t, ana.Chat.Open(context.Background(), pendingDraft("1")))

	got, _ := ben.Store.Get("1")
	assert.Equal(t, "draft 1", got.DraftMessage)
	_, open := ben.Chat.Active()
	assert.False(t, open)

	assert.Equal(t, []string{"ana", "ben"}, registry.Operators())
	_, ok := registry.Lookup("carla")
	assert.False(t, ok)
}

func TestRegistryKeepsFailedInitialLoad(t *testing.T) {
	gw := newFakeGateway()
	gw.fetchErr = apperrors.NewNetworkError("fetch_drafts", errors.New("refused"))
	registry := NewSessionRegistry(RegistryDependencies{Gateway: gw})

	session := registry.Get(context.Background(), "ana")
	assert.Empty(t, session.Store.Drafts())
	assert.NotEmpty(t, session.Store.LastError())
	assert.False(t, session.Store.Loading())
}

func TestSessionRevisionTracksBothPanels(t *testing.T) {
	gw := newFakeGateway()
	registry := NewSessionRegistry(RegistryDependencies{Gateway: gw})
	session := registry.Get(context.Background(), "ana")

	before := session.Revision()
	session.Chat.Close()
	afterChat := session.Revision()
	assert.Greater(t, afterChat, before)

	session.Store.SetError("x")
	assert.Greater(t, session.Revision(), afterChat)

	registry.Shutdown()
}
