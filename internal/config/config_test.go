package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "http://backend.local/webhook/")
	t.Setenv("AUTH_OPERATORS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.local/webhook", cfg.Backend.BaseURL)
	assert.Equal(t, "/drafts", cfg.Backend.DraftsPath)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, "draft-review:events", cfg.Redis.EventsChannel)
	assert.Empty(t, cfg.Auth.Operators)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")
	_, err := Load()
	assert.Error(t, err)
}

func TestParseOperators(t *testing.T) {
	ops, err := ParseOperators("alice:$2a$10$abc:reviewer, bob:$2a$10$def:VIEWER,carol:$2a$10$ghi")
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, domain.OperatorRoleReviewer, ops[0].Role)
	assert.Equal(t, domain.OperatorRoleViewer, ops[1].Role)
	assert.Equal(t, domain.OperatorRoleReviewer, ops[2].Role)
	assert.Equal(t, "$2a$10$def", ops[1].PasswordHash)
}

func TestParseOperatorsErrors(t *testing.T) {
	for _, raw := range []string{"alice", "alice:hash:ADMIN", "alice:h1,alice:h2", ":hash"} {
		_, err := ParseOperators(raw)
		assert.Error(t, err, raw)
	}
}

func TestTimeoutsDisabled(t *testing.T) {
	assert.Zero(t, BackendConfig{}.Timeout())
	assert.Zero(t, AppConfig{}.RequestTimeout())
}
