package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsGatewaysFromEnv(t *testing.T) {
	t.Setenv("DB_USER", "coursepass")
	t.Setenv("DB_NAME", "coursepass_db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "100, 200")
	t.Setenv("GATEWAYS", "payform,legacy,nosecret")
	t.Setenv("PAYFORM_SECRET", "s1")
	t.Setenv("LEGACY_SECRET", "s2")
	t.Setenv("LEGACY_ENABLED", "false")
	t.Setenv("SWEEP_INTERVAL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 200}, cfg.AdminChatIDs)
	assert.Equal(t, 30*time.Minute, cfg.SweepInterval)

	require.NotNil(t, cfg.Gateway("payform"))
	assert.True(t, cfg.Gateway("payform").Enabled)
	require.NotNil(t, cfg.Gateway("LEGACY"))
	assert.False(t, cfg.Gateway("legacy").Enabled)
	// A gateway without a secret is never configured.
	assert.Nil(t, cfg.Gateway("nosecret"))
	assert.Nil(t, cfg.Gateway("unknown"))
}

func TestLoadRejectsMissingBotToken(t *testing.T) {
	t.Setenv("DB_USER", "coursepass")
	t.Setenv("DB_NAME", "coursepass_db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("GATEWAYS", "payform")
	t.Setenv("PAYFORM_SECRET", "s1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	t.Setenv("DB_USER", "coursepass")
	t.Setenv("DB_NAME", "coursepass_db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "100,nope")
	t.Setenv("PAYFORM_SECRET", "s1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsEmptyGatewayList(t *testing.T) {
	t.Setenv("DB_USER", "coursepass")
	t.Setenv("DB_NAME", "coursepass_db")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("GATEWAYS", "payform")
	t.Setenv("PAYFORM_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
