package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.PageLimit)
	assert.Equal(t, 5, cfg.BatchWidth)
	assert.Equal(t, 3, cfg.RetryCount)
	assert.Equal(t, 15, cfg.RateThreshold)
	assert.Equal(t, 60*time.Second, cfg.RateWindow)
	assert.Equal(t, "./export", cfg.OutputDir)
	assert.False(t, cfg.UploadEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAGE_LIMIT", "25")
	t.Setenv("PAGE_DELAY", "500ms")
	t.Setenv("DEST_CHANNEL", "@mirror_dest")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.PageLimit)
	assert.Equal(t, 500*time.Millisecond, cfg.PageDelay)
	assert.True(t, cfg.UploadEnabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.TGApiID = 12345
	cfg.TGApiHash = "hash"
	assert.Error(t, cfg.Validate(), "source channel still missing")

	cfg.SourceChannel = "@some_channel"
	assert.NoError(t, cfg.Validate())
}
