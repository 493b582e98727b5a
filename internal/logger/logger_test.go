package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cardreader.log")

	require.NoError(t, Setup(LogConfig{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Setup(DefaultConfig()) })

	l := WithComponent("test")
	l.Info().Str("card", "card_1.png").Msg("Saved card")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"card":"card_1.png"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	f := WithFields(map[string]interface{}{"component": "scan", "file": "card.jpg"})
	f.Info().Msg("Starting card scan")

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"file":"card.jpg"`)
}

func TestSetup_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(LogConfig{Level: "loud", Output: "stderr"}))
}

func TestWithContext_FallsBackToGlobal(t *testing.T) {
	l := WithContext(context.Background())
	require.NotNil(t, l)

	scoped := WithRequestID("req-1")
	ctx := scoped.WithContext(context.Background())
	assert.Equal(t, &scoped, WithContext(ctx))
}
