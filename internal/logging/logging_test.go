package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" Warn "))
	assert.Equal(t, zerolog.TraceLevel, ParseLevel("TRACE"))
	assert.Equal(t, zerolog.Disabled, ParseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "squadsim.log")

	log, closer, err := Setup(&out, "info", path)
	require.NoError(t, err)

	log.Debug().Msg("hidden")
	log.Info().Str("mission", "citadel_crisis").Msg("mission loaded")
	require.NoError(t, closer.Close())

	assert.Contains(t, out.String(), "mission loaded")
	assert.NotContains(t, out.String(), "hidden")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mission=citadel_crisis")
	assert.NotContains(t, string(data), "\x1b[", "file output must not be colored")
}

func TestSetup_BadFile(t *testing.T) {
	var out bytes.Buffer
	_, closer, err := Setup(&out, "info", filepath.Join(t.TempDir(), "missing", "x.log"))
	require.Error(t, err)
	assert.NoError(t, closer.Close())
}
