package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.EnableCORS)
	assert.Equal(t, "html", cfg.Compile.Target)
	assert.Equal(t, "output", cfg.Compile.WorkDir)
	assert.Equal(t, []string{"storyformats"}, cfg.Formats.Dirs)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  port: 9090
  cors: false
compile:
  format: harlowe-3
  target: twine2
watch:
  paths: [storie]
  debounce: 1s
logging:
  console:
    level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.False(t, cfg.Server.EnableCORS)
	assert.Equal(t, "harlowe-3", cfg.Compile.Format)
	assert.Equal(t, "twine2", cfg.Compile.Target)
	// le chiavi assenti mantengono il default
	assert.Equal(t, "output", cfg.Compile.WorkDir)
	assert.Equal(t, []string{"storie"}, cfg.Watch.Paths)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Logging.Console.Level)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"chiave sconosciuta": "server:\n  host: localhost\n",
		"porta":              "server:\n  port: 70000\n",
		"target":             "compile:\n  target: pdf\n",
		"livello":            "logging:\n  console:\n    level: verbose\n",
		"file senza path":    "logging:\n  file:\n    level: debug\n",
	}
	for name, src := range cases {
		_, err := Parse([]byte(src))
		assert.Error(t, err, name)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twee-kit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 3000\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)

	_, err = Load(filepath.Join(t.TempDir(), "manca.yaml"))
	assert.Error(t, err)
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Watch.Paths = []string{"a", "b"}

	out, err := cfg.Dump()
	require.NoError(t, err)

	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestPrepareLogger(t *testing.T) {
	conf := LoggingConfig{
		Console: ConsoleLogger{Level: "none"},
		File:    FileLogger{Level: "none"},
	}
	logger, err := conf.Prepare()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.ErrorLevel))

	dest := filepath.Join(t.TempDir(), "twee-kit.log")
	conf.File = FileLogger{Level: "debug", Destination: dest, MaxSizeMB: 1}
	logger, err = conf.Prepare()
	require.NoError(t, err)

	logger.Debug("messaggio di prova")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "messaggio di prova")
	assert.Contains(t, string(data), `"logger":"twee-kit"`)
}
