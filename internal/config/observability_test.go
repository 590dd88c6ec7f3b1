package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeObservabilityYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "observability.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
logger:
  active: true
  level: info
  encoding: json
  mode: stdout
tracing:
  enabled: false
`

func TestLoadObservabilityValid(t *testing.T) {
	path := writeObservabilityYAML(t, validYAML)
	obs, err := LoadObservability(path)
	require.NoError(t, err)
	require.NoError(t, obs.Validate())
	require.True(t, obs.Logger.Active)
	require.Equal(t, "info", obs.Logger.Level)
}

func TestObservabilityValidateRejectsUnknownLevel(t *testing.T) {
	path := writeObservabilityYAML(t, `
logger:
  active: true
  level: verbose
  encoding: json
  mode: stdout
tracing:
  enabled: false
`)
	obs, err := LoadObservability(path)
	require.NoError(t, err)
	require.Error(t, obs.Validate())
}

func TestObservabilityValidateRequiresFilePathInFileMode(t *testing.T) {
	path := writeObservabilityYAML(t, `
logger:
  active: true
  level: info
  encoding: json
  mode: file
tracing:
  enabled: false
`)
	obs, err := LoadObservability(path)
	require.NoError(t, err)
	require.Error(t, obs.Validate())
}

func TestObservabilityValidateRequiresOTLPEndpoint(t *testing.T) {
	path := writeObservabilityYAML(t, `
logger:
  active: false
  level: info
  encoding: json
  mode: stdout
tracing:
  enabled: true
  exporter: otlp
`)
	obs, err := LoadObservability(path)
	require.NoError(t, err)
	require.Error(t, obs.Validate())
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeObservabilityYAML(t, validYAML)
	obs, err := LoadObservability(path)
	require.NoError(t, err)

	t.Setenv("OBS_LOG_LEVEL", "debug")
	t.Setenv("OBS_TRACE_ENABLED", "true")
	t.Setenv("OBS_TRACE_EXPORTER", "stdout")
	obs.ApplyEnvOverrides()

	require.Equal(t, "debug", obs.Logger.Level)
	require.True(t, obs.Tracing.Enabled)
	require.Equal(t, "stdout", obs.Tracing.Exporter)
	require.NoError(t, obs.Validate())
}
