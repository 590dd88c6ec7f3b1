package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"discofabric/internal/logger"
)

// FileLoggerConfig configures lumberjack-backed rotating file output.
type FileLoggerConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxSize"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAge     int    `yaml:"maxAge"`
	Compress   bool   `yaml:"compress"`
}

// LoggerConfig configures the zap adapter in internal/logger/zap.
type LoggerConfig struct {
	Active   bool             `yaml:"active"`
	Level    string           `yaml:"level"`
	Encoding string           `yaml:"encoding"`
	Mode     string           `yaml:"mode"`
	File     FileLoggerConfig `yaml:"file"`
}

// TracingConfig configures OpenTelemetry tracing for the lookup path.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Observability is the content of observability.yaml.
type Observability struct {
	Logger  LoggerConfig  `yaml:"logger"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoadObservability reads and parses observability.yaml. Call
// ApplyEnvOverrides and then Validate before using the result.
func LoadObservability(path string) (*Observability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var o Observability
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &o, nil
}

// ApplyEnvOverrides lets deployment tooling override observability.yaml
// without rewriting it: OBS_LOG_LEVEL, OBS_LOG_ENCODING, OBS_LOG_MODE,
// OBS_LOG_FILE_PATH, OBS_TRACE_ENABLED, OBS_TRACE_EXPORTER,
// OBS_TRACE_ENDPOINT.
func (o *Observability) ApplyEnvOverrides() {
	if v := os.Getenv("OBS_LOG_LEVEL"); v != "" {
		o.Logger.Level = v
	}
	if v := os.Getenv("OBS_LOG_ENCODING"); v != "" {
		o.Logger.Encoding = v
	}
	if v := os.Getenv("OBS_LOG_MODE"); v != "" {
		o.Logger.Mode = v
	}
	if v := os.Getenv("OBS_LOG_FILE_PATH"); v != "" {
		o.Logger.File.Path = v
	}
	if v := os.Getenv("OBS_TRACE_ENABLED"); v != "" {
		v = strings.ToLower(v)
		o.Tracing.Enabled = v == "true" || v == "1" || v == "yes"
	}
	if v := os.Getenv("OBS_TRACE_EXPORTER"); v != "" {
		o.Tracing.Exporter = v
	}
	if v := os.Getenv("OBS_TRACE_ENDPOINT"); v != "" {
		o.Tracing.Endpoint = v
	}
}

// Validate checks observability.yaml for structural errors: unsupported
// enum values and missing fields a given mode requires.
func (o *Observability) Validate() error {
	var errs []string

	switch o.Logger.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.level: %s", o.Logger.Level))
	}
	switch o.Logger.Encoding {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.encoding: %s", o.Logger.Encoding))
	}
	switch o.Logger.Mode {
	case "stdout":
	case "file":
		if o.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path is required when mode=file")
		}
		if o.Logger.File.MaxSize < 0 || o.Logger.File.MaxBackups < 0 || o.Logger.File.MaxAge < 0 {
			errs = append(errs, "logger.file.* values must be non-negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid logger.mode: %s", o.Logger.Mode))
	}

	if o.Tracing.Enabled {
		switch o.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("invalid tracing.exporter: %s", o.Tracing.Exporter))
		}
		if o.Tracing.Exporter == "otlp" && o.Tracing.Endpoint == "" {
			errs = append(errs, "tracing.endpoint is required when exporter=otlp")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("observability config errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// LogConfig emits the loaded configuration at DEBUG level, useful for
// diagnosing startup issues.
func (o *Observability) LogConfig(lgr logger.Logger) {
	lgr.Debug("loaded observability config",
		logger.F("logger.active", o.Logger.Active),
		logger.F("logger.level", o.Logger.Level),
		logger.F("logger.encoding", o.Logger.Encoding),
		logger.F("logger.mode", o.Logger.Mode),
		logger.F("logger.file.path", o.Logger.File.Path),
		logger.F("logger.file.maxSizeMB", o.Logger.File.MaxSize),
		logger.F("logger.file.maxBackups", o.Logger.File.MaxBackups),
		logger.F("logger.file.maxAgeDays", o.Logger.File.MaxAge),
		logger.F("logger.file.compress", o.Logger.File.Compress),
		logger.F("tracing.enabled", o.Tracing.Enabled),
		logger.F("tracing.exporter", o.Tracing.Exporter),
		logger.F("tracing.endpoint", o.Tracing.Endpoint),
	)
}
