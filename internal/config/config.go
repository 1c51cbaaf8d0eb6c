package config

// Config is the root configuration for tasktrack.
type Config struct {
	Log     LogConfig     `json:"log"`
	History HistoryConfig `json:"history"`
	Events  EventsConfig  `json:"events"`
}

// LogConfig configures the default slog logger.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error (default: info)
	Format string `json:"format"` // text or json (default: text)
}

// HistoryConfig configures the view history.
type HistoryConfig struct {
	Limit int `json:"limit"` // 0 = unbounded
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	AuditLog   string `json:"audit_log,omitempty"` // directory for JSONL audit files (empty = disabled)
}
