// Package config provides configuration types and loading for helmsman.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Loop, Permissions, Detector, Tools, Trace.
type Config struct {
	Paths       PathsConfig       `json:"paths"`
	Model       ModelConfig       `json:"model"`
	Loop        LoopConfig        `json:"loop"`
	Permissions PermissionsConfig `json:"permissions"`
	Detector    DetectorConfig    `json:"detector"`
	Tools       ToolsConfig       `json:"tools"`
	Trace       TraceConfig       `json:"trace"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	Workspace   string `json:"workspace" envconfig:"WORKSPACE"`
	SessionsDir string `json:"sessionsDir" envconfig:"SESSIONS_DIR"`
	TimelineDB  string `json:"timelineDb" envconfig:"TIMELINE_DB"`
}

// ModelConfig groups backend endpoint and generation settings.
type ModelConfig struct {
	Name        string  `json:"name" envconfig:"MODEL_NAME"`
	BaseURL     string  `json:"baseUrl" envconfig:"MODEL_BASE_URL"`
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
	TopP        float64 `json:"topP" envconfig:"TOP_P"`
}

// LoopConfig bounds the agent loop.
type LoopConfig struct {
	// MaxIterations is the hard ceiling on full think-act-observe
	// cycles per session.
	MaxIterations int `json:"maxIterations" envconfig:"MAX_ITERATIONS"`
	// WallClock is the hard wall-clock ceiling per session.
	WallClock time.Duration `json:"wallClock" envconfig:"WALL_CLOCK"`
	// ParseRetries is how many extra generations are attempted after
	// unparseable model output before the session fails.
	ParseRetries int `json:"parseRetries" envconfig:"PARSE_RETRIES"`
	// HistoryWindow caps how many conversation messages are replayed
	// into model context each cycle. 0 means no cap.
	HistoryWindow int `json:"historyWindow" envconfig:"HISTORY_WINDOW"`
}

// PermissionsConfig configures the permission engine.
type PermissionsConfig struct {
	// Mode is one of "manual", "allowlist", "auto".
	Mode string `json:"mode" envconfig:"PERMISSION_MODE"`
	// Allowlist holds action or group names admitted in allowlist mode.
	Allowlist []string `json:"allowlist"`
	// MaxLevel caps admissible action levels ("read_only" .. "unrestricted").
	MaxLevel string `json:"maxLevel" envconfig:"PERMISSION_MAX_LEVEL"`
	// ApprovalTimeout bounds how long an approval ticket may stay open.
	ApprovalTimeout time.Duration `json:"approvalTimeout" envconfig:"APPROVAL_TIMEOUT"`
}

// DetectorConfig configures the loop detector.
type DetectorConfig struct {
	Window          int `json:"window" envconfig:"DETECTOR_WINDOW"`
	RepeatThreshold int `json:"repeatThreshold" envconfig:"DETECTOR_THRESHOLD"`
}

// ToolsConfig toggles tool families.
type ToolsConfig struct {
	EnableFilesystem bool `json:"enableFilesystem" envconfig:"TOOLS_FILESYSTEM"`
	EnableFileWrite  bool `json:"enableFileWrite" envconfig:"TOOLS_FILE_WRITE"`
	EnableExec       bool `json:"enableExec" envconfig:"TOOLS_EXEC"`
	EnableWebFetch   bool `json:"enableWebFetch" envconfig:"TOOLS_WEB_FETCH"`
	// ExecTimeout bounds a single shell command.
	ExecTimeout time.Duration `json:"execTimeout" envconfig:"TOOLS_EXEC_TIMEOUT"`
}

// TraceConfig configures the optional Kafka span sink.
type TraceConfig struct {
	Enabled bool     `json:"enabled" envconfig:"TRACE_ENABLED"`
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic" envconfig:"TRACE_TOPIC"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Name:        "local",
			BaseURL:     "http://localhost:8080/v1",
			MaxTokens:   4096,
			Temperature: 0.7,
			TopP:        0.9,
		},
		Loop: LoopConfig{
			MaxIterations: 25,
			WallClock:     5 * time.Minute,
			ParseRetries:  2,
			HistoryWindow: 40,
		},
		Permissions: PermissionsConfig{
			Mode:            "manual",
			MaxLevel:        "unrestricted",
			ApprovalTimeout: 60 * time.Second,
		},
		Detector: DetectorConfig{
			Window:          6,
			RepeatThreshold: 3,
		},
		Tools: ToolsConfig{
			EnableFilesystem: true,
			EnableFileWrite:  true,
			EnableExec:       false,
			EnableWebFetch:   false,
			ExecTimeout:      60 * time.Second,
		},
		Trace: TraceConfig{
			Topic: "helmsman.traces",
		},
	}
}
