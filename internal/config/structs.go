//nolint:lll
package config

import "time"

// Config represents the complete configuration for boxguard.
// It is loaded from configuration files, environment variables and
// command-line flags, in increasing order of precedence.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Camera stream
	Stream StreamConfig `mapstructure:"stream" yaml:"stream" json:"stream"`

	// Object detector
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`

	// GPU configuration
	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`

	// Zone and label rules
	Inspection InspectionConfig `mapstructure:"inspection" yaml:"inspection" json:"inspection"`

	// Serial reject controller
	Actuator ActuatorConfig `mapstructure:"actuator" yaml:"actuator" json:"actuator"`

	// Monitoring server
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Command audit log
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`
}

// StreamConfig contains MJPEG source settings.
type StreamConfig struct {
	URL            string        `mapstructure:"url" yaml:"url" json:"url"`
	ChunkSize      int           `mapstructure:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout"`
	MaxBufferBytes int           `mapstructure:"max_buffer_bytes" yaml:"max_buffer_bytes" json:"max_buffer_bytes"`
}

// DetectorConfig contains model settings.
type DetectorConfig struct {
	ModelPath     string   `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LabelsPath    string   `mapstructure:"labels_path" yaml:"labels_path" json:"labels_path"`
	Labels        []string `mapstructure:"labels" yaml:"labels" json:"labels"`
	InputSize     int      `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	ConfThreshold float64  `mapstructure:"conf_threshold" yaml:"conf_threshold" json:"conf_threshold"`
	NMSThreshold  float64  `mapstructure:"nms_threshold" yaml:"nms_threshold" json:"nms_threshold"`
	NumThreads    int      `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// GPUConfig contains CUDA settings for the detector session.
type GPUConfig struct {
	Enabled             bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device              int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit         string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
	ArenaExtendStrategy string `mapstructure:"arena_extend_strategy" yaml:"arena_extend_strategy" json:"arena_extend_strategy"`
	CUDNNConvAlgoSearch string `mapstructure:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search" json:"cudnn_conv_algo_search"`
}

// InspectionConfig contains the zone geometry and label rules.
type InspectionConfig struct {
	ZoneWidth    int      `mapstructure:"zone_width" yaml:"zone_width" json:"zone_width"`
	ZoneHeight   int      `mapstructure:"zone_height" yaml:"zone_height" json:"zone_height"`
	PresentLabel string   `mapstructure:"present_label" yaml:"present_label" json:"present_label"`
	DefectLabels []string `mapstructure:"defect_labels" yaml:"defect_labels" json:"defect_labels"`
	OKLabels     []string `mapstructure:"ok_labels" yaml:"ok_labels" json:"ok_labels"`
}

// ActuatorConfig contains serial link and debounce settings.
type ActuatorConfig struct {
	Port         string        `mapstructure:"port" yaml:"port" json:"port"`
	BaudRate     int           `mapstructure:"baud_rate" yaml:"baud_rate" json:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits" yaml:"data_bits" json:"data_bits"`
	StopBits     int           `mapstructure:"stop_bits" yaml:"stop_bits" json:"stop_bits"`
	Parity       string        `mapstructure:"parity" yaml:"parity" json:"parity"`
	SettleDelay  time.Duration `mapstructure:"settle_delay" yaml:"settle_delay" json:"settle_delay"`
	HoldDuration time.Duration `mapstructure:"hold_duration" yaml:"hold_duration" json:"hold_duration"`
	Cooldown     time.Duration `mapstructure:"cooldown" yaml:"cooldown" json:"cooldown"`
	DryRun       bool          `mapstructure:"dry_run" yaml:"dry_run" json:"dry_run"`
}

// ServerConfig contains monitoring server settings.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	PreviewQuality  int           `mapstructure:"preview_quality" yaml:"preview_quality" json:"preview_quality"`
}

// StoreConfig contains audit log settings. An empty path disables the store.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}
