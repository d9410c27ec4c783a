/*
Package config loads the YAML configuration of a framewatch deployment.  A
file names its variant and only needs to list the values that differ from
that variant's defaults.
*/
package config

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/swdee/go-framewatch"
	"github.com/swdee/go-framewatch/alert"
	"github.com/swdee/go-framewatch/detector"
	"github.com/swdee/go-framewatch/security"
	"github.com/swdee/go-framewatch/workout"
	"gopkg.in/yaml.v3"
	"image"
	"os"
	"time"
)

// Variant selects the analyser a deployment runs
type Variant string

const (
	Security Variant = "security"
	Workout  Variant = "workout"
)

// ErrUnknownVariant is returned for a variant other than security or workout
var ErrUnknownVariant = errors.New("unknown variant")

// DebugConfig enables saving pipeline frames as PNG files
type DebugConfig struct {
	// Dir is the directory files are written to, empty disables debugging
	Dir string `yaml:"dir"`
}

// QueueConfig sizes the ingestion and output queues
type QueueConfig struct {
	Ingest int `yaml:"ingest"`
	Output int `yaml:"output"`
}

// WorkerConfig holds the analysis worker settings
type WorkerConfig struct {
	PollTimeout time.Duration `yaml:"poll_timeout"`
	// InitialWidth and InitialHeight are the resolution the analyser is
	// built for, zero adopts the first frame's size
	InitialWidth  int `yaml:"initial_width"`
	InitialHeight int `yaml:"initial_height"`
}

// EmitterConfig holds the outbound cadence settings
type EmitterConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	FrameRate         int           `yaml:"fps"`
	PlaceholderWidth  int           `yaml:"placeholder_width"`
	PlaceholderHeight int           `yaml:"placeholder_height"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the complete deployment configuration
type Config struct {
	Variant  Variant          `yaml:"variant"`
	LogLevel string           `yaml:"log_level"`
	Debug    DebugConfig      `yaml:"debug"`
	Queue    QueueConfig      `yaml:"queue"`
	Worker   WorkerConfig     `yaml:"worker"`
	Emitter  EmitterConfig    `yaml:"emitter"`
	Detector detector.Config  `yaml:"detector"`
	Security security.Config  `yaml:"security"`
	Workout  workout.Config   `yaml:"workout"`
	MQTT     alert.MQTTConfig `yaml:"mqtt"`
	Server   ServerConfig     `yaml:"server"`
}

// base returns the settings shared by both variants
func base() Config {

	em := framewatch.DefaultEmitterOptions()
	sess := framewatch.DefaultSessionOptions()

	return Config{
		LogLevel: "info",
		Queue: QueueConfig{
			Ingest: sess.IngestQueueSize,
			Output: sess.OutputQueueSize,
		},
		Worker: WorkerConfig{
			PollTimeout: time.Second,
		},
		Emitter: EmitterConfig{
			Timeout:           em.Timeout,
			FrameRate:         em.FrameRate,
			PlaceholderWidth:  em.PlaceholderWidth,
			PlaceholderHeight: em.PlaceholderHeight,
		},
		Security: security.DefaultConfig(),
		Workout:  workout.DefaultConfig(),
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DefaultSecurity returns the security monitoring deployment defaults
func DefaultSecurity() Config {

	c := base()
	c.Variant = Security
	c.Detector = detector.Config{
		Model:     "../data/models/yolov8s.onnx",
		Labels:    "../data/coco_80_labels_list.txt",
		Task:      detector.TaskDetect,
		InputSize: 640,
		Pool:      1,
	}

	return c
}

// DefaultWorkout returns the workout assistant deployment defaults
func DefaultWorkout() Config {

	c := base()
	c.Variant = Workout
	c.Emitter.Timeout = 20 * time.Millisecond
	c.Worker.InitialWidth = 1280
	c.Worker.InitialHeight = 720
	c.Detector = detector.Config{
		Model:     "../data/models/yolov8s-pose.onnx",
		Task:      detector.TaskPose,
		InputSize: 640,
		Pool:      1,
	}

	return c
}

// Default returns the defaults of the named variant
func Default(v Variant) (Config, error) {

	switch v {
	case Security:
		return DefaultSecurity(), nil
	case Workout:
		return DefaultWorkout(), nil
	}

	return Config{}, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
}

// Parse decodes YAML data over the defaults of the variant it names
func Parse(data []byte) (*Config, error) {

	var head struct {
		Variant Variant `yaml:"variant"`
	}

	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if head.Variant == "" {
		head.Variant = Security
	}

	cfg, err := Default(head.Variant)

	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Validate fills in missing values and checks the configuration
func (c *Config) Validate() error {

	switch c.Variant {
	case Security, Workout:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVariant, c.Variant)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	if c.Queue.Ingest < 1 || c.Queue.Output < 1 {
		return errors.New("queue sizes must be at least 1")
	}

	if c.Worker.PollTimeout <= 0 {
		c.Worker.PollTimeout = time.Second
	}

	if c.Worker.InitialWidth < 0 || c.Worker.InitialHeight < 0 {
		return errors.New("worker initial size must not be negative")
	}

	if c.Emitter.Timeout <= 0 {
		return errors.New("emitter timeout must be positive")
	}

	if c.Emitter.FrameRate < 0 {
		return errors.New("emitter fps must not be negative")
	}

	if c.Emitter.PlaceholderWidth <= 0 || c.Emitter.PlaceholderHeight <= 0 {
		return errors.New("emitter placeholder size must be positive")
	}

	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}

	if c.Variant == Security {
		if err := c.Security.Validate(); err != nil {
			return fmt.Errorf("security: %w", err)
		}

		return nil
	}

	if c.Detector.Task != detector.TaskPose {
		return errors.New("workout variant needs a pose detector")
	}

	if err := c.Workout.Validate(); err != nil {
		return fmt.Errorf("workout: %w", err)
	}

	return nil
}

// Level returns the configured log level
func (c *Config) Level() (zerolog.Level, error) {

	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(c.LogLevel)

	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}

	return lvl, nil
}

// SessionOptions returns the pipeline options for a new session.  debug may
// be nil.
func (c *Config) SessionOptions(debug *framewatch.DebugSink) framewatch.SessionOptions {

	opts := framewatch.DefaultSessionOptions()
	opts.Label = string(c.Variant)
	opts.IngestQueueSize = c.Queue.Ingest
	opts.OutputQueueSize = c.Queue.Output

	opts.Worker.PollTimeout = c.Worker.PollTimeout
	opts.Worker.InitialSize = image.Pt(c.Worker.InitialWidth, c.Worker.InitialHeight)
	opts.Worker.Debug = debug

	opts.Emitter.Timeout = c.Emitter.Timeout
	opts.Emitter.FrameRate = c.Emitter.FrameRate
	opts.Emitter.PlaceholderWidth = c.Emitter.PlaceholderWidth
	opts.Emitter.PlaceholderHeight = c.Emitter.PlaceholderHeight
	opts.Emitter.Debug = debug

	return opts
}
