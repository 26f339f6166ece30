package config

import (
	"fmt"
	"os"
	"time"

	"github.com/achilleasa/pathpool/log"
	"github.com/achilleasa/pathpool/renderer"
	"github.com/achilleasa/pathpool/scene"
	"github.com/achilleasa/pathpool/types"
	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by all commands.
type Config struct {
	LogLevel string           `yaml:"log_level"`
	Render   renderer.Options `yaml:"render"`
	Camera   CameraConfig     `yaml:"camera"`
	Output   OutputConfig     `yaml:"output"`
	Server   ServerConfig     `yaml:"server"`
}

// CameraConfig describes the initial camera placement.
type CameraConfig struct {
	Origin [3]float32 `yaml:"origin"`
	Target [3]float32 `yaml:"target"`
}

// OutputConfig controls where headless renders are written.
type OutputConfig struct {
	PNG string `yaml:"png"`
}

// ServerConfig contains the web front-end settings.
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// Minimum interval between frames pushed to a stream subscriber.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// Get the default configuration.
func Default() *Config {
	cam := scene.DefaultCamera()
	origin, target := cam.Origin(), cam.Target()

	return &Config{
		LogLevel: "notice",
		Render:   renderer.DefaultOptions(),
		Camera: CameraConfig{
			Origin: [3]float32(origin),
			Target: [3]float32(target),
		},
		Output: OutputConfig{PNG: "frame.png"},
		Server: ServerConfig{
			Listen:        ":8080",
			FrameInterval: 100 * time.Millisecond,
		},
	}
}

// Load reads a YAML configuration file. Settings missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedConfig, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Check the configuration for consistency.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	if err := c.Render.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	if _, err := c.CameraParameters(); err != nil {
		return fmt.Errorf("%w: camera: %s", ErrInvalidConfig, err.Error())
	}

	if c.Server.FrameInterval < 0 {
		return fmt.Errorf("%w: server frame interval must not be negative", ErrInvalidConfig)
	}

	return nil
}

// Build the configured initial camera.
func (c *Config) CameraParameters() (scene.CameraParameters, error) {
	return scene.NewCameraParameters(types.Vec3(c.Camera.Origin), types.Vec3(c.Camera.Target))
}

// Get the renderer options including the initial camera.
func (c *Config) Options() renderer.Options {
	opts := c.Render
	opts.Camera, _ = c.CameraParameters()
	return opts
}

// Apply the configured log level and return it. Unparsable levels leave the
// current level in place.
func (c *Config) SetupLogging() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.CurrentLevel()
	}
	log.SetLevel(level)
	return level
}
