package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTemperature = 0.7
	DefaultServerURL   = "http://localhost:8000"
)

// DefaultInstruction is the built-in image description template.
const DefaultInstruction = "You are a professional image analysis assistant. Describe the content of the image in detail, including the main objects, the scene, the colors, and the emotional atmosphere."

// KnownModels lists the model identifiers offered for selection. The
// identifier is informational; the endpoint decides which model runs.
var KnownModels = []string{"gpt-4-vision", "claude-3", "gemini-pro", "qwen-vl"}

// RunConfig holds the user's settings for a generation run.
// Fields are not cross-validated here; the orchestrator checks them when a
// run starts.
type RunConfig struct {
	ModelID     string  `yaml:"model"`
	Endpoint    string  `yaml:"endpoint"`
	APIKey      string  `yaml:"api_key"`
	Instruction string  `yaml:"instruction"`
	Temperature float64 `yaml:"temperature"`
}

// NewRunConfig returns a RunConfig with the default temperature.
func NewRunConfig() *RunConfig {
	return &RunConfig{Temperature: DefaultTemperature}
}

// SetTemperature clamps v to [0, 1] and snaps it to a 0.1 step.
func (c *RunConfig) SetTemperature(v float64) {
	c.Temperature = ClampTemperature(v)
}

// UseDefaultInstruction replaces the instruction with DefaultInstruction.
func (c *RunConfig) UseDefaultInstruction() {
	c.Instruction = DefaultInstruction
}

// ClampTemperature bounds v to [0, 1] in steps of 0.1.
func ClampTemperature(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Round(v*10) / 10
}

// LoadRunConfig reads an optional YAML file and overlays DATAGEN_* environment
// variables. An empty path skips the file.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := *NewRunConfig()
	if err := readYAML(path, &cfg); err != nil {
		return cfg, err
	}

	cfg.ModelID = getenv("DATAGEN_MODEL", cfg.ModelID)
	cfg.Endpoint = getenv("DATAGEN_ENDPOINT", cfg.Endpoint)
	cfg.APIKey = getenv("DATAGEN_API_KEY", cfg.APIKey)
	cfg.Instruction = getenv("DATAGEN_INSTRUCTION", cfg.Instruction)
	if v := os.Getenv("DATAGEN_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid DATAGEN_TEMPERATURE %q: %w", v, err)
		}
		cfg.Temperature = t
	}
	cfg.SetTemperature(cfg.Temperature)

	return cfg, nil
}

// ServerConfig configures the collaborator server started by `datagen serve`.
type ServerConfig struct {
	Port              string        `yaml:"port"`
	UploadDir         string        `yaml:"upload_dir"`
	OutputDir         string        `yaml:"output_dir"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	DefaultAPIKey     string        `yaml:"default_api_key"`
	Demo              bool          `yaml:"demo"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	ModelTimeout      time.Duration `yaml:"model_timeout"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
}

// DefaultServerConfig mirrors the original backend's settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           "8000",
		UploadDir:      "uploads",
		OutputDir:      "outputs",
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		ModelTimeout:   60 * time.Second,
		MaxUploadBytes: 10 * 1024 * 1024,
	}
}

// LoadServerConfig reads an optional YAML file and overlays DATAGEN_*
// environment variables on top of DefaultServerConfig.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := readYAML(path, &cfg); err != nil {
		return cfg, err
	}

	cfg.Port = getenv("DATAGEN_PORT", cfg.Port)
	cfg.UploadDir = getenv("DATAGEN_UPLOAD_DIR", cfg.UploadDir)
	cfg.OutputDir = getenv("DATAGEN_OUTPUT_DIR", cfg.OutputDir)
	cfg.DefaultAPIKey = getenv("DATAGEN_DEFAULT_API_KEY", cfg.DefaultAPIKey)
	if v := os.Getenv("DATAGEN_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("DATAGEN_DEMO"); v != "" {
		demo, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DATAGEN_DEMO %q: %w", v, err)
		}
		cfg.Demo = demo
	}
	if v := os.Getenv("DATAGEN_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid DATAGEN_RPS %q: %w", v, err)
		}
		cfg.RequestsPerSecond = rps
	}

	return cfg, nil
}

func readYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
