package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/run"
	"gopkg.in/yaml.v3"
)

// ReportConfig is the run configuration as recorded in a report. The API
// key itself is never written.
type ReportConfig struct {
	Server      string  `yaml:"server"`
	Model       string  `yaml:"model,omitempty"`
	Endpoint    string  `yaml:"endpoint"`
	APIKeySet   bool    `yaml:"apikeyset"`
	Instruction string  `yaml:"instruction"`
	Temperature float64 `yaml:"temperature"`
}

// ReportResult is the final run state
type ReportResult struct {
	RunID          string `yaml:"runid"`
	Phase          string `yaml:"phase"`
	Progress       int    `yaml:"progress"`
	SuccessCount   int    `yaml:"successcount"`
	FailureCount   int    `yaml:"failurecount"`
	OutputArtifact string `yaml:"outputartifact,omitempty"`
	StartedAt      string `yaml:"startedat,omitempty"`
	FinishedAt     string `yaml:"finishedat,omitempty"`
}

// RunReport is the complete record of one run
type RunReport struct {
	Config    ReportConfig `yaml:"config"`
	Images    []string     `yaml:"images"`
	Result    ReportResult `yaml:"result"`
	Saved     []string     `yaml:"saved,omitempty"`
	Timestamp string       `yaml:"timestamp"`
}

// New assembles a report from the configuration, selected image names, final
// state and the files saved locally.
func New(server string, cfg config.RunConfig, images []string, st run.State, saved []string) RunReport {
	r := RunReport{
		Config: ReportConfig{
			Server:      server,
			Model:       cfg.ModelID,
			Endpoint:    cfg.Endpoint,
			APIKeySet:   cfg.APIKey != "",
			Instruction: cfg.Instruction,
			Temperature: cfg.Temperature,
		},
		Images: images,
		Result: ReportResult{
			RunID:          st.RunID,
			Phase:          st.Phase.String(),
			Progress:       st.Progress,
			SuccessCount:   st.SuccessCount,
			FailureCount:   st.FailureCount,
			OutputArtifact: st.OutputArtifact,
		},
		Saved:     saved,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if !st.StartedAt.IsZero() {
		r.Result.StartedAt = st.StartedAt.Format(time.RFC3339)
	}
	if !st.FinishedAt.IsZero() {
		r.Result.FinishedAt = st.FinishedAt.Format(time.RFC3339)
	}
	return r
}

// Save writes the report to dir/run_<timestamp>.yaml and returns the path.
func Save(dir string, r RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, fmt.Sprintf("run_%s.yaml", timestamp))

	data, err := yaml.Marshal(&r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Load reads a report written by Save.
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r RunReport
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
