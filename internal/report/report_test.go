package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOmitsAPIKey(t *testing.T) {
	cfg := config.RunConfig{
		ModelID:     "gpt-4-vision",
		Endpoint:    "https://api.example.com/v1/chat/completions",
		APIKey:      "sk-very-secret",
		Instruction: "Describe.",
		Temperature: 0.4,
	}
	st := run.State{
		RunID:          "run-1",
		Phase:          run.Done,
		Progress:       100,
		SuccessCount:   7,
		FailureCount:   3,
		OutputArtifact: "x.jsonl",
		StartedAt:      time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	path, err := Save(t.TempDir(), New("http://localhost:8000", cfg, []string{"a.png", "b.png"}, st, []string{"out/x.jsonl"}))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path[strings.LastIndex(path, "/")+1:], "run_"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-very-secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Config.APIKeySet)
	assert.Equal(t, "gpt-4-vision", loaded.Config.Model)
	assert.Equal(t, []string{"a.png", "b.png"}, loaded.Images)
	assert.Equal(t, "done", loaded.Result.Phase)
	assert.Equal(t, 7, loaded.Result.SuccessCount)
	assert.Equal(t, 3, loaded.Result.FailureCount)
	assert.Equal(t, "x.jsonl", loaded.Result.OutputArtifact)
	assert.Equal(t, "2025-03-01T10:00:00Z", loaded.Result.StartedAt)
	assert.Empty(t, loaded.Result.FinishedAt)
	assert.Equal(t, []string{"out/x.jsonl"}, loaded.Saved)
}
