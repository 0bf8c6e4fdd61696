package cmd

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/datagen/internal/dataset"
	"github.com/lehigh-university-libraries/datagen/internal/generation"
	"github.com/lehigh-university-libraries/datagen/internal/handlers"
	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"github.com/lehigh-university-libraries/datagen/internal/providers/demo"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func demoServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	uploads, err := storage.NewFileStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	outputs, err := storage.NewFileStore(filepath.Join(dir, "outputs"))
	require.NoError(t, err)
	index := storage.NewUploadIndex()
	p := demo.New(rand.New(rand.NewSource(1)))
	svc := generation.New(generation.Options{
		Uploads: uploads,
		Outputs: outputs,
		Index:   index,
		Resolve: func(providers.Kind) providers.Provider { return p },
		Demo:    true,
	})
	h := handlers.New(handlers.Options{Uploads: uploads, Outputs: outputs, Index: index, Service: svc})
	srv := httptest.NewServer(handlers.NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))))
}

func TestGenerateCommand(t *testing.T) {
	srv := demoServer(t)
	imgDir := t.TempDir()
	writePNG(t, filepath.Join(imgDir, "a.png"))
	writePNG(t, filepath.Join(imgDir, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "readme.txt"), []byte("not an image"), 0644))
	outDir := t.TempDir()
	reportDir := t.TempDir()

	out, err := execute(t, "generate", imgDir,
		"--server", srv.URL,
		"--endpoint", "https://api.openai.com/v1/chat/completions",
		"--default-instruction",
		"--output-dir", outDir,
		"--format", "parquet",
		"--report", reportDir,
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "[100%] done")
	assert.Contains(t, out, "✅")

	parquets, err := filepath.Glob(filepath.Join(outDir, "train_demo_*.parquet"))
	require.NoError(t, err)
	require.Len(t, parquets, 1)
	recs, err := dataset.Load(parquets[0])
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"a.png"}, recs[0].Images)
	assert.Equal(t, []string{"b.png"}, recs[1].Images)

	reports, err := filepath.Glob(filepath.Join(reportDir, "run_*.yaml"))
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestGenerateCommandRejected(t *testing.T) {
	out, err := execute(t, "generate", "--server", "http://127.0.0.1:1", "--endpoint", "http://x", "--instruction", "Describe.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no images")
	assert.Contains(t, out, "please add images first")
}

func TestGenerateCommandBadFormat(t *testing.T) {
	_, err := execute(t, "generate", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.jsonl")
	require.NoError(t, dataset.Save(src, []dataset.Record{dataset.NewRecord("cat.png", "A cat.")}))

	dst := filepath.Join(dir, "out.parquet")
	out, err := execute(t, "convert", src, dst)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Converted 1 records"))

	recs, err := dataset.Load(dst)
	require.NoError(t, err)
	assert.Equal(t, "A cat.", recs[0].Description())
}

func TestOutputsCommand(t *testing.T) {
	srv := demoServer(t)
	out, err := execute(t, "outputs", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "No datasets generated yet")
}
