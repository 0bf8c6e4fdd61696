package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	r := NewRecord("cat.png", "A cat on a sofa.")

	require.Len(t, r.Messages, 2)
	assert.Equal(t, Message{Role: "user", Content: UserPrompt}, r.Messages[0])
	assert.Equal(t, Message{Role: "assistant", Content: "A cat on a sofa."}, r.Messages[1])
	assert.Equal(t, []string{"cat.png"}, r.Images)
	assert.Equal(t, "A cat on a sofa.", r.Description())
	assert.Empty(t, (&Record{}).Description())
}

func TestWriteJSONLFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, []Record{
		NewRecord("一.png", "画面 <宁静>"),
		NewRecord("b.jpg", "second"),
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"messages":[{"role":"user","content":"<image>Describe this image"},{"role":"assistant","content":"画面 <宁静>"}],"images":["一.png"]}`,
		lines[0])
}

func TestReadJSONL(t *testing.T) {
	input := "\n" + `{"messages":[{"role":"assistant","content":"x"}],"images":["a.png"]}` + "\n\n"
	records, err := ReadJSONL(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].Description())

	_, err = ReadJSONL(strings.NewReader("{not json}\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestConvertFileToParquet(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "train.jsonl")
	dst := filepath.Join(dir, "train.parquet")

	records := []Record{
		NewRecord("a.png", "first description"),
		NewRecord("b.png", "second description"),
		NewRecord("c.png", "third description"),
	}
	require.NoError(t, Save(src, records))

	n, err := ConvertFile(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loaded, err := Load(dst)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "train.csv"))
	assert.ErrorContains(t, err, "unsupported file format")

	err = Save(filepath.Join(dir, "train.csv"), nil)
	assert.ErrorContains(t, err, "unsupported file format")
	_, statErr := os.Stat(filepath.Join(dir, "train.csv"))
	assert.True(t, os.IsNotExist(statErr))
}
