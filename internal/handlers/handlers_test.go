package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/datagen/internal/client"
	"github.com/lehigh-university-libraries/datagen/internal/config"
	"github.com/lehigh-university-libraries/datagen/internal/dataset"
	"github.com/lehigh-university-libraries/datagen/internal/generation"
	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/lehigh-university-libraries/datagen/internal/providers"
	"github.com/lehigh-university-libraries/datagen/internal/providers/demo"
	"github.com/lehigh-university-libraries/datagen/internal/run"
	"github.com/lehigh-university-libraries/datagen/internal/selection"
	"github.com/lehigh-university-libraries/datagen/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	uploads *storage.FileStore
	outputs *storage.FileStore
	index   *storage.UploadIndex
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	uploads, err := storage.NewFileStore(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	outputs, err := storage.NewFileStore(filepath.Join(dir, "outputs"))
	require.NoError(t, err)
	index := storage.NewUploadIndex()

	demoProvider := demo.New(rand.New(rand.NewSource(7)))
	svc := generation.New(generation.Options{
		Uploads: uploads,
		Outputs: outputs,
		Index:   index,
		Resolve: func(providers.Kind) providers.Provider { return demoProvider },
		Demo:    true,
	})
	h := New(Options{Uploads: uploads, Outputs: outputs, Index: index, Service: svc, MaxUploadBytes: 1024})
	srv := httptest.NewServer(NewRouter(h, []string{"http://localhost:5173"}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, uploads: uploads, outputs: outputs, index: index}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

type part struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandleUpload(t *testing.T) {
	srv := newTestServer(t)
	img := pngBytes(t, 4, 3)

	body, ct := multipartBody(t,
		part{"Cat.PNG", "image/png", img},
		part{"dog.jpg", "image/jpeg", []byte("jpeg")},
	)
	resp, err := http.Post(srv.URL+"/api/upload", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.UploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "Cat.PNG", got.Files[0].OriginalName)
	assert.True(t, strings.HasSuffix(got.Files[0].SavedName, ".png"))
	assert.Equal(t, int64(len(img)), got.Files[0].Size)
	assert.Equal(t, "dog.jpg", got.Files[1].OriginalName)
	assert.NotEqual(t, got.Files[0].SavedName, got.Files[1].SavedName)

	for _, f := range got.Files {
		assert.True(t, srv.uploads.Exists(f.SavedName))
		indexed, ok := srv.index.Get(f.SavedName)
		require.True(t, ok)
		assert.Equal(t, f.OriginalName, indexed.OriginalName)
	}
}

func TestHandleUploadRejects(t *testing.T) {
	tests := []struct {
		name     string
		parts    []part
		wantBody string
	}{
		{"not an image", []part{{"a.png", "image/png", []byte("x")}, {"notes.txt", "text/plain", []byte("x")}}, "File notes.txt is not an image"},
		{"too large", []part{{"big.png", "image/png", make([]byte, 2048)}}, "File big.png too large"},
		{"no files", nil, "No files uploaded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			body, ct := multipartBody(t, tt.parts...)
			resp, err := http.Post(srv.URL+"/api/upload", ct, body)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			raw, _ := io.ReadAll(resp.Body)
			assert.Contains(t, string(raw), tt.wantBody)

			entries, err := srv.uploads.List("*")
			require.NoError(t, err)
			assert.Empty(t, entries, "nothing is stored for a rejected batch")
		})
	}
}

func TestParseGenerateRequest(t *testing.T) {
	valid := url.Values{
		models.FieldEndpoint:    {"https://api.openai.com/v1/chat/completions"},
		models.FieldInstruction: {"Describe."},
		models.FieldFileNames:   {`["a.png","b.png"]`},
	}
	with := func(k, v string) url.Values {
		out := url.Values{}
		for key, vals := range valid {
			out[key] = vals
		}
		if v == "" {
			out.Del(k)
		} else {
			out.Set(k, v)
		}
		return out
	}

	tests := []struct {
		name     string
		form     url.Values
		wantMsg  string
		wantTemp float64
		wantMap  map[string]string
	}{
		{"defaults", valid, "", config.DefaultTemperature, nil},
		{"temperature", with(models.FieldTemperature, "0.2"), "", 0.2, nil},
		{"temperature clamped", with(models.FieldTemperature, "3"), "", 1, nil},
		{"bad temperature", with(models.FieldTemperature, "warm"), "Invalid temperature", 0, nil},
		{"missing endpoint", with(models.FieldEndpoint, ""), "api_endpoint is required", 0, nil},
		{"missing instruction", with(models.FieldInstruction, ""), "system_prompt is required", 0, nil},
		{"missing names", with(models.FieldFileNames, ""), "file_names is required", 0, nil},
		{"bad names", with(models.FieldFileNames, "a.png"), "Invalid file_names", 0, nil},
		{"mapping", with(models.FieldFileMapping, `{"a.png":"cat.png"}`), "", config.DefaultTemperature, map[string]string{"a.png": "cat.png"}},
		{"bad mapping ignored", with(models.FieldFileMapping, `{oops`), "", config.DefaultTemperature, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(tt.form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req, msg := parseGenerateRequest(r)
			if tt.wantMsg != "" {
				assert.Contains(t, msg, tt.wantMsg)
				return
			}
			require.Empty(t, msg)
			assert.Equal(t, []string{"a.png", "b.png"}, req.FileNames)
			assert.InDelta(t, tt.wantTemp, req.Temperature, 1e-9)
			assert.Equal(t, tt.wantMap, req.FileMapping)
		})
	}
}

func TestDownloadOutputsDelete(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.outputs.Write(context.Background(), "train_1.jsonl", []byte("{}\n"))
	require.NoError(t, err)
	_, err = srv.uploads.Write(context.Background(), "u1.png", []byte("png"))
	require.NoError(t, err)
	srv.index.Set(models.UploadedFile{SavedName: "u1.png", OriginalName: "cat.png"})

	resp, err := http.Get(srv.URL + "/api/download/train_1.jsonl")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="train_1.jsonl"`)
	assert.Equal(t, "{}\n", string(raw))

	resp, err = http.Get(srv.URL + "/api/download/missing.jsonl")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	c := client.New(srv.URL, client.WithHTTPClient(srv.Client()))
	files, err := c.Outputs(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "train_1.jsonl", files[0].Name)

	require.NoError(t, c.DeleteUpload(context.Background(), "u1.png"))
	assert.False(t, srv.uploads.Exists("u1.png"))
	_, ok := srv.index.Get("u1.png")
	assert.False(t, ok)

	err = c.DeleteUpload(context.Background(), "u1.png")
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "demo", body["mode"])

	resp, err = http.Get(srv.URL + "/healthcheck")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(raw))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/upload", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

// TestEndToEndDemoRun drives a full run through the client against the demo
// server and checks the artifact it produces.
func TestEndToEndDemoRun(t *testing.T) {
	srv := newTestServer(t)
	c := client.New(srv.URL, client.WithHTTPClient(srv.Client()))

	files := selection.NewStore()
	files.AddFiles(
		selection.Image{Name: "beach.png", MIMEType: "image/png", Data: pngBytes(t, 2, 2)},
		selection.Image{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("skip")},
		selection.Image{Name: "city.png", MIMEType: "image/png", Data: pngBytes(t, 3, 3)},
	)
	cfg := config.NewRunConfig()
	cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	cfg.Instruction = "Describe the image in detail."

	var notices []run.Notice
	orch := run.New(files, cfg, c, c, run.WithNotifier(func(n run.Notice) { notices = append(notices, n) }))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, orch.Start(ctx))

	st := orch.State()
	assert.Equal(t, run.Done, st.Phase)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, 2, st.SuccessCount)
	assert.Equal(t, 0, st.FailureCount)
	require.True(t, strings.HasPrefix(st.OutputArtifact, "train_demo_"))

	var buf bytes.Buffer
	_, err := c.Download(ctx, st.OutputArtifact, &buf)
	require.NoError(t, err)
	recs, err := dataset.ReadJSONL(&buf)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"beach.png"}, recs[0].Images)
	assert.Equal(t, []string{"city.png"}, recs[1].Images)
	assert.Equal(t, dataset.UserPrompt, recs[0].Messages[0].Content)

	require.NotEmpty(t, notices)
	assert.Equal(t, run.NoticeSuccess, notices[len(notices)-1].Kind)
}
