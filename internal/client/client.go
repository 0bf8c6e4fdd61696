// Package client talks to the upload, generate and download endpoints of a
// dataset generation server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/datagen/internal/models"
	"github.com/lehigh-university-libraries/datagen/internal/selection"
	"github.com/rs/zerolog"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: HTTP %d - %s", e.Op, e.StatusCode, e.Body)
}

// Client addresses <base>/api/<name>.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. No timeout is applied
// unless the supplied client has one.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends every image as a repeated "files" part of one multipart
// request and returns the stored names in submission order.
func (c *Client) Upload(ctx context.Context, images []selection.Image) ([]models.UploadedFile, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, img := range images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, models.FieldFiles, quoteEscaper.Replace(img.Name)))
		h.Set("Content-Type", img.MIMEType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create form part for %s: %w", img.Name, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, fmt.Errorf("failed to write form part for %s: %w", img.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish upload form: %w", err)
	}

	c.logger.Debug().Int("files", len(images)).Int("bytes", body.Len()).Msg("Uploading images")

	var result models.UploadResponse
	if err := c.postForm(ctx, "upload", w.FormDataContentType(), body, &result); err != nil {
		return nil, err
	}
	if len(result.Files) != len(images) {
		return nil, fmt.Errorf("upload returned %d files for %d submitted", len(result.Files), len(images))
	}
	return result.Files, nil
}

// Generate asks the server to run the model over the uploaded files.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	names, err := json.Marshal(req.FileNames)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file names: %w", err)
	}
	mapping := req.FileMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	mappingJSON, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to encode file mapping: %w", err)
	}

	fields := [][2]string{
		{models.FieldEndpoint, req.Endpoint},
	}
	if req.APIKey != "" {
		fields = append(fields, [2]string{models.FieldAPIKey, req.APIKey})
	}
	fields = append(fields,
		[2]string{models.FieldInstruction, req.Instruction},
		[2]string{models.FieldTemperature, strconv.FormatFloat(req.Temperature, 'f', -1, 64)},
		[2]string{models.FieldFileNames, string(names)},
		[2]string{models.FieldFileMapping, string(mappingJSON)},
	)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish generate form: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", req.Endpoint).
		Bool("api_key", req.APIKey != "").
		Int("files", len(req.FileNames)).
		Msg("Requesting generation")

	var result models.GenerateResponse
	if err := c.postForm(ctx, "generate", w.FormDataContentType(), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadURL is the addressable location of a generated artifact.
func (c *Client) DownloadURL(name string) string {
	return c.baseURL + "/api/download/" + url.PathEscape(name)
}

// Download streams the named artifact into w.
func (c *Client) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(name), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := c.do(req, "download")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return n, nil
}

// Outputs lists the datasets available on the server, newest first.
func (c *Client) Outputs(ctx context.Context) ([]models.OutputFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("outputs"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create outputs request: %w", err)
	}
	resp, err := c.do(req, "outputs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result models.OutputsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode outputs response: %w", err)
	}
	return result.Files, nil
}

// DeleteUpload removes a stored image from the server.
func (c *Client) DeleteUpload(ctx context.Context, savedName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("uploads/"+url.PathEscape(savedName)), nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}
	resp, err := c.do(req, "delete upload")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) endpoint(name string) string {
	return c.baseURL + "/api/" + name
}

func (c *Client) postForm(ctx context.Context, name, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(name), body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.do(req, name)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}

// do sends req and turns transport failures and non-2xx answers into errors.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("Server returned an error")
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}
