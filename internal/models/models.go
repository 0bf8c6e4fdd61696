package models

import "time"

// Multipart form field names shared by the client and the server.
const (
	FieldFiles       = "files"
	FieldEndpoint    = "api_endpoint"
	FieldAPIKey      = "api_key"
	FieldInstruction = "system_prompt"
	FieldTemperature = "temperature"
	FieldFileNames   = "file_names"
	FieldFileMapping = "file_mapping"
)

// Per-file outcome of a generation run.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// UploadedFile describes one stored image
type UploadedFile struct {
	SavedName    string `json:"saved_name"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
}

// UploadResponse is the body of a successful POST /api/upload
type UploadResponse struct {
	Success bool           `json:"success"`
	Files   []UploadedFile `json:"files"`
	Count   int            `json:"count"`
}

// GenerateRequest is the client-side view of the POST /api/generate form.
type GenerateRequest struct {
	Endpoint    string
	APIKey      string
	Instruction string
	Temperature float64
	FileNames   []string
	FileMapping map[string]string
}

// GenerateResponse is the body of a successful POST /api/generate
type GenerateResponse struct {
	Success    int          `json:"success"`
	Failed     int          `json:"failed"`
	OutputFile string       `json:"output_file,omitempty"`
	Details    []FileDetail `json:"details,omitempty"`
}

// FileDetail reports what happened to a single served file
type FileDetail struct {
	File        string `json:"file"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// OutputFile is a generated dataset available for download
type OutputFile struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// OutputsResponse is the body of GET /api/outputs
type OutputsResponse struct {
	Files []OutputFile `json:"files"`
}
