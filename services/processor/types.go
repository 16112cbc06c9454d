package processor

import "io"

// File is one clip payload for a multipart upload. The reader is consumed
// exactly once and is not closed by the client.
type File struct {
	Name   string
	Reader io.Reader
}

// Bounds is a trim window in seconds.
type Bounds struct {
	Start float64
	End   float64
}

// ProcessResult is the service's success envelope. FileID names the stored
// rendition and is the key for a later Retrieve.
type ProcessResult struct {
	Success bool   `json:"success"`
	FileID  string `json:"file_id"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type HealthStatus struct {
	Status string `json:"status"`
}

// Retrieval is a streamed rendition. The caller owns Body and must close it.
type Retrieval struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Disposition   string
}
