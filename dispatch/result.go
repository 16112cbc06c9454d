package dispatch

import "github.com/cliproom/cliproom/services/processor"

// RetrievalPathPrefix is where the session API streams finished renditions
// from. Results point at it so the presentation layer never needs to know
// the processing service's address.
const RetrievalPathPrefix = "/api/results/"

// Result is what a finished operation leaves behind for the presentation
// layer.
type Result struct {
	FileID       string `json:"fileID"`
	RetrievalRef string `json:"retrievalRef"`
	Message      string `json:"message"`
	Kind         Kind   `json:"kind"`
}

func NewResult(kind Kind, processed *processor.ProcessResult) *Result {
	return &Result{
		FileID:       processed.FileID,
		RetrievalRef: RetrievalPathPrefix + processed.FileID,
		Message:      processed.Message,
		Kind:         kind,
	}
}
