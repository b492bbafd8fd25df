package models

import (
	"fmt"
	"strings"
)

// These structs define the JSON payloads exchanged with the trigger and the
// text-detection worker function.

// GCSEvent is the data of a Cloud Storage "object finalized" CloudEvent.
type GCSEvent struct {
	Bucket   string            `json:"bucket"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ObjectRef returns the gs:// URI of the object the event refers to.
func (e GCSEvent) ObjectRef() string {
	return fmt.Sprintf("gs://%s/%s", e.Bucket, strings.TrimPrefix(e.Name, "/"))
}

// UploadEvent converts the storage notification into a pipeline trigger. A
// documentId custom metadata entry set by the uploader is carried over.
func (e GCSEvent) UploadEvent() UploadEvent {
	return UploadEvent{
		ObjectRef:  e.ObjectRef(),
		DocumentID: e.Metadata["documentId"],
	}
}

// TextDetectionRequest is the input of the text-detector function, sent by
// the text-detection workflow.
type TextDetectionRequest struct {
	ObjectRef   string `json:"objectRef"`
	ExecutionID string `json:"executionId,omitempty"`
}

// TextDetectionResponse is the output of the text-detector function. Result
// is the RawResult the workflow hands back as its execution result.
type TextDetectionResponse struct {
	Status string    `json:"status"`
	Result RawResult `json:"result"`
}
