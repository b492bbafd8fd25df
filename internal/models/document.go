package models

import "time"

// Document is the enriched record written to the document store once an
// execution reaches its persistence stage. It is replaced as a whole on every
// write so a reader never observes a partially enriched record.
type Document struct {
	ID             string      `firestore:"id" json:"id"`
	Name           string      `firestore:"name,omitempty" json:"name,omitempty"`
	SourceRef      string      `firestore:"sourceRef" json:"sourceRef"`
	ThumbnailRef   string      `firestore:"thumbnailRef" json:"thumbnailRef"`
	Text           string      `firestore:"text" json:"text"`
	Confidences    []float64   `firestore:"confidences,omitempty" json:"confidences,omitempty"`
	MeanConfidence float64     `firestore:"meanConfidence,omitempty" json:"meanConfidence,omitempty"`
	FileDetails    FileDetails `firestore:"fileDetails" json:"fileDetails"`
	PageCount      int         `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	FileHash       string      `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	Owner          string      `firestore:"owner,omitempty" json:"owner,omitempty"`
	Tags           []string    `firestore:"tags,omitempty" json:"tags,omitempty"`
	UploadedAt     time.Time   `firestore:"uploadedAt,omitempty" json:"uploadedAt,omitempty"`
	ExecutionID    string      `firestore:"executionId,omitempty" json:"executionId,omitempty"` // For traceability
}

// FileDetails describes the uploaded source object.
type FileDetails struct {
	Encoding    string `firestore:"encoding,omitempty" json:"encoding,omitempty"`
	ContentType string `firestore:"contentType,omitempty" json:"contentType,omitempty"`
	FileName    string `firestore:"fileName,omitempty" json:"fileName,omitempty"`
}
