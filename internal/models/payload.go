package models

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Payload field names written by the stages, in the order they appear.
const (
	KeySourceRef = "sourceRef"

	KeyContentType = "contentType"
	KeyEncoding    = "encoding"
	KeyFileName    = "fileName"
	KeyPageCount   = "pageCount"
	KeySizeBytes   = "sizeBytes"
	KeyFileHash    = "fileHash"
	KeyOwner       = "owner"
	KeyTags        = "tags"
	KeyName        = "name"
	KeyUploadedAt  = "uploadedAt"

	KeyThumbnailRef = "thumbnailRef"
	KeyJobID        = "jobId"
	KeyRawResult    = "rawResult"
	KeyRawResultRef = "rawResultRef"

	KeyText           = "text"
	KeyConfidences    = "confidences"
	KeyMeanConfidence = "meanConfidence"
	KeyBlockCount     = "blockCount"

	KeyPersisted = "persisted"
)

// ErrPayloadConflict is returned when a merge would overwrite a field that an
// earlier stage already wrote with a different value.
var ErrPayloadConflict = errors.New("payload field already written")

// Payload is the append-only field map threaded between stages.
type Payload map[string]any

// Clone copies the map. Values are shared.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	c := make(Payload, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Merge adds every field of other to p. Re-writing a field with an identical
// value is a no-op; a different value fails the whole merge and leaves p
// untouched.
func (p Payload) Merge(other Payload) error {
	var conflicts []string
	for k, v := range other {
		if existing, ok := p[k]; ok && !reflect.DeepEqual(existing, v) {
			conflicts = append(conflicts, k)
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("%w: %v", ErrPayloadConflict, conflicts)
	}
	for k, v := range other {
		p[k] = v
	}
	return nil
}

// String returns the string field key, or "" when absent or of another type.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Int returns the integer field key. Firestore round-trips integers as int64,
// so every integer kind is accepted.
func (p Payload) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Float returns the float field key.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Strings returns the string slice field key.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Floats returns the float slice field key.
func (p Payload) Floats(key string) []float64 {
	switch v := p[key].(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			if f, ok := item.(float64); ok {
				out = append(out, f)
			}
		}
		return out
	}
	return nil
}

// Time returns the timestamp field key.
func (p Payload) Time(key string) time.Time {
	t, _ := p[key].(time.Time)
	return t
}
