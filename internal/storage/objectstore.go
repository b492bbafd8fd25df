// Package storage provides the object stores that hold uploaded sources and
// derived assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the referenced object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrInvalidRef indicates a reference that is not scheme://bucket/key.
	ErrInvalidRef = errors.New("invalid object reference")
)

// Object is a fetched object with the attributes the pipeline reads.
type Object struct {
	Data            []byte
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
	Created         time.Time
}

// DetectedContentType returns the media type of the object without
// parameters. The stored type wins unless it is missing or the generic
// application/octet-stream, in which case the content is sniffed.
func (o *Object) DetectedContentType() string {
	ct := o.ContentType
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(o.Data)
	}
	if base, _, err := mime.ParseMediaType(ct); err == nil {
		return base
	}
	return ct
}

// ObjectStore reads and writes whole objects addressed by URI references.
type ObjectStore interface {
	// Get fetches the object. A missing object yields an error wrapping ErrNotFound.
	Get(ctx context.Context, ref string) (*Object, error)
	// Put writes data and returns the reference of the written object.
	Put(ctx context.Context, ref string, data []byte, contentType string) (string, error)
	// Ref builds a reference to bucket/key for this store.
	Ref(bucket, key string) string
}

// Ref is a parsed object reference.
type Ref struct {
	Scheme string
	Bucket string
	Key    string
}

func (r Ref) String() string {
	return fmt.Sprintf("%s://%s/%s", r.Scheme, r.Bucket, r.Key)
}

// ParseRef splits scheme://bucket/key. The key is taken verbatim: object
// names may contain '#', '?' and '%', none of which is an escape here.
func ParseRef(ref string) (Ref, error) {
	scheme, rest, ok := strings.Cut(ref, "://")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "/?#") {
		return Ref{}, fmt.Errorf("%w %q: want scheme://bucket/key", ErrInvalidRef, ref)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("%w %q: want scheme://bucket/key", ErrInvalidRef, ref)
	}
	return Ref{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

func parseRefWithScheme(ref, scheme string) (Ref, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return Ref{}, err
	}
	if r.Scheme != scheme {
		return Ref{}, fmt.Errorf("%w %q: this store serves %s:// references", ErrInvalidRef, ref, scheme)
	}
	return r, nil
}
