// Package attachment uploads notation files to object storage and returns
// their durable public URLs.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"keerthanaapi/internal/keerthana"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// sniffLen is how much of an undeclared upload is read to detect its type.
const sniffLen = 3072

// File is an upload as received from a client.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Result describes a stored file.
type Result struct {
	Key  string
	Name string
	URL  string
	Kind keerthana.Kind
}

// NotationFile converts the result to the entry representation.
func (r Result) NotationFile() keerthana.NotationFile {
	return keerthana.NotationFile{Name: r.Name, URL: r.URL, Kind: r.Kind}
}

// ObjectStore is a bucket of named binary objects with public URLs.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	PublicURL(key string) string
}

// UploadError is returned when object storage rejects an upload.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

var ErrEmptyFile = errors.New("file is empty")

type Uploader struct {
	store  ObjectStore
	now    func() time.Time
	random func() string
}

func NewUploader(store ObjectStore) *Uploader {
	return &Uploader{
		store: store,
		now:   time.Now,
		random: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		},
	}
}

// Upload stores f under a generated key. Failures are not retried.
func (u *Uploader) Upload(ctx context.Context, f File) (Result, error) {
	if f.Body == nil {
		return Result{}, &UploadError{Name: f.Name, Err: ErrEmptyFile}
	}

	contentType := strings.TrimSpace(f.ContentType)
	body := f.Body
	if contentType == "" || contentType == "application/octet-stream" {
		header := make([]byte, sniffLen)
		n, err := io.ReadFull(body, header)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return Result{}, &UploadError{Name: f.Name, Err: err}
		}
		if n == 0 {
			return Result{}, &UploadError{Name: f.Name, Err: ErrEmptyFile}
		}
		contentType = mimetype.Detect(header[:n]).String()
		body = io.MultiReader(bytes.NewReader(header[:n]), body)
	}

	key := ObjectKey(f.Name, u.now(), u.random())
	if err := u.store.Put(ctx, key, contentType, body); err != nil {
		return Result{}, &UploadError{Name: f.Name, Err: err}
	}

	return Result{
		Key:  key,
		Name: f.Name,
		URL:  u.store.PublicURL(key),
		Kind: Classify(contentType),
	}, nil
}

// ObjectKey builds a storage key from a millisecond timestamp, a random
// component and the original extension. The original name is never used.
func ObjectKey(name string, now time.Time, random string) string {
	key := fmt.Sprintf("%d-%s", now.UnixMilli(), random)
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if ext != "" && ext != "." && !strings.ContainsAny(ext, `/\ `) {
		key += ext
	}
	return key
}

// Classify maps a declared media type to a notation kind. Anything that is
// not a PDF is treated as an image.
func Classify(contentType string) keerthana.Kind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if mediaType == "application/pdf" {
		return keerthana.KindPDF
	}
	return keerthana.KindImage
}
