// Package editor holds the draft a user is composing before it is handed
// to the catalog engine.
package editor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"keerthanaapi/internal/attachment"
	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/keerthana"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUploadInFlight = fmt.Errorf("an upload is still in progress: %w", catalog.ErrConflict)
	ErrNoSuchFile     = errors.New("no notation file at that index")
)

type Uploader interface {
	Upload(ctx context.Context, f attachment.File) (attachment.Result, error)
}

// Submitter persists a finished draft. *catalog.Engine implements it.
type Submitter interface {
	Add(ctx context.Context, f keerthana.Fields) (keerthana.Entry, error)
	Update(ctx context.Context, id string, f keerthana.Fields) (keerthana.Entry, error)
}

// Draft is an entry being created, or edited when EditingID is set.
type Draft struct {
	EditingID string `json:"editingId,omitempty"`
	keerthana.Fields
}

func (d Draft) Editing() bool { return d.EditingID != "" }

type Editor struct {
	uploader Uploader

	mu      sync.Mutex
	draft   Draft
	uploads int
}

func New(uploader Uploader) *Editor {
	return &Editor{uploader: uploader, draft: emptyDraft()}
}

func emptyDraft() Draft {
	return Draft{Fields: keerthana.Fields{NotationFiles: []keerthana.NotationFile{}}}
}

// Draft returns a copy of the current draft.
func (e *Editor) Draft() Draft {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Draft{EditingID: e.draft.EditingID, Fields: e.draft.Fields.Clone()}
}

// Set replaces the text fields. Attached files are kept.
func (e *Editor) Set(f keerthana.Fields) {
	e.mu.Lock()
	defer e.mu.Unlock()
	files := e.draft.NotationFiles
	e.draft.Fields = f.Clone()
	e.draft.NotationFiles = files
}

// Edit loads an existing entry into the draft.
func (e *Editor) Edit(entry keerthana.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = Draft{EditingID: entry.ID, Fields: entry.Fields.Clone()}
	if e.draft.NotationFiles == nil {
		e.draft.NotationFiles = []keerthana.NotationFile{}
	}
}

func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = emptyDraft()
}

// Uploading reports whether a file upload is in flight.
func (e *Editor) Uploading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uploads > 0
}

// AttachFile uploads f and appends it to the draft. On failure the draft's
// files are left as they were.
func (e *Editor) AttachFile(ctx context.Context, f attachment.File) (keerthana.NotationFile, error) {
	e.mu.Lock()
	e.uploads++
	e.mu.Unlock()

	res, err := e.uploader.Upload(ctx, f)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.uploads--
	if err != nil {
		return keerthana.NotationFile{}, err
	}
	file := res.NotationFile()
	e.draft.NotationFiles = append(e.draft.NotationFiles, file)
	return file, nil
}

func (e *Editor) RemoveFile(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.draft.NotationFiles) {
		return ErrNoSuchFile
	}
	e.draft.NotationFiles = slices.Delete(e.draft.NotationFiles, i, i+1)
	return nil
}

// Check reports whether the draft may be submitted now.
func (e *Editor) Check() error {
	if e.Uploading() {
		return ErrUploadInFlight
	}
	return e.Validate()
}

// Submit hands the current draft to s. See SubmitDraft.
func (e *Editor) Submit(ctx context.Context, s Submitter) (keerthana.Entry, error) {
	if e.Uploading() {
		return keerthana.Entry{}, ErrUploadInFlight
	}
	return e.SubmitDraft(ctx, s, e.Draft())
}

// SubmitDraft hands d, a snapshot taken earlier, to s. Edits made to the
// editor since the snapshot are not submitted. A new entry resets the editor
// on success; an edited one is left in place.
func (e *Editor) SubmitDraft(ctx context.Context, s Submitter, d Draft) (keerthana.Entry, error) {
	if err := validateDraft(d); err != nil {
		return keerthana.Entry{}, err
	}

	if d.Editing() {
		updated, err := s.Update(ctx, d.EditingID, d.Fields)
		if err != nil {
			return keerthana.Entry{}, fmt.Errorf("submit edit: %w", err)
		}
		return updated, nil
	}

	created, err := s.Add(ctx, d.Fields)
	if err != nil {
		return keerthana.Entry{}, fmt.Errorf("submit new: %w", err)
	}
	e.Reset()
	return created, nil
}

type draftRules struct {
	Name     string `json:"name" validate:"notblank"`
	Raga     string `json:"raga" validate:"notblank"`
	Tala     string `json:"tala" validate:"notblank"`
	Composer string `json:"composer" validate:"notblank"`
	Deity    string `json:"deity" validate:"notblank"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validate checks the required fields and returns a
// *keerthana.ValidationError naming each missing one.
func (e *Editor) Validate() error {
	return validateDraft(e.Draft())
}

func validateDraft(d Draft) error {
	err := validate.Struct(draftRules{
		Name:     d.Name,
		Raga:     d.Raga,
		Tala:     d.Tala,
		Composer: d.Composer,
		Deity:    d.Deity,
	})
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	problems := make([]keerthana.Problem, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, keerthana.Problem{Field: fe.Field(), Message: fe.Field() + " is required"})
	}
	return &keerthana.ValidationError{Problems: problems}
}
