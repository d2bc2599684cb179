package keerthana

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a keerthana is not found.
	ErrNotFound = errors.New("keerthana not found")
	// ErrInvalid is matched by every validation failure.
	ErrInvalid = errors.New("invalid keerthana")
)

// Kind classifies a notation file.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// NotationFile is an attached notation document. URL is always produced by
// the attachment uploader.
type NotationFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
}

// Fields holds everything about a keerthana except its identity.
// Empty Lyrics and Meaning mean "absent".
type Fields struct {
	Name          string         `json:"name"`
	Raga          string         `json:"raga"`
	Tala          string         `json:"tala"`
	Composer      string         `json:"composer"`
	Deity         string         `json:"deity"`
	DateTaught    *Date          `json:"dateTaught,omitempty"`
	Lyrics        string         `json:"lyrics,omitempty"`
	Meaning       string         `json:"meaning,omitempty"`
	NotationFiles []NotationFile `json:"notationFiles"`
}

// Entry is a catalogued composition confirmed by the record store.
type Entry struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time `json:"createdAt"`
}

// Field returns the entry's value for a classification field.
func (e Entry) Field(c Classification) string {
	return e.Fields.Field(c)
}

// Field returns the value for a classification field, or "" for All.
func (f Fields) Field(c Classification) string {
	switch c {
	case Raga:
		return f.Raga
	case Tala:
		return f.Tala
	case Composer:
		return f.Composer
	case Deity:
		return f.Deity
	}
	return ""
}

// Clone returns a copy that shares no slices with f.
func (f Fields) Clone() Fields {
	out := f
	out.NotationFiles = slices.Clone(f.NotationFiles)
	if f.DateTaught != nil {
		d := *f.DateTaught
		out.DateTaught = &d
	}
	return out
}

// Validate reports every required field that is empty or whitespace.
func (f Fields) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"raga", f.Raga},
		{"tala", f.Tala},
		{"composer", f.Composer},
		{"deity", f.Deity},
	}

	var problems []Problem
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, Problem{Field: r.name, Message: r.name + " is required"})
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Problem describes one invalid field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any network call when a draft is incomplete.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, ", "))
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Date is a calendar date without time of day.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

// Equal reports whether both dates are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
