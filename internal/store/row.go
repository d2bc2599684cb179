package store

import (
	"encoding/json"
	"fmt"
	"time"

	"keerthanaapi/internal/keerthana"
)

// keerthanaRow mirrors the keerthanas table. Nullable columns are pointers
// or nil slices so that "absent" is always SQL NULL.
type keerthanaRow struct {
	ID            string
	Name          string
	Raga          string
	Tala          string
	Composer      string
	Deity         string
	DateTaught    *time.Time
	Lyrics        *string
	Meaning       *string
	NotationFiles []byte // jsonb array of notationFileRow
	CreatedAt     time.Time
}

// notationFileRow is the stored shape of a notation file. The kind column
// is called "type" in the table.
type notationFileRow struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// toRow converts entry fields to their stored representation.
func toRow(f keerthana.Fields) (keerthanaRow, error) {
	r := keerthanaRow{
		Name:     f.Name,
		Raga:     f.Raga,
		Tala:     f.Tala,
		Composer: f.Composer,
		Deity:    f.Deity,
		Lyrics:   nullString(f.Lyrics),
		Meaning:  nullString(f.Meaning),
	}
	if f.DateTaught != nil {
		t := f.DateTaught.Time()
		r.DateTaught = &t
	}
	if len(f.NotationFiles) > 0 {
		files := make([]notationFileRow, len(f.NotationFiles))
		for i, nf := range f.NotationFiles {
			files[i] = notationFileRow{Name: nf.Name, URL: nf.URL, Type: string(nf.Kind)}
		}
		b, err := json.Marshal(files)
		if err != nil {
			return keerthanaRow{}, fmt.Errorf("encode notation files: %w", err)
		}
		r.NotationFiles = b
	}
	return r, nil
}

// fromRow converts a stored row back to an entry.
func fromRow(r keerthanaRow) (keerthana.Entry, error) {
	e := keerthana.Entry{
		ID: r.ID,
		Fields: keerthana.Fields{
			Name:          r.Name,
			Raga:          r.Raga,
			Tala:          r.Tala,
			Composer:      r.Composer,
			Deity:         r.Deity,
			Lyrics:        deref(r.Lyrics),
			Meaning:       deref(r.Meaning),
			NotationFiles: []keerthana.NotationFile{},
		},
		CreatedAt: r.CreatedAt,
	}
	if r.DateTaught != nil {
		d := keerthana.DateOf(*r.DateTaught)
		e.DateTaught = &d
	}
	if len(r.NotationFiles) > 0 && string(r.NotationFiles) != "null" {
		var files []notationFileRow
		if err := json.Unmarshal(r.NotationFiles, &files); err != nil {
			return keerthana.Entry{}, fmt.Errorf("decode notation files of %s: %w", r.ID, err)
		}
		for _, nf := range files {
			kind := keerthana.KindImage
			if nf.Type == string(keerthana.KindPDF) {
				kind = keerthana.KindPDF
			}
			e.NotationFiles = append(e.NotationFiles, keerthana.NotationFile{Name: nf.Name, URL: nf.URL, Kind: kind})
		}
	}
	return e, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
