package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Book is the stored record of a book's intrinsic metadata plus its
// enrichment state. Copy- and reader-specific data live elsewhere.
type Book struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	ISBN        string   `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	Publisher   string   `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	PublishDate string   `json:"publish_date,omitempty" yaml:"publish_date,omitempty"`
	Subjects    []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Language    []string `json:"language,omitempty" yaml:"language,omitempty"`
	PageCount   *int     `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	Series      string   `json:"series,omitempty" yaml:"series,omitempty"`

	MetadataStatus    Status    `json:"metadata_status" yaml:"metadata_status"`
	MetadataCandidate Candidate `json:"metadata_candidate" yaml:"metadata_candidate,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// NewBook creates a pending book record with a fresh identifier.
func NewBook(title string) *Book {
	now := time.Now().UTC()
	return &Book{
		ID:             uuid.NewString(),
		Title:          title,
		MetadataStatus: StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Value returns the current value of field f, or nil for unknown fields.
func (b *Book) Value(f Field) any {
	switch f {
	case FieldTitle:
		return b.Title
	case FieldAuthors:
		return b.Authors
	case FieldISBN:
		return b.ISBN
	case FieldPublisher:
		return b.Publisher
	case FieldDescription:
		return b.Description
	case FieldPublishDate:
		return b.PublishDate
	case FieldSubjects:
		return b.Subjects
	case FieldLanguage:
		return b.Language
	case FieldPageCount:
		if b.PageCount == nil {
			return nil
		}
		return *b.PageCount
	case FieldCoverURL:
		return b.CoverURL
	case FieldSeries:
		return b.Series
	}
	return nil
}

// SetValue writes v into field f. A nil value clears the field.
func (b *Book) SetValue(f Field, v any) error {
	cv, err := Coerce(f, v)
	if err != nil {
		return err
	}

	str := func() string {
		if cv == nil {
			return ""
		}
		return cv.(string)
	}
	list := func() []string {
		if cv == nil {
			return nil
		}
		return cv.([]string)
	}

	switch f {
	case FieldTitle:
		b.Title = str()
	case FieldAuthors:
		b.Authors = list()
	case FieldISBN:
		b.ISBN = str()
	case FieldPublisher:
		b.Publisher = str()
	case FieldDescription:
		b.Description = str()
	case FieldPublishDate:
		b.PublishDate = str()
	case FieldSubjects:
		b.Subjects = list()
	case FieldLanguage:
		b.Language = list()
	case FieldPageCount:
		if cv == nil {
			b.PageCount = nil
		} else {
			n := cv.(int)
			b.PageCount = &n
		}
	case FieldCoverURL:
		b.CoverURL = str()
	case FieldSeries:
		b.Series = str()
	default:
		return fmt.Errorf("unknown field %q", f)
	}
	return nil
}

// Touch bumps UpdatedAt.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now().UTC()
}
