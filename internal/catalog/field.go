package catalog

import "sort"

// Field names a book attribute that metadata enrichment may read or write.
// Only fields listed here are ever touched by reconciliation.
type Field string

const (
	FieldTitle       Field = "title"
	FieldAuthors     Field = "authors"
	FieldISBN        Field = "isbn"
	FieldPublisher   Field = "publisher"
	FieldDescription Field = "description"
	FieldPublishDate Field = "publish_date"
	FieldSubjects    Field = "subjects"
	FieldLanguage    Field = "language"
	FieldPageCount   Field = "page_count"
	FieldCoverURL    Field = "cover_url"
	FieldSeries      Field = "series"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindList
	kindInt
)

var fieldKinds = map[Field]fieldKind{
	FieldTitle:       kindString,
	FieldAuthors:     kindList,
	FieldISBN:        kindString,
	FieldPublisher:   kindString,
	FieldDescription: kindString,
	FieldPublishDate: kindString,
	FieldSubjects:    kindList,
	FieldLanguage:    kindList,
	FieldPageCount:   kindInt,
	FieldCoverURL:    kindString,
	FieldSeries:      kindString,
}

// AllFields returns the enrichable fields in a stable order.
func AllFields() []Field {
	fields := make([]Field, 0, len(fieldKinds))
	for f := range fieldKinds {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// ParseField reports whether name is a known enrichable field.
func ParseField(name string) (Field, bool) {
	f := Field(name)
	_, ok := fieldKinds[f]
	return f, ok
}

// IsList reports whether the field holds a list of strings.
func (f Field) IsList() bool {
	return fieldKinds[f] == kindList
}
