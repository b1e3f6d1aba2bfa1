package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lepinkainen/libris/internal/cache"
	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/metadata"
)

// ISBNdb fetches books from the paid ISBNdb API.
type ISBNdb struct {
	source
	baseURL string
	apiKey  string
}

// NewISBNdb creates the ISBNdb provider.
func NewISBNdb(cfg config.ProvidersConfig, deps Deps) *ISBNdb {
	return &ISBNdb{
		source:  newSource("ISBNdb", cfg.Timeout, deps),
		baseURL: cfg.ISBNdbBaseURL,
		apiKey:  cfg.ISBNdbAPIKey,
	}
}

// isbndbBookResponse matches the ISBNdb API response structure.
type isbndbBookResponse struct {
	Book struct {
		Title         string   `json:"title"`
		ISBN          string   `json:"isbn"`
		ISBN13        string   `json:"isbn13"`
		Publisher     string   `json:"publisher"`
		Language      string   `json:"language"`
		DatePublished string   `json:"date_published"`
		Pages         *int     `json:"pages"`
		Overview      string   `json:"overview"`
		Synopsis      string   `json:"synopsis"`
		ImageOriginal string   `json:"image_original"`
		Image         string   `json:"image"`
		Authors       []string `json:"authors"`
		Subjects      []string `json:"subjects"`
	} `json:"book"`
}

// Fetch looks up a book by ISBN. Without an API key, or for a source-scoped
// identifier, it reports no data.
func (p *ISBNdb) Fetch(ctx context.Context, identifier string) (metadata.Metadata, error) {
	if p.apiKey == "" {
		return nil, nil
	}
	if _, _, ok := metadata.SourceKey(identifier); ok {
		return nil, nil
	}
	isbn := metadata.NormalizeISBN(identifier)
	return p.lookup(cache.TableISBNdb, isbn, func() (*cachedResult, error) {
		return p.fetchFromAPI(ctx, isbn)
	})
}

func (p *ISBNdb) fetchFromAPI(ctx context.Context, isbn string) (*cachedResult, error) {
	header := http.Header{}
	header.Set("Authorization", p.apiKey)

	var result isbndbBookResponse
	err := p.getJSON(ctx, fmt.Sprintf("%s/book/%s", p.baseURL, url.PathEscape(isbn)), header, &result)
	if errors.Is(err, errNotFound) {
		return &cachedResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	b := result.Book
	if b.Title == "" && b.ISBN == "" && b.ISBN13 == "" {
		return &cachedResult{NotFound: true}, nil
	}

	// "Subjects" is a placeholder entry, not a subject
	subjects := make([]string, 0, len(b.Subjects))
	for _, s := range b.Subjects {
		if s != "" && s != "Subjects" {
			subjects = append(subjects, s)
		}
	}

	description := b.Synopsis
	if description == "" {
		description = b.Overview
	}
	cover := b.ImageOriginal
	if cover == "" {
		cover = b.Image
	}

	data := metadata.Metadata{}
	data.Set(catalog.FieldTitle, b.Title)
	data.Set(catalog.FieldISBN, isbn)
	data.Set(catalog.FieldPublisher, b.Publisher)
	data.Set(catalog.FieldPublishDate, b.DatePublished)
	data.Set(catalog.FieldDescription, description)
	data.Set(catalog.FieldCoverURL, cover)
	data.Set(catalog.FieldAuthors, metadata.NormalizeList(b.Authors))
	data.Set(catalog.FieldSubjects, subjects)
	data.Set(catalog.FieldLanguage, metadata.NormalizeLanguages([]string{b.Language}))
	if b.Pages != nil && *b.Pages > 0 {
		data.Set(catalog.FieldPageCount, *b.Pages)
	}

	return &cachedResult{Data: data}, nil
}
