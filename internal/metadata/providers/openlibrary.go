package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/libris/internal/cache"
	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/config"
	"github.com/lepinkainen/libris/internal/metadata"
)

// maxAuthorLookups caps the follow-up requests used to resolve author refs.
const maxAuthorLookups = 3

// OpenLibrary fetches editions and works from openlibrary.org.
type OpenLibrary struct {
	source
	baseURL   string
	coversURL string
}

// Compile-time check that OpenLibrary implements metadata.Searcher.
var _ metadata.Searcher = (*OpenLibrary)(nil)

// NewOpenLibrary creates the OpenLibrary provider.
func NewOpenLibrary(cfg config.ProvidersConfig, deps Deps) *OpenLibrary {
	return &OpenLibrary{
		source:    newSource("OpenLibrary", cfg.Timeout, deps),
		baseURL:   cfg.OpenLibraryBaseURL,
		coversURL: cfg.OpenLibraryCoversURL,
	}
}

// openLibraryEdition matches /isbn/{isbn}.json.
type openLibraryEdition struct {
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Authors       []any  `json:"authors"`
	Publishers    []any  `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	Languages     []any  `json:"languages"`
	Description   any    `json:"description"`
	Series        any    `json:"series"`
	Subjects      []any  `json:"subjects"`
	NumberOfPages int    `json:"number_of_pages"`
	Works         []struct {
		Key string `json:"key"`
	} `json:"works"`
}

// openLibraryWork matches /works/{id}.json.
type openLibraryWork struct {
	Title       string `json:"title"`
	Covers      []int  `json:"covers"`
	Description any    `json:"description"`
	Series      any   `json:"series"`
	Subjects    []any `json:"subjects"`
	Authors     []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

type openLibraryAuthor struct {
	Name string `json:"name"`
}

// Fetch looks up an edition by ISBN and enriches it with its work record.
// An "openlibrary:/works/<id>" identifier reads the work alone.
func (p *OpenLibrary) Fetch(ctx context.Context, identifier string) (metadata.Metadata, error) {
	if prefix, key, ok := metadata.SourceKey(identifier); ok {
		if prefix != metadata.OpenLibraryWorkPrefix || !strings.HasPrefix(key, "/works/") {
			return nil, nil
		}
		return p.lookup(cache.TableOpenLibrary, prefix+key, func() (*cachedResult, error) {
			return p.fetchWork(ctx, key)
		})
	}

	isbn := metadata.NormalizeISBN(identifier)
	return p.lookup(cache.TableOpenLibrary, isbn, func() (*cachedResult, error) {
		return p.fetchFromAPI(ctx, isbn)
	})
}

func (p *OpenLibrary) fetchFromAPI(ctx context.Context, isbn string) (*cachedResult, error) {
	var edition openLibraryEdition
	err := p.getJSON(ctx, fmt.Sprintf("%s/isbn/%s.json", p.baseURL, url.PathEscape(isbn)), nil, &edition)
	if errors.Is(err, errNotFound) {
		slog.Debug("OpenLibrary has no edition", "isbn", isbn)
		return &cachedResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	var work *openLibraryWork
	if len(edition.Works) > 0 && edition.Works[0].Key != "" {
		var w openLibraryWork
		if err := p.getJSON(ctx, p.baseURL+edition.Works[0].Key+".json", nil, &w); err != nil {
			slog.Debug("OpenLibrary work lookup failed", "isbn", isbn, "work", edition.Works[0].Key, "error", err)
		} else {
			work = &w
		}
	}

	data := metadata.Metadata{}
	data.Set(catalog.FieldTitle, edition.Title)
	data.Set(catalog.FieldISBN, isbn)
	data.Set(catalog.FieldPublishDate, edition.PublishDate)
	data.Set(catalog.FieldCoverURL, fmt.Sprintf("%s/b/isbn/%s-L.jpg", p.coversURL, url.PathEscape(isbn)))
	if edition.NumberOfPages > 0 {
		data.Set(catalog.FieldPageCount, edition.NumberOfPages)
	}
	if publishers := metadata.NormalizeList(edition.Publishers); len(publishers) > 0 {
		data.Set(catalog.FieldPublisher, publishers[0])
	}

	authors := metadata.NormalizeList(edition.Authors)
	if len(authors) == 0 {
		authors = p.resolveAuthors(ctx, edition, work)
	}
	data.Set(catalog.FieldAuthors, authors)

	// languages come as {"key": "/languages/eng"} refs
	data.Set(catalog.FieldLanguage, metadata.NormalizeLanguages(refKeys(edition.Languages)))

	description := metadata.NormalizeDescription(edition.Description)
	subjects := metadata.NormalizeList(edition.Subjects)
	series := metadata.ExtractSeries(edition.Series)
	if work != nil {
		if description == "" {
			description = metadata.NormalizeDescription(work.Description)
		}
		if series == "" {
			series = metadata.ExtractSeries(work.Series)
		}
		if series == "" {
			series = metadata.SeriesFromSubjects(work.Subjects)
		}
		if len(subjects) == 0 {
			subjects = metadata.NormalizeList(work.Subjects)
		}
	}
	data.Set(catalog.FieldDescription, description)
	data.Set(catalog.FieldSeries, series)
	data.Set(catalog.FieldSubjects, subjects)

	slog.Debug("Fetched metadata from OpenLibrary", "isbn", isbn, "fields", len(data))
	return &cachedResult{Data: data}, nil
}

func (p *OpenLibrary) fetchWork(ctx context.Context, key string) (*cachedResult, error) {
	var work openLibraryWork
	err := p.getJSON(ctx, p.baseURL+key+".json", nil, &work)
	if errors.Is(err, errNotFound) {
		slog.Debug("OpenLibrary has no work", "work", key)
		return &cachedResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	series := metadata.ExtractSeries(work.Series)
	if series == "" {
		series = metadata.SeriesFromSubjects(work.Subjects)
	}

	data := metadata.Metadata{}
	data.Set(catalog.FieldTitle, work.Title)
	data.Set(catalog.FieldAuthors, p.resolveAuthors(ctx, openLibraryEdition{}, &work))
	data.Set(catalog.FieldDescription, metadata.NormalizeDescription(work.Description))
	data.Set(catalog.FieldSubjects, metadata.NormalizeList(work.Subjects))
	data.Set(catalog.FieldSeries, series)
	if len(work.Covers) > 0 && work.Covers[0] > 0 {
		data.Set(catalog.FieldCoverURL, fmt.Sprintf("%s/b/id/%d-L.jpg", p.coversURL, work.Covers[0]))
	}

	slog.Debug("Fetched work from OpenLibrary", "work", key, "fields", len(data))
	return &cachedResult{Data: data}, nil
}

// resolveAuthors turns author refs on the edition (or its work) into names.
func (p *OpenLibrary) resolveAuthors(ctx context.Context, edition openLibraryEdition, work *openLibraryWork) []string {
	keys := refKeys(edition.Authors)
	if len(keys) == 0 && work != nil {
		for _, a := range work.Authors {
			if a.Author.Key != "" {
				keys = append(keys, a.Author.Key)
			}
		}
	}

	var names []string
	for i, key := range keys {
		if i == maxAuthorLookups {
			break
		}
		var author openLibraryAuthor
		if err := p.getJSON(ctx, p.baseURL+key+".json", nil, &author); err != nil {
			slog.Debug("OpenLibrary author lookup failed", "author", key, "error", err)
			continue
		}
		if author.Name != "" {
			names = append(names, author.Name)
		}
	}
	return names
}

// openLibrarySearch matches /search.json.
type openLibrarySearch struct {
	Docs []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		ISBN             []string `json:"isbn"`
		Publisher        []string `json:"publisher"`
		FirstPublishYear int      `json:"first_publish_year"`
		Language         []string `json:"language"`
		Subject          []string `json:"subject"`
		CoverID          int      `json:"cover_i"`
	} `json:"docs"`
}

// Search queries the OpenLibrary search index by title or ISBN.
func (p *OpenLibrary) Search(ctx context.Context, query string, mode metadata.SearchMode, maxResults int) ([]metadata.SearchResult, error) {
	params := url.Values{}
	if mode == metadata.ModeISBN {
		params.Set("isbn", metadata.NormalizeISBN(query))
	} else {
		params.Set("title", query)
	}
	params.Set("limit", strconv.Itoa(maxResults))

	var resp openLibrarySearch
	err := p.getJSON(ctx, p.baseURL+"/search.json?"+params.Encode(), nil, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]metadata.SearchResult, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		result := metadata.SearchResult{
			Title:      doc.Title,
			Authors:    doc.AuthorName,
			Subjects:   doc.Subject,
			Language:   metadata.NormalizeLanguages(doc.Language),
			Identifier: metadata.OpenLibraryWorkPrefix + doc.Key,
			Source:     p.Name(),
		}
		if isbn := preferISBN13(doc.ISBN); isbn != "" {
			result.Identifier = isbn
		}
		if len(doc.Publisher) > 0 {
			result.Publisher = doc.Publisher[0]
		}
		if doc.FirstPublishYear > 0 {
			result.Date = strconv.Itoa(doc.FirstPublishYear)
		}
		if doc.CoverID > 0 {
			result.CoverURL = fmt.Sprintf("%s/b/id/%d-M.jpg", p.coversURL, doc.CoverID)
		}
		results = append(results, result)
	}
	return results, nil
}

// refKeys collects the "key" of each {"key": ...} reference object.
func refKeys(items []any) []string {
	var keys []string
	for _, item := range items {
		ref, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if key, ok := ref["key"].(string); ok && key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func preferISBN13(isbns []string) string {
	for _, isbn := range isbns {
		if len(isbn) == 13 {
			return isbn
		}
	}
	if len(isbns) > 0 {
		return isbns[0]
	}
	return ""
}
