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

// GoogleBooks fetches volumes from the Google Books API.
type GoogleBooks struct {
	source
	baseURL string
	apiKey  string
}

// Compile-time check that GoogleBooks implements metadata.Searcher.
var _ metadata.Searcher = (*GoogleBooks)(nil)

// NewGoogleBooks creates the Google Books provider. The API key is optional.
func NewGoogleBooks(cfg config.ProvidersConfig, deps Deps) *GoogleBooks {
	return &GoogleBooks{
		source:  newSource("Google Books", cfg.Timeout, deps),
		baseURL: cfg.GoogleBooksBaseURL,
		apiKey:  cfg.GoogleBooksAPIKey,
	}
}

type googleVolumeInfo struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle"`
	Authors       []string `json:"authors"`
	Publisher     string   `json:"publisher"`
	PublishedDate string   `json:"publishedDate"`
	Description   string   `json:"description"`
	PageCount     int      `json:"pageCount"`
	Categories    []string `json:"categories"`
	Language      string   `json:"language"`
	SeriesInfo    struct {
		Series string `json:"series"`
	} `json:"seriesInfo"`
	ImageLinks struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
}

type googleVolume struct {
	ID         string           `json:"id"`
	SelfLink   string           `json:"selfLink"`
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
	SearchInfo struct {
		TextSnippet string `json:"textSnippet"`
	} `json:"searchInfo"`
}

type googleVolumes struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

// Fetch looks up a volume by ISBN. The first match is re-fetched through its
// selfLink because search results carry a truncated volumeInfo. A
// "google:<volumeId>" identifier reads that volume directly; identifiers
// scoped to other sources have no data here.
func (p *GoogleBooks) Fetch(ctx context.Context, identifier string) (metadata.Metadata, error) {
	if prefix, id, ok := metadata.SourceKey(identifier); ok {
		if prefix != metadata.GoogleVolumePrefix {
			return nil, nil
		}
		return p.lookup(cache.TableGoogleBooks, prefix+id, func() (*cachedResult, error) {
			return p.fetchVolume(ctx, id)
		})
	}

	isbn := metadata.NormalizeISBN(identifier)
	return p.lookup(cache.TableGoogleBooks, isbn, func() (*cachedResult, error) {
		return p.fetchFromAPI(ctx, isbn)
	})
}

func (p *GoogleBooks) fetchFromAPI(ctx context.Context, isbn string) (*cachedResult, error) {
	params := url.Values{}
	params.Set("q", "isbn:"+isbn)
	params.Set("projection", "full")

	var result googleVolumes
	err := p.getJSON(ctx, p.withKey(p.baseURL, params), nil, &result)
	if errors.Is(err, errNotFound) {
		return &cachedResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		slog.Debug("Google Books returned no results", "isbn", isbn)
		return &cachedResult{NotFound: true}, nil
	}

	item := result.Items[0]
	volume := item.VolumeInfo
	if item.SelfLink != "" {
		var full googleVolume
		selfParams := url.Values{}
		selfParams.Set("projection", "full")
		if err := p.getJSON(ctx, p.withKey(item.SelfLink, selfParams), nil, &full); err != nil {
			slog.Debug("Google Books selfLink lookup failed", "isbn", isbn, "error", err)
		} else if full.VolumeInfo.Title != "" {
			volume = full.VolumeInfo
		}
	}

	data := p.volumeMetadata(volume, item.SearchInfo.TextSnippet, isbn)
	slog.Debug("Fetched metadata from Google Books", "isbn", isbn, "fields", len(data))
	return &cachedResult{Data: data}, nil
}

func (p *GoogleBooks) fetchVolume(ctx context.Context, id string) (*cachedResult, error) {
	params := url.Values{}
	params.Set("projection", "full")

	var item googleVolume
	err := p.getJSON(ctx, p.withKey(p.baseURL+"/"+url.PathEscape(id), params), nil, &item)
	if errors.Is(err, errNotFound) {
		slog.Debug("Google Books has no such volume", "volume_id", id)
		return &cachedResult{NotFound: true}, nil
	}
	if err != nil {
		return nil, err
	}

	isbn := volumeISBN(item.VolumeInfo)
	data := p.volumeMetadata(item.VolumeInfo, item.SearchInfo.TextSnippet, isbn)
	slog.Debug("Fetched volume from Google Books", "volume_id", id, "fields", len(data))
	return &cachedResult{Data: data}, nil
}

// volumeISBN picks the ISBN-13, else the ISBN-10, from a volume's identifiers.
func volumeISBN(volume googleVolumeInfo) string {
	var isbn10 string
	for _, id := range volume.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

func (p *GoogleBooks) volumeMetadata(volume googleVolumeInfo, snippet, isbn string) metadata.Metadata {
	description := volume.Description
	if description == "" {
		description = snippet
	}

	series := strings.TrimSpace(volume.SeriesInfo.Series)
	if series == "" {
		series = metadata.SeriesFromSubtitle(volume.Subtitle)
	}

	data := metadata.Metadata{}
	data.Set(catalog.FieldTitle, volume.Title)
	data.Set(catalog.FieldAuthors, metadata.NormalizeList(volume.Authors))
	data.Set(catalog.FieldSubjects, metadata.NormalizeList(volume.Categories))
	data.Set(catalog.FieldDescription, description)
	data.Set(catalog.FieldPublisher, volume.Publisher)
	data.Set(catalog.FieldPublishDate, volume.PublishedDate)
	data.Set(catalog.FieldISBN, isbn)
	data.Set(catalog.FieldLanguage, metadata.NormalizeLanguages([]string{volume.Language}))
	data.Set(catalog.FieldSeries, series)
	data.Set(catalog.FieldCoverURL, p.coverURL(volume, isbn))
	if volume.PageCount > 0 {
		data.Set(catalog.FieldPageCount, volume.PageCount)
	}
	return data
}

// coverURL prefers the API thumbnail at full zoom and falls back to the
// public frontcover URL for the ISBN.
func (p *GoogleBooks) coverURL(volume googleVolumeInfo, isbn string) string {
	cover := volume.ImageLinks.Thumbnail
	if cover == "" {
		cover = volume.ImageLinks.SmallThumbnail
	}
	if cover == "" && isbn == "" {
		return ""
	}
	if cover == "" {
		return fmt.Sprintf("https://books.google.com/books/content?vid=ISBN%s&printsec=frontcover&img=1&zoom=1", isbn)
	}
	cover = strings.Replace(cover, "zoom=1", "zoom=0", 1)
	return strings.Replace(cover, "http://", "https://", 1)
}

// Search queries volumes with an intitle: or isbn: qualifier.
func (p *GoogleBooks) Search(ctx context.Context, query string, mode metadata.SearchMode, maxResults int) ([]metadata.SearchResult, error) {
	q := "intitle:" + query
	if mode == metadata.ModeISBN {
		q = "isbn:" + metadata.NormalizeISBN(query)
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(maxResults))

	var result googleVolumes
	err := p.getJSON(ctx, p.withKey(p.baseURL, params), nil, &result)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	results := make([]metadata.SearchResult, 0, len(result.Items))
	for _, item := range result.Items {
		volume := item.VolumeInfo
		identifier := volumeISBN(volume)
		if identifier == "" {
			identifier = metadata.GoogleVolumePrefix + item.ID
		}
		results = append(results, metadata.SearchResult{
			Title:       volume.Title,
			Authors:     metadata.NormalizeList(volume.Authors),
			Subjects:    metadata.NormalizeList(volume.Categories),
			Description: volume.Description,
			Publisher:   volume.Publisher,
			Date:        volume.PublishedDate,
			Identifier:  identifier,
			Language:    metadata.NormalizeLanguages([]string{volume.Language}),
			CoverURL:    volume.ImageLinks.Thumbnail,
			Source:      p.Name(),
		})
	}
	slog.Debug("Google Books search results", "query", query, "count", len(results))
	return results, nil
}

func (p *GoogleBooks) withKey(base string, params url.Values) string {
	if p.apiKey != "" {
		params.Set("key", p.apiKey)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + params.Encode()
}
