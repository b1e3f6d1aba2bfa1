package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/lepinkainen/libris/internal/catalog"
)

// DatasetteClient publishes book records to a remote Datasette instance
// through the datasette-insert plugin.
type DatasetteClient struct {
	baseURL  string
	apiToken string
	database string
	client   *http.Client
}

// NewDatasetteClient creates a new DatasetteClient instance
func NewDatasetteClient(baseURL, database, apiToken string) *DatasetteClient {
	if database == "" {
		database = "libris"
	}
	return &DatasetteClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		database: database,
		client:   &http.Client{},
	}
}

// ExportBooks sends books to the insert API as flat rows. List fields are
// joined with "; " so they stay searchable in Datasette.
func (c *DatasetteClient) ExportBooks(ctx context.Context, table string, books []*catalog.Book) error {
	if len(books) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(books))
	for _, b := range books {
		row := map[string]any{
			"id":              b.ID,
			"title":           b.Title,
			"authors":         strings.Join(b.Authors, "; "),
			"isbn":            b.ISBN,
			"publisher":       b.Publisher,
			"description":     b.Description,
			"publish_date":    b.PublishDate,
			"subjects":        strings.Join(b.Subjects, "; "),
			"language":        strings.Join(b.Language, "; "),
			"cover_url":       b.CoverURL,
			"series":          b.Series,
			"metadata_status": string(b.MetadataStatus),
			"updated_at":      formatTime(b.UpdatedAt),
		}
		if b.PageCount != nil {
			row["page_count"] = *b.PageCount
		}
		rows = append(rows, row)
	}
	return c.batchInsert(ctx, table, rows)
}

func (c *DatasetteClient) batchInsert(ctx context.Context, table string, records []map[string]any) error {
	// Construct the API endpoint URL
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "-/insert", c.database, table)
	q := u.Query()
	q.Set("pk", "id")
	q.Set("replace", "1")
	u.RawQuery = q.Encode()

	jsonData, err := json.Marshal(map[string]any{"rows": records})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return fmt.Errorf("API error: %v", errResp)
	}
	return nil
}
