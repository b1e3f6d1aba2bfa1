// Package covers downloads book cover images and stores resized copies on disk.
package covers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/config"
	liberrors "github.com/lepinkainen/libris/internal/errors"
)

const defaultMaxWidth = 600

// Downloader saves covers under a single directory, one file per book.
type Downloader struct {
	client   *http.Client
	dir      string
	maxWidth int
}

// Result describes a cover on disk.
type Result struct {
	Path       string `json:"path"`
	Downloaded bool   `json:"downloaded"`
	Width      int    `json:"width"`
}

// NewDownloader creates a Downloader. A nil client gets a 30s timeout.
func NewDownloader(cfg config.CoversConfig, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxWidth := cfg.MaxWidth
	if maxWidth <= 0 {
		maxWidth = defaultMaxWidth
	}
	return &Downloader{client: client, dir: cfg.Dir, maxWidth: maxWidth}
}

// PathFor returns where the cover of bookID is stored.
func (d *Downloader) PathFor(bookID string) string {
	return filepath.Join(d.dir, bookID+".jpg")
}

// Download fetches the book's cover_url. An existing file is kept unless
// force is set.
func (d *Downloader) Download(ctx context.Context, book *catalog.Book, force bool) (*Result, error) {
	if book.CoverURL == "" {
		return nil, liberrors.NewValidationError(fmt.Sprintf("book %s has no cover_url", book.ID))
	}

	path := d.PathFor(book.ID)
	if !force {
		if _, err := os.Stat(path); err == nil {
			slog.Debug("Cover already exists, skipping download", "path", path)
			return &Result{Path: path}, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat cover: %w", err)
		}
	}

	width, err := d.downloadAndResize(ctx, book.CoverURL, path)
	if err != nil {
		return nil, fmt.Errorf("download cover for %s: %w", book.ID, err)
	}

	slog.Info("Downloaded cover", "book_id", book.ID, "path", path, "width", width)
	return &Result{Path: path, Downloaded: true, Width: width}, nil
}

// downloadAndResize shrinks images wider than maxWidth and re-encodes as JPEG.
func (d *Downloader) downloadAndResize(ctx context.Context, imageURL, savePath string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return 0, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status %d downloading image", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return 0, err
	}

	if img.Bounds().Dx() > d.maxWidth {
		img = imaging.Resize(img, d.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return 0, err
	}
	if err := imaging.Save(img, savePath, imaging.JPEGQuality(85)); err != nil {
		return 0, err
	}
	return img.Bounds().Dx(), nil
}
