package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/datastore"
	"github.com/lepinkainen/libris/internal/enrichment"
)

// BookCmd groups the book record commands
type BookCmd struct {
	Add    BookAddCmd    `cmd:"" help:"Add a book record"`
	List   BookListCmd   `cmd:"" help:"List book records"`
	Show   BookShowCmd   `cmd:"" help:"Show a single book record"`
	Cover  BookCoverCmd  `cmd:"" help:"Download and resize a book's cover image"`
	Export BookExportCmd `cmd:"" help:"Publish book records to a Datasette instance"`
}

// BookAddCmd creates a book. Unknown fields can be filled in later by enrich.
type BookAddCmd struct {
	Title       string   `short:"t" help:"Title" required:""`
	Author      []string `short:"a" help:"Author (repeatable)"`
	ISBN        string   `help:"ISBN-10 or ISBN-13"`
	Publisher   string   `help:"Publisher"`
	PublishDate string   `help:"Publish date (free text)"`
	Description string   `help:"Description"`
	Subject     []string `help:"Subject (repeatable)"`
	Language    []string `help:"Language code (repeatable)"`
	Pages       int      `help:"Page count"`
	Series      string   `help:"Series name"`
	Enrich      bool     `help:"Enrich the new book right away"`
}

func (c *BookAddCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		var pages *int
		if c.Pages != 0 {
			pages = &c.Pages
		}
		book, err := a.svc.CreateBook(ctx, enrichment.BookInput{
			Title:       c.Title,
			Authors:     c.Author,
			ISBN:        c.ISBN,
			Publisher:   c.Publisher,
			Description: c.Description,
			PublishDate: c.PublishDate,
			Subjects:    c.Subject,
			Language:    c.Language,
			PageCount:   pages,
			Series:      c.Series,
		})
		if err != nil {
			return err
		}
		if c.Enrich {
			book, _, err = a.svc.Enrich(ctx, book.ID, "")
			if err != nil {
				return err
			}
		}
		return g.emit(book, func() string { return bookTable(book) })
	})
}

// BookListCmd lists books, newest first.
type BookListCmd struct {
	Status string `help:"Only books in this metadata status"`
	Limit  int    `short:"n" help:"Maximum number of books" default:"50"`
}

func (c *BookListCmd) Run(g *Globals) error {
	filter := datastore.BookFilter{Limit: c.Limit}
	if c.Status != "" {
		status, err := catalog.ParseStatus(c.Status)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	return g.withApp(func(ctx context.Context, a *app) error {
		books, err := a.svc.Books(ctx, filter)
		if err != nil {
			return err
		}
		return g.emit(books, func() string { return booksTable(books) })
	})
}

type BookShowCmd struct {
	ID string `arg:"" help:"Book ID"`
}

func (c *BookShowCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		book, err := a.svc.Book(ctx, c.ID)
		if err != nil {
			return err
		}
		return g.emit(book, func() string { return bookTable(book) })
	})
}

// BookCoverCmd stores the cover under covers.dir as <id>.jpg.
type BookCoverCmd struct {
	ID    string `arg:"" help:"Book ID"`
	Force bool   `help:"Re-download even if the cover already exists"`
}

func (c *BookCoverCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		book, err := a.svc.Book(ctx, c.ID)
		if err != nil {
			return err
		}
		res, err := a.covers.Download(ctx, book, c.Force)
		if err != nil {
			return err
		}
		return g.emit(res, func() string {
			if res.Downloaded {
				return fmt.Sprintf("Saved cover to %s (%dpx wide)", res.Path, res.Width)
			}
			return fmt.Sprintf("Cover already present at %s", res.Path)
		})
	})
}

// BookExportCmd pushes books through the datasette-insert API.
type BookExportCmd struct {
	URL      string `help:"Datasette base URL" required:""`
	Database string `help:"Datasette database name" default:"libris"`
	Table    string `help:"Target table" default:"books"`
	Token    string `help:"API token (defaults to DATASETTE_TOKEN)"`
	Status   string `help:"Only export books in this metadata status"`
}

func (c *BookExportCmd) Run(g *Globals) error {
	token := c.Token
	if token == "" {
		token = os.Getenv("DATASETTE_TOKEN")
	}
	filter := datastore.BookFilter{}
	if c.Status != "" {
		status, err := catalog.ParseStatus(c.Status)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	return g.withApp(func(ctx context.Context, a *app) error {
		books, err := a.svc.Books(ctx, filter)
		if err != nil {
			return err
		}
		client := datastore.NewDatasetteClient(c.URL, c.Database, token)
		if err := client.ExportBooks(ctx, c.Table, books); err != nil {
			return err
		}
		slog.Info("Exported books to Datasette", "count", len(books), "table", c.Table)
		return nil
	})
}
