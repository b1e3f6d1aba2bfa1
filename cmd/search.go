package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	liberrors "github.com/lepinkainen/libris/internal/errors"
	"github.com/lepinkainen/libris/internal/metadata"
	"github.com/lepinkainen/libris/internal/tui"
)

var (
	selectResult = tui.Select
	isTerminal   = func() bool {
		fd := os.Stdout.Fd()
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
)

// SearchCmd looks up candidate editions. With --pick the user chooses one
// interactively; with --book the chosen identifier is used to enrich that book.
type SearchCmd struct {
	Query string `arg:"" help:"Title or ISBN"`
	Type  string `short:"t" help:"Search type" enum:"auto,title,isbn" default:"auto"`
	Max   int    `short:"n" help:"Maximum number of results" default:"10"`
	Pick  bool   `help:"Choose a result interactively"`
	Book  string `help:"Enrich this book ID with the picked result (implies --pick)"`
}

func (c *SearchCmd) Run(g *Globals) error {
	mode, err := metadata.ParseSearchMode(c.Type)
	if err != nil {
		return err
	}
	if c.Max < 1 || c.Max > metadata.MaxSearchResults {
		return liberrors.NewValidationError(fmt.Sprintf("--max must be between 1 and %d", metadata.MaxSearchResults))
	}
	pick := c.Pick || c.Book != ""
	if pick && !isTerminal() {
		return errors.New("--pick needs an interactive terminal")
	}

	return g.withApp(func(ctx context.Context, a *app) error {
		results, err := a.svc.Search(ctx, c.Query, mode, c.Max)
		if err != nil {
			return err
		}
		collected := results.Collect()

		if !pick {
			return g.emit(collected, func() string { return searchTable(collected) })
		}

		choice, err := selectResult(c.Query, collected)
		if err != nil {
			return fmt.Errorf("selection failed: %w", err)
		}
		switch choice.Action {
		case tui.ActionStopped:
			return liberrors.NewStopProcessingError("search cancelled")
		case tui.ActionSelected:
		default:
			_, err := fmt.Fprintln(g.out, "Nothing selected.")
			return err
		}

		if c.Book == "" {
			return g.emit(choice.Selection, func() string { return searchTable([]metadata.SearchResult{*choice.Selection}) })
		}
		book, job, err := a.svc.Enrich(ctx, c.Book, choice.Selection.Identifier)
		if err != nil {
			return err
		}
		return g.emit(enrichResult{Book: book, Job: job}, func() string {
			return bookTable(book) + "\n" + candidateTable(book.MetadataCandidate)
		})
	})
}

// PreviewCmd shows merged metadata without touching any book.
type PreviewCmd struct {
	Identifier string `arg:"" help:"ISBN or provider identifier"`
}

func (c *PreviewCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		md, err := a.svc.Preview(ctx, c.Identifier)
		if err != nil {
			return err
		}
		return g.emit(md, func() string { return metadataTable(md) })
	})
}
