package cmd

import (
	"context"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/datastore"
)

// EnrichCmd queues a job for the book and runs it unless another attempt is
// already in progress.
type EnrichCmd struct {
	BookID     string `arg:"" help:"Book ID"`
	Identifier string `short:"i" help:"Lookup identifier, overrides the book's ISBN"`
	QueueOnly  bool   `help:"Only queue the job, do not process it"`
}

func (c *EnrichCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		if c.QueueOnly {
			job, err := a.svc.Queue(ctx, c.BookID, c.Identifier)
			if err != nil {
				return err
			}
			return g.emit(job, func() string { return jobsTable([]*catalog.Job{job}) })
		}

		book, job, err := a.svc.Enrich(ctx, c.BookID, c.Identifier)
		if err != nil {
			return err
		}
		return g.emit(enrichResult{Book: book, Job: job}, func() string {
			out := jobsTable([]*catalog.Job{job}) + "\n" + bookTable(book)
			if !book.MetadataCandidate.Empty() {
				out += "\n" + candidateTable(book.MetadataCandidate)
			}
			return out
		})
	})
}

type enrichResult struct {
	Book *catalog.Book `json:"book" yaml:"book"`
	Job  *catalog.Job  `json:"job" yaml:"job"`
}

// JobsCmd groups the job commands
type JobsCmd struct {
	List    JobsListCmd    `cmd:"" help:"List enrichment jobs"`
	Show    JobsShowCmd    `cmd:"" help:"Show a single job"`
	Process JobsProcessCmd `cmd:"" help:"Run one attempt of a pending job"`
}

type JobsListCmd struct {
	Book   string `help:"Only jobs for this book ID"`
	Status string `help:"Only jobs in this status"`
	Limit  int    `short:"n" help:"Maximum number of jobs" default:"50"`
}

func (c *JobsListCmd) Run(g *Globals) error {
	filter := datastore.JobFilter{BookID: c.Book, Limit: c.Limit}
	if c.Status != "" {
		status, err := catalog.ParseStatus(c.Status)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	return g.withApp(func(ctx context.Context, a *app) error {
		jobs, err := a.svc.Jobs(ctx, filter)
		if err != nil {
			return err
		}
		return g.emit(jobs, func() string { return jobsTable(jobs) })
	})
}

type JobsShowCmd struct {
	ID int64 `arg:"" help:"Job ID"`
}

func (c *JobsShowCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		job, err := a.svc.Job(ctx, c.ID)
		if err != nil {
			return err
		}
		return g.emit(job, func() string { return jobsTable([]*catalog.Job{job}) })
	})
}

type JobsProcessCmd struct {
	ID int64 `arg:"" help:"Job ID"`
}

func (c *JobsProcessCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		book, err := a.svc.Process(ctx, c.ID)
		if err != nil {
			return err
		}
		job, err := a.svc.Job(ctx, c.ID)
		if err != nil {
			return err
		}
		return g.emit(enrichResult{Book: book, Job: job}, func() string {
			return jobsTable([]*catalog.Job{job}) + "\n" + bookTable(book)
		})
	})
}

// CandidateCmd groups the review commands
type CandidateCmd struct {
	Show   CandidateShowCmd   `cmd:"" help:"Show staged suggestions for a book"`
	Apply  CandidateApplyCmd  `cmd:"" help:"Apply staged suggestions"`
	Reject CandidateRejectCmd `cmd:"" help:"Discard all staged suggestions"`
}

type CandidateShowCmd struct {
	BookID string `arg:"" help:"Book ID"`
}

func (c *CandidateShowCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		view, err := a.svc.Candidate(ctx, c.BookID)
		if err != nil {
			return err
		}
		return g.emit(view, func() string {
			return "Status: " + string(view.MetadataStatus) + "\n" + candidateTable(view.MetadataCandidate)
		})
	})
}

// CandidateApplyCmd applies the named fields, or all of them when none are named.
type CandidateApplyCmd struct {
	BookID string   `arg:"" help:"Book ID"`
	Field  []string `short:"f" help:"Field to apply (repeatable)"`
	All    bool     `help:"Apply every staged field"`
}

func (c *CandidateApplyCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		book, err := a.svc.Apply(ctx, c.BookID, c.Field, c.All || len(c.Field) == 0)
		if err != nil {
			return err
		}
		return g.emit(book, func() string { return bookTable(book) + "\n" + candidateTable(book.MetadataCandidate) })
	})
}

type CandidateRejectCmd struct {
	BookID string `arg:"" help:"Book ID"`
}

func (c *CandidateRejectCmd) Run(g *Globals) error {
	return g.withApp(func(ctx context.Context, a *app) error {
		book, err := a.svc.Reject(ctx, c.BookID)
		if err != nil {
			return err
		}
		return g.emit(book, func() string { return "Rejected suggestions for " + book.ID + " (status " + string(book.MetadataStatus) + ")" })
	})
}
