package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/httpx"
	"libraryapi/internal/platform/openlibrary"
)

type Config struct {
	CopiesPerBook int
	BatchSize     int
}

type OpenLibraryClient interface {
	SearchBySubject(ctx context.Context, subject string, limit int) (*openlibrary.SearchResponse, error)
	BooksByISBN(ctx context.Context, isbns []string) (map[string]openlibrary.BookDetails, error)
}

// Catalog is satisfied by *book.Service.
type Catalog interface {
	Create(ctx context.Context, in book.CreateInput) (book.Book, error)
}

type Service struct {
	client  OpenLibraryClient
	catalog Catalog
	cfg     Config
	log     *slog.Logger
}

func NewService(client OpenLibraryClient, catalog Catalog, cfg Config, log *slog.Logger) *Service {
	if cfg.CopiesPerBook <= 0 {
		cfg.CopiesPerBook = 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Service{client: client, catalog: catalog, cfg: cfg, log: log}
}

// Run imports up to limit titles for subject. Titles already in the catalog
// are skipped; a title that fails validation or insert is counted and the run
// goes on.
func (s *Service) Run(ctx context.Context, subject string, limit int) (report Report, err error) {
	report = Report{Subject: subject, StartedAt: time.Now().UTC()}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		report.Status = StatusCompleted
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
		}
		s.log.Info("open library import finished",
			"subject", subject,
			"status", report.Status,
			"found", report.Found,
			"created", report.Created,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}()

	res, err := s.client.SearchBySubject(ctx, subject, limit)
	if err != nil {
		return report, fmt.Errorf("search %q: %w", subject, err)
	}

	seen := make(map[string]bool)
	var batch []openlibrary.SearchDoc
	for _, doc := range res.Docs {
		isbn := httpx.NormalizeISBN(doc.PreferredISBN())
		if isbn == "" || seen[isbn] {
			continue
		}
		seen[isbn] = true
		doc.ISBN = []string{isbn}
		batch = append(batch, doc)
		report.Found++

		if len(batch) == s.cfg.BatchSize {
			if err := s.importBatch(ctx, batch, &report); err != nil {
				return report, err
			}
			batch = nil
		}
		if report.Found >= limit {
			break
		}
	}
	if len(batch) > 0 {
		if err := s.importBatch(ctx, batch, &report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (s *Service) importBatch(ctx context.Context, docs []openlibrary.SearchDoc, report *Report) error {
	isbns := make([]string, len(docs))
	for i, d := range docs {
		isbns[i] = d.ISBN[0]
	}
	details, err := s.client.BooksByISBN(ctx, isbns)
	if err != nil {
		// search hits alone are enough to catalog a title
		s.log.Warn("open library details unavailable", "count", len(isbns), "error", err)
		details = map[string]openlibrary.BookDetails{}
	}

	for _, doc := range docs {
		in := s.toInput(doc, details[doc.ISBN[0]])
		if fields := httpx.ValidateStruct(&in); len(fields) > 0 {
			s.log.Debug("skipping invalid open library record", "isbn", in.ISBN, "fields", fields)
			report.Failed++
			continue
		}
		_, err := s.catalog.Create(ctx, in)
		switch {
		case err == nil:
			report.Created++
		case errors.Is(err, book.ErrAlreadyExists):
			report.Skipped++
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			s.log.Warn("import book failed", "isbn", in.ISBN, "error", err)
			report.Failed++
		}
	}
	return nil
}

func (s *Service) toInput(doc openlibrary.SearchDoc, d openlibrary.BookDetails) book.CreateInput {
	in := book.CreateInput{
		Title:         doc.Title,
		ISBN:          doc.ISBN[0],
		Category:      CategoryFor(doc.Subject),
		TotalCopies:   s.cfg.CopiesPerBook,
		PublishedYear: doc.FirstPublishYear,
		Language:      languageFor(doc.Language),
		Tags:          firstN(doc.Subject, 5),
	}
	if len(doc.AuthorNames) > 0 {
		in.Author = strings.Join(firstN(doc.AuthorNames, 3), ", ")
	}

	if d.Title != "" {
		in.Title = d.Title
		if d.Subtitle != "" {
			in.Title += ": " + d.Subtitle
		}
	}
	if authors := names(d.Authors); len(authors) > 0 {
		in.Author = strings.Join(firstN(authors, 3), ", ")
	}
	if subjects := names(d.Subjects); len(subjects) > 0 {
		in.Category = CategoryFor(subjects)
		in.Tags = firstN(subjects, 5)
	}
	in.Publisher = truncate(strings.Join(names(d.Publishers), ", "), 200)
	in.Pages = d.NumberOfPages
	in.Description = truncate(d.Notes, 5000)
	in.CoverImage = d.Cover.Large
	if in.CoverImage == "" {
		in.CoverImage = d.Cover.Medium
	}
	in.Title = truncate(in.Title, 300)
	in.Author = truncate(in.Author, 200)
	return in
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
