package book

import (
	"context"
	"fmt"
	"strings"

	"libraryapi/internal/httpx"
)

// CreateInput is the admin payload for adding a title.
type CreateInput struct {
	Title         string   `json:"title" validate:"required,max=300"`
	Author        string   `json:"author" validate:"required,max=200"`
	ISBN          string   `json:"isbn" validate:"required,isbn"`
	Category      Category `json:"category" validate:"required,oneof=Fiction Non-Fiction Science Technology History Biography Children Mystery Romance Fantasy Self-Help Reference Other"`
	Description   string   `json:"description" validate:"max=5000"`
	CoverImage    string   `json:"coverImage" validate:"omitempty,url"`
	FileURL       string   `json:"fileUrl" validate:"omitempty,url"`
	TotalCopies   int      `json:"totalCopies" validate:"gte=1,lte=10000"`
	PublishedYear int      `json:"publishedYear" validate:"omitempty,gte=0,lte=3000"`
	Publisher     string   `json:"publisher" validate:"max=200"`
	Language      string   `json:"language" validate:"max=50"`
	Pages         int      `json:"pages" validate:"gte=0"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=5"`
	Tags          []string `json:"tags" validate:"max=30"`
	IsDigital     bool     `json:"isDigital"`
}

// UpdateInput carries only the fields being changed.
type UpdateInput struct {
	Title         *string   `json:"title" validate:"omitempty,min=1,max=300"`
	Author        *string   `json:"author" validate:"omitempty,min=1,max=200"`
	ISBN          *string   `json:"isbn" validate:"omitempty,isbn"`
	Category      *Category `json:"category" validate:"omitempty,oneof=Fiction Non-Fiction Science Technology History Biography Children Mystery Romance Fantasy Self-Help Reference Other"`
	Description   *string   `json:"description" validate:"omitempty,max=5000"`
	CoverImage    *string   `json:"coverImage" validate:"omitempty,url"`
	FileURL       *string   `json:"fileUrl" validate:"omitempty,url"`
	TotalCopies   *int      `json:"totalCopies" validate:"omitempty,gte=0,lte=10000"`
	PublishedYear *int      `json:"publishedYear" validate:"omitempty,gte=0,lte=3000"`
	Publisher     *string   `json:"publisher" validate:"omitempty,max=200"`
	Language      *string   `json:"language" validate:"omitempty,max=50"`
	Pages         *int      `json:"pages" validate:"omitempty,gte=0"`
	Rating        *float64  `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Tags          []string  `json:"tags" validate:"omitempty,max=30"`
	IsDigital     *bool     `json:"isDigital"`
}

// Service provides book-related business logic.
type Service struct {
	repo Repository
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a list of books matching the query.
func (s *Service) List(ctx context.Context, q Query) ([]Book, int, error) {
	if q.Category != "" && !q.Category.Valid() {
		return []Book{}, 0, nil
	}
	return s.repo.List(ctx, q)
}

func (s *Service) Get(ctx context.Context, id string) (Book, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByISBN returns a book by its ISBN.
func (s *Service) GetByISBN(ctx context.Context, isbn string) (Book, error) {
	return s.repo.GetByISBN(ctx, httpx.NormalizeISBN(isbn))
}

// Create adds a title with every copy on the shelf.
func (s *Service) Create(ctx context.Context, in CreateInput) (Book, error) {
	b := Book{
		Title:           strings.TrimSpace(in.Title),
		Author:          strings.TrimSpace(in.Author),
		ISBN:            httpx.NormalizeISBN(in.ISBN),
		Category:        in.Category,
		Description:     in.Description,
		CoverImage:      in.CoverImage,
		FileURL:         in.FileURL,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		PublishedYear:   in.PublishedYear,
		Publisher:       in.Publisher,
		Language:        in.Language,
		Pages:           in.Pages,
		Rating:          in.Rating,
		Tags:            NormalizeTags(in.Tags),
		IsDigital:       in.IsDigital,
	}
	if b.Language == "" {
		b.Language = "English"
	}
	if err := s.repo.Create(ctx, &b); err != nil {
		return Book{}, err
	}
	b.Derive()
	return b, nil
}

// Update applies the patch. Changing TotalCopies moves AvailableCopies by the
// same amount and fails with ErrInvalidCopies if that would go negative.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Book{}, err
	}
	prevTotal := b.TotalCopies

	if in.Title != nil {
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.Author != nil {
		b.Author = strings.TrimSpace(*in.Author)
	}
	if in.ISBN != nil {
		b.ISBN = httpx.NormalizeISBN(*in.ISBN)
	}
	if in.Category != nil {
		b.Category = *in.Category
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.CoverImage != nil {
		b.CoverImage = *in.CoverImage
	}
	if in.FileURL != nil {
		b.FileURL = *in.FileURL
	}
	if in.TotalCopies != nil {
		b.TotalCopies = *in.TotalCopies
	}
	if in.PublishedYear != nil {
		b.PublishedYear = *in.PublishedYear
	}
	if in.Publisher != nil {
		b.Publisher = *in.Publisher
	}
	if in.Language != nil {
		b.Language = *in.Language
	}
	if in.Pages != nil {
		b.Pages = *in.Pages
	}
	if in.Rating != nil {
		b.Rating = *in.Rating
	}
	if in.Tags != nil {
		b.Tags = NormalizeTags(in.Tags)
	}
	if in.IsDigital != nil {
		b.IsDigital = *in.IsDigital
	}

	b.AvailableCopies += b.TotalCopies - prevTotal
	if b.AvailableCopies < 0 {
		return Book{}, ErrInvalidCopies
	}

	if err := s.repo.Update(ctx, &b, prevTotal); err != nil {
		return Book{}, fmt.Errorf("update book %s: %w", id, err)
	}
	b.Derive()
	return b, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) Totals(ctx context.Context) (Totals, error) {
	return s.repo.Totals(ctx)
}

func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
