package book

import (
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("book not found")
	ErrAlreadyExists = errors.New("book with this isbn already exists")
	ErrNotAvailable  = errors.New("book not available")
	ErrInvalidCopies = errors.New("total copies cannot drop below copies currently out")
	ErrNoCopyOut     = errors.New("no copy of this book is out")
	ErrConflict      = errors.New("book was modified concurrently")
)

type Category string

const (
	CategoryFiction    Category = "Fiction"
	CategoryNonFiction Category = "Non-Fiction"
	CategoryScience    Category = "Science"
	CategoryTechnology Category = "Technology"
	CategoryHistory    Category = "History"
	CategoryBiography  Category = "Biography"
	CategoryChildren   Category = "Children"
	CategoryMystery    Category = "Mystery"
	CategoryRomance    Category = "Romance"
	CategoryFantasy    Category = "Fantasy"
	CategorySelfHelp   Category = "Self-Help"
	CategoryReference  Category = "Reference"
	CategoryOther      Category = "Other"
)

var Categories = []Category{
	CategoryFiction, CategoryNonFiction, CategoryScience, CategoryTechnology,
	CategoryHistory, CategoryBiography, CategoryChildren, CategoryMystery,
	CategoryRomance, CategoryFantasy, CategorySelfHelp, CategoryReference, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Book is a catalog title with its copy counts.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Category        Category  `json:"category"`
	Description     string    `json:"description,omitempty"`
	CoverImage      string    `json:"coverImage,omitempty"`
	FileURL         string    `json:"fileUrl,omitempty"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	PublishedYear   int       `json:"publishedYear,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	Language        string    `json:"language,omitempty"`
	Pages           int       `json:"pages,omitempty"`
	Rating          float64   `json:"rating"`
	Tags            []string  `json:"tags"`
	IsDigital       bool      `json:"isDigital"`
	IsAvailable     bool      `json:"isAvailable"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Derive fills the fields computed from stored state.
func (b *Book) Derive() {
	b.IsAvailable = b.AvailableCopies > 0
	if b.Tags == nil {
		b.Tags = []string{}
	}
}

// CopiesOut is the number of copies currently lent or held.
func (b Book) CopiesOut() int {
	return b.TotalCopies - b.AvailableCopies
}

// NormalizeTags trims, drops empties and removes duplicates case-insensitively.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Query defines filters and pagination for listing books.
type Query struct {
	Category  Category
	Q         string
	Language  string
	Tag       string
	Available *bool
	Sort      string
	Desc      bool
	Limit     int
	Offset    int
}

// Totals summarises the catalog for the admin dashboard.
type Totals struct {
	Titles          int `json:"titles"`
	TotalCopies     int `json:"totalCopies"`
	AvailableCopies int `json:"availableCopies"`
}
