package ingest

import (
	"strings"
	"time"

	"libraryapi/internal/book"
	"libraryapi/internal/platform/openlibrary"
)

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Report summarizes one import of a subject.
type Report struct {
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	Found      int       `json:"found"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

var categoryKeywords = []struct {
	keyword  string
	category book.Category
}{
	{"fantasy", book.CategoryFantasy},
	{"mystery", book.CategoryMystery},
	{"detective", book.CategoryMystery},
	{"romance", book.CategoryRomance},
	{"juvenile", book.CategoryChildren},
	{"children", book.CategoryChildren},
	{"biography", book.CategoryBiography},
	{"history", book.CategoryHistory},
	{"self-help", book.CategorySelfHelp},
	{"computer", book.CategoryTechnology},
	{"technology", book.CategoryTechnology},
	{"programming", book.CategoryTechnology},
	{"science fiction", book.CategoryFiction},
	{"science", book.CategoryScience},
	{"physics", book.CategoryScience},
	{"dictionar", book.CategoryReference},
	{"encyclopedia", book.CategoryReference},
	{"fiction", book.CategoryFiction},
}

// CategoryFor picks the first catalog category whose keyword appears in the
// subjects, in keyword order.
func CategoryFor(subjects []string) book.Category {
	joined := strings.ToLower(strings.Join(subjects, "|"))
	for _, ck := range categoryKeywords {
		if strings.Contains(joined, ck.keyword) {
			return ck.category
		}
	}
	return book.CategoryOther
}

var languages = map[string]string{
	"eng": "English",
	"fre": "French",
	"ger": "German",
	"spa": "Spanish",
	"ita": "Italian",
	"por": "Portuguese",
	"rus": "Russian",
	"jpn": "Japanese",
	"chi": "Chinese",
}

func languageFor(codes []string) string {
	for _, c := range codes {
		if name, ok := languages[c]; ok {
			return name
		}
	}
	return "English"
}

func names(in []openlibrary.Named) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n.Name != "" {
			out = append(out, n.Name)
		}
	}
	return out
}
