package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type Options struct {
	BaseURL    string
	UserAgent  string
	RPS        int
	MaxRetries int
	Timeout    time.Duration
}

// Client is a polite Open Library client: requests are rate limited and
// retried with exponential backoff on 429 and 5xx.
type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewClient(opts Options) *Client {
	if opts.RPS <= 0 {
		opts.RPS = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openlibrary.org"
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RPS)), 1),
		maxRetries: opts.MaxRetries,
		backoff:    time.Second,
	}
}

// SearchDoc is one hit of search.json.
type SearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	FirstPublishYear int      `json:"first_publish_year"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
}

type SearchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []SearchDoc `json:"docs"`
}

// PreferredISBN returns the first 13 digit ISBN of the hit, falling back to
// the first one listed.
func (d SearchDoc) PreferredISBN() string {
	for _, isbn := range d.ISBN {
		if len(isbn) == 13 {
			return isbn
		}
	}
	if len(d.ISBN) > 0 {
		return d.ISBN[0]
	}
	return ""
}

type Named struct {
	Name string `json:"name"`
}

// BookDetails matches api/books?jscmd=data
type BookDetails struct {
	Title       string  `json:"title"`
	Subtitle    string  `json:"subtitle"`
	Publishers  []Named `json:"publishers"`
	PublishDate string  `json:"publish_date"`
	Cover       struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
	Authors       []Named `json:"authors"`
	Subjects      []Named `json:"subjects"`
	NumberOfPages int     `json:"number_of_pages"`
	Notes         string  `json:"notes"`
}

func (c *Client) SearchBySubject(ctx context.Context, subject string, limit int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", "subject:"+subject)
	q.Set("fields", "key,title,author_name,isbn,first_publish_year,language,subject")
	q.Set("limit", fmt.Sprint(limit))

	var res SearchResponse
	if err := c.get(ctx, c.baseURL+"/search.json?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// BooksByISBN returns details keyed by bare ISBN.
func (c *Client) BooksByISBN(ctx context.Context, isbns []string) (map[string]BookDetails, error) {
	if len(isbns) == 0 {
		return map[string]BookDetails{}, nil
	}
	bibkeys := make([]string, len(isbns))
	for i, isbn := range isbns {
		bibkeys[i] = "ISBN:" + isbn
	}
	q := url.Values{}
	q.Set("bibkeys", strings.Join(bibkeys, ","))
	q.Set("jscmd", "data")
	q.Set("format", "json")

	var raw map[string]BookDetails
	if err := c.get(ctx, c.baseURL+"/api/books?"+q.Encode(), &raw); err != nil {
		return nil, err
	}
	out := make(map[string]BookDetails, len(raw))
	for key, details := range raw {
		out[strings.TrimPrefix(key, "ISBN:")] = details
	}
	return out, nil
}

type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.code)
}

func (e statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

func (c *Client) get(ctx context.Context, u string, target any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := c.do(ctx, u, target)
		if err == nil {
			return nil
		}
		if se, ok := err.(statusError); ok && !se.retryable() {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) do(ctx context.Context, u string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError{code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
