package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/osmangurlek/arxiv-trend-radar/config"
	"github.com/osmangurlek/arxiv-trend-radar/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var versionSuffix = regexp.MustCompile(`v\d+$`)

// Fetcher kapselt die Interaktion mit der arXiv-Export-API.
type Fetcher struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher erstellt eine neue Instanz des arXiv-Fetchers.
// arXiv bittet um höchstens eine Anfrage alle drei Sekunden.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		baseURL: cfg.ArxivBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		logger:  logger,
	}
}

// WithHTTPClient ersetzt den HTTP-Client und hebt die Drosselung auf (für Tests).
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	f.limiter = rate.NewLimiter(rate.Inf, 1)
	return f
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "arxiv"
}

// Search fragt die neuesten Einreichungen zu query ab, sortiert nach Einreichungsdatum.
func (f *Fetcher) Search(ctx context.Context, query string, max int) ([]models.PaperRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &models.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if max <= 0 {
		max = 10
	}
	log := f.logger.With(zap.String("query", query), zap.Int("max", max))

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.buildQueryURL(query, max), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		log.Error("arXiv request failed", zap.Error(err))
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read arxiv response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &models.RateLimitError{
			Err:        fmt.Errorf("arxiv status %d", resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode != http.StatusOK:
		log.Error("arXiv API returned non-200 status", zap.Int("status", resp.StatusCode), zap.String("body", truncate(string(body), 300)))
		return nil, fmt.Errorf("arxiv status %d", resp.StatusCode)
	}

	var feed Feed
	if err := xml.Unmarshal(body, &feed); err != nil {
		log.Error("Fehler beim Parsen des Atom-Feeds", zap.Error(err))
		return nil, fmt.Errorf("decode arxiv feed: %w", err)
	}

	records := make([]models.PaperRecord, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		records = append(records, entryToRecord(e))
	}
	log.Info("arXiv search finished", zap.Int("results", len(records)), zap.Int("total", feed.TotalResults))
	return records, nil
}

func (f *Fetcher) buildQueryURL(query string, max int) string {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(max))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	return f.baseURL + "?" + params.Encode()
}

func entryToRecord(e Entry) models.PaperRecord {
	rec := models.PaperRecord{
		ExternalID: ShortID(e.ID),
		Title:      collapse(e.Title),
		Abstract:   strings.TrimSpace(e.Summary),
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		rec.PublishedAt = t.UTC()
	}
	for _, a := range e.Authors {
		if name := collapse(a.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	for _, c := range e.Categories {
		if c.Term != "" {
			rec.Categories = append(rec.Categories, c.Term)
		}
	}
	for _, l := range e.Links {
		if l.Rel == "alternate" || (rec.URL == "" && l.Href != "") {
			rec.URL = l.Href
		}
	}
	if rec.URL == "" {
		rec.URL = strings.TrimSpace(e.ID)
	}
	return rec
}

// ShortID macht aus "http://arxiv.org/abs/2401.12345v2" die versionslose ID "2401.12345".
func ShortID(entryID string) string {
	id := strings.TrimSpace(entryID)
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	return versionSuffix.ReplaceAllString(id, "")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
