package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/windoze95/saltybytes-resolver/internal/logger"
	"go.uber.org/zap"
)

const (
	braveSearchEndpoint  = "https://api.search.brave.com/res/v1/web/search"
	googleSearchEndpoint = "https://www.googleapis.com/customsearch/v1"
)

// WebSearchProvider implements SearchProvider using Brave Search with
// automatic fallback to Google Custom Search. A provider that answers 429 or
// 403 is considered out of quota for the rest of the process lifetime.
type WebSearchProvider struct {
	googleAPIKey    string
	googleCX        string
	braveAPIKey     string
	braveEndpoint   string
	googleEndpoint  string
	httpClient      *http.Client
	googleExhausted atomic.Bool
	braveExhausted  atomic.Bool
}

// NewWebSearchProvider creates a search provider with Brave primary + Google fallback.
func NewWebSearchProvider(googleAPIKey, googleCX, braveAPIKey string) *WebSearchProvider {
	return &WebSearchProvider{
		googleAPIKey:   googleAPIKey,
		googleCX:       googleCX,
		braveAPIKey:    braveAPIKey,
		braveEndpoint:  braveSearchEndpoint,
		googleEndpoint: googleSearchEndpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SearchRecipes tries Brave first, falls back to Google when Brave fails,
// finds nothing or its quota is exhausted. An empty Brave answer is returned
// as is when Google is not available.
func (p *WebSearchProvider) SearchRecipes(ctx context.Context, q SearchQuery) ([]SearchResult, error) {
	if q.Count <= 0 {
		q.Count = 10
	}
	query := BuildQueryString(q)

	braveAnswered := false
	if !p.braveExhausted.Load() && p.braveAPIKey != "" {
		results, err := p.searchBrave(ctx, query, q.Count)
		switch {
		case err != nil:
			logger.Get().Warn("brave search failed, falling back to google", zap.Error(err))
		case len(results) > 0:
			return results, nil
		default:
			braveAnswered = true
			logger.Get().Info("brave search returned no results, trying google", zap.String("query", query))
		}
	}

	if !p.googleExhausted.Load() && p.googleAPIKey != "" {
		return p.searchGoogle(ctx, query, q.Count)
	}
	if braveAnswered {
		return nil, nil
	}

	return nil, fmt.Errorf("no search providers available")
}

// BuildQueryString renders a SearchQuery in the operator syntax both
// providers accept: exclusions as -term and -site:domain.
func BuildQueryString(q SearchQuery) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(q.Query))
	b.WriteString(" recipe")
	for _, term := range q.ExcludeTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if strings.ContainsAny(term, " \t") {
			b.WriteString(` -"` + term + `"`)
		} else {
			b.WriteString(" -" + term)
		}
	}
	for _, domain := range q.ExcludeDomains {
		if domain = strings.TrimSpace(domain); domain != "" {
			b.WriteString(" -site:" + domain)
		}
	}
	return b.String()
}

// --- Google Custom Search ---

type googleSearchResponse struct {
	Kind  string             `json:"kind"`
	Items []googleSearchItem `json:"items"`
	Error *googleErrorBlock  `json:"error"`
}

type googleSearchItem struct {
	Title   string         `json:"title"`
	Link    string         `json:"link"`
	Snippet string         `json:"snippet"`
	Pagemap *googlePagemap `json:"pagemap"`
}

type googlePagemap struct {
	CSEThumbnail []googleThumbnail `json:"cse_thumbnail"`
}

type googleThumbnail struct {
	Src string `json:"src"`
}

type googleErrorBlock struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *WebSearchProvider) searchGoogle(ctx context.Context, query string, count int) ([]SearchResult, error) {
	// Google CSE max is 10 per request
	if count > 10 {
		count = 10
	}

	params := url.Values{}
	params.Set("key", p.googleAPIKey)
	params.Set("cx", p.googleCX)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", count))

	body, status, err := p.get(ctx, p.googleEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("google search request failed: %w", err)
	}

	// 429 = quota exhausted for today
	if status == http.StatusTooManyRequests || status == http.StatusForbidden {
		p.googleExhausted.Store(true)
		return nil, fmt.Errorf("google quota exhausted (status %d)", status)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("google API returned status %d: %s", status, truncate(string(body), 200))
	}

	var gResp googleSearchResponse
	if err := json.Unmarshal(body, &gResp); err != nil || (gResp.Kind == "" && gResp.Items == nil && gResp.Error == nil) {
		return p.salvage("google", body), nil
	}

	if gResp.Error != nil {
		if gResp.Error.Code == 429 || gResp.Error.Code == 403 {
			p.googleExhausted.Store(true)
		}
		return nil, fmt.Errorf("google API error %d: %s", gResp.Error.Code, gResp.Error.Message)
	}

	results := make([]SearchResult, 0, len(gResp.Items))
	for _, item := range gResp.Items {
		r := SearchResult{
			Title:       item.Title,
			URL:         item.Link,
			Source:      extractDomain(item.Link),
			Description: item.Snippet,
		}
		if item.Pagemap != nil && len(item.Pagemap.CSEThumbnail) > 0 {
			r.ImageURL = item.Pagemap.CSEThumbnail[0].Src
		}
		results = append(results, r)
	}
	return results, nil
}

// --- Brave Search ---

type braveSearchResponse struct {
	Type string           `json:"type"`
	Web  *braveWebResults `json:"web"`
}

type braveWebResults struct {
	Results []braveResult `json:"results"`
}

type braveResult struct {
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
	Thumbnail   *braveThumbnail `json:"thumbnail"`
}

type braveThumbnail struct {
	Src string `json:"src"`
}

func (p *WebSearchProvider) searchBrave(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if count > 20 {
		count = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", count))

	headers := map[string]string{
		"X-Subscription-Token": p.braveAPIKey,
		"Accept":               "application/json",
	}
	body, status, err := p.get(ctx, p.braveEndpoint+"?"+params.Encode(), headers)
	if err != nil {
		return nil, fmt.Errorf("brave search request failed: %w", err)
	}

	if status == http.StatusTooManyRequests || status == http.StatusForbidden {
		p.braveExhausted.Store(true)
		return nil, fmt.Errorf("brave quota exhausted (status %d)", status)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("brave API returned status %d: %s", status, truncate(string(body), 200))
	}

	var bResp braveSearchResponse
	if err := json.Unmarshal(body, &bResp); err != nil || (bResp.Type == "" && bResp.Web == nil) {
		return p.salvage("brave", body), nil
	}

	if bResp.Web == nil {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(bResp.Web.Results))
	for _, r := range bResp.Web.Results {
		sr := SearchResult{
			Title:       r.Title,
			URL:         r.URL,
			Source:      extractDomain(r.URL),
			Description: r.Description,
		}
		if r.Thumbnail != nil {
			sr.ImageURL = r.Thumbnail.Src
		}
		results = append(results, sr)
	}
	return results, nil
}

func (p *WebSearchProvider) get(ctx context.Context, reqURL string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// --- Salvage ---

var salvageURLPattern = regexp.MustCompile(`https?://[^\s"'<>\\)\]]+`)

// providerHosts are never returned from salvage; they are links back into the
// search provider itself.
var providerHosts = []string{"brave.com", "google.com", "googleapis.com", "gstatic.com", "bing.com"}

// salvage recovers result URLs from a response body that could not be decoded.
func (p *WebSearchProvider) salvage(provider string, body []byte) []SearchResult {
	matches := salvageURLPattern.FindAllString(string(body), -1)
	seen := make(map[string]bool, len(matches))
	var results []SearchResult
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;")
		u, err := url.Parse(m)
		if err != nil || u.Hostname() == "" || isProviderHost(u.Hostname()) {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		results = append(results, SearchResult{
			Title:    titleFromURL(u),
			URL:      m,
			Source:   u.Hostname(),
			Salvaged: true,
		})
	}

	logger.Get().Warn("search response not decodable, salvaged urls",
		zap.String("provider", provider),
		zap.Int("salvaged", len(results)),
	)
	return results
}

func isProviderHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range providerHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// titleFromURL turns the last path segment into a readable title.
func titleFromURL(u *url.URL) string {
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if slug == "." || slug == "/" || slug == "" {
		return u.Hostname()
	}
	slug = strings.TrimSuffix(slug, path.Ext(slug))
	return strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(slug))
}

// extractDomain pulls the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
