// Package fetch resolves human-readable titles for citation URLs returned
// by grounded generation. The model reports source URIs but often omits
// titles, so we fetch each page and read it out of the markup.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mithoo/internal/core"
)

const (
	fetchTimeout = 10 * time.Second
	// maxBodyBytes caps how much of a page we read; titles live in <head>.
	maxBodyBytes = 256 * 1024
)

// TitleResolver fills in missing citation titles by fetching pages.
type TitleResolver struct {
	client *http.Client
}

// NewTitleResolver creates a resolver with a sensible default client.
func NewTitleResolver() *TitleResolver {
	return &TitleResolver{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// ResolveTitles returns a copy of citations with empty titles filled in.
// Pages are fetched concurrently; any fetch failure falls back to the
// URL's hostname so every citation stays presentable.
func (r *TitleResolver) ResolveTitles(ctx context.Context, citations []core.Citation) []core.Citation {
	resolved := make([]core.Citation, len(citations))
	copy(resolved, citations)

	var wg sync.WaitGroup
	for i := range resolved {
		if resolved[i].Title != "" || resolved[i].URL == "" {
			continue
		}
		wg.Add(1)
		go func(c *core.Citation) {
			defer wg.Done()
			title, err := r.fetchTitle(ctx, c.URL)
			if err != nil || title == "" {
				c.Title = hostnameOf(c.URL)
				return
			}
			c.Title = title
		}(&resolved[i])
	}
	wg.Wait()

	return resolved
}

func (r *TitleResolver) fetchTitle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "mithoo/1.0 (citation title resolver)")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	return extractTitle(body)
}

// extractTitle tries common title locations in order of preference.
func extractTitle(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title != "" {
		return title, nil
	}

	ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content")
	if ogTitle = strings.TrimSpace(ogTitle); ogTitle != "" {
		return ogTitle, nil
	}

	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	return h1, nil
}

// hostnameOf returns a display fallback for an unfetchable page.
func hostnameOf(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Hostname() == "" {
		return pageURL
	}
	return parsed.Hostname()
}
