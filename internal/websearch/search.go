package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// fetchResults queries DuckDuckGo's HTML endpoint and returns up to
// maxResults organic hits. A non-positive maxResults uses the configured cap.
// An empty page yields an empty slice, not an error.
func (c *Client) fetchResults(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	form := url.Values{
		"q":  {query},
		"b":  {""},
		"kl": {c.cfg.Region},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	doc, err := htmlquery.Parse(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results page: %w", err)
	}

	results := parseSearchResults(doc, maxResults)
	c.log.Debug("Web search complete.",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// parseSearchResults walks the result blocks of a DuckDuckGo HTML page.
// Duplicate targets and ad redirects are dropped.
func parseSearchResults(doc *html.Node, limit int) []Result {
	nodes := htmlquery.Find(doc, `//div[contains(@class, 'result__body')]`)
	results := make([]Result, 0, limit)
	seen := make(map[string]struct{}, limit)

	for _, node := range nodes {
		if len(results) >= limit {
			break
		}
		link := htmlquery.FindOne(node, `.//a[contains(@class, 'result__a')]`)
		if link == nil {
			continue
		}
		target := resolveResultURL(htmlquery.SelectAttr(link, "href"))
		if target == "" {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		title := strings.TrimSpace(htmlquery.InnerText(link))
		if title == "" {
			continue
		}

		var snippet string
		if sn := htmlquery.FindOne(node, `.//a[contains(@class, 'result__snippet')]`); sn != nil {
			snippet = strings.TrimSpace(htmlquery.InnerText(sn))
		}

		seen[target] = struct{}{}
		results = append(results, Result{Title: title, URL: target, Snippet: snippet})
	}
	return results
}

// resolveResultURL unwraps DuckDuckGo's /l/?uddg= redirect and rejects ad
// links, which route through y.js instead. Returns "" for anything that
// should not surface as a result.
func resolveResultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Path, "y.js") {
		return ""
	}
	// Query() decodes the percent-encoded target for us.
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
