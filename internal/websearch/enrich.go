package websearch

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pocketd/api/schemas"
)

// SearchAndScrape searches, then fetches full text for each hit in parallel.
// Results keep search ranking order regardless of which page answers first.
// Pages that fail to scrape still appear, with empty Content. A non-positive
// numResults fetches three.
func (c *Client) SearchAndScrape(ctx context.Context, query string, numResults int) ([]EnrichedResult, error) {
	if numResults <= 0 {
		numResults = defaultScrapeResults
	}

	results, err := c.fetchResults(ctx, query, numResults)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	enriched := make([]EnrichedResult, len(results))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, r := range results {
		g.Go(func() error {
			content, err := c.Scrape(gctx, r.URL)
			if err != nil {
				c.log.Debug("Page scrape failed.", zap.String("url", r.URL), zap.Error(err))
				content = ""
			}
			enriched[i] = EnrichedResult{
				Title:   r.Title,
				URL:     r.URL,
				Snippet: r.Snippet,
				Content: truncateContent(content, c.cfg.TruncateAt),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}

// Search returns scraped hits condensed for model consumption: each carries
// the page text when the scrape succeeded, the search snippet otherwise. It
// satisfies the schemas.Searcher contract consumed by the API server.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]schemas.SearchResult, error) {
	enriched, err := c.SearchAndScrape(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	results := make([]schemas.SearchResult, len(enriched))
	for i, r := range enriched {
		content := r.Content
		if content == "" {
			content = r.Snippet
		}
		results[i] = schemas.SearchResult{Title: r.Title, URL: r.URL, Content: content}
	}
	return results, nil
}

// truncateContent trims to limit runes and marks the cut with an ellipsis.
func truncateContent(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// FormatForLLM renders enriched results as a numbered plain-text block
// suitable for a model prompt. Hits without scraped content fall back to
// their search snippet.
func FormatForLLM(results []EnrichedResult) string {
	if len(results) == 0 {
		return "No search results found."
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		parts := []string{fmt.Sprintf("[%d] %s", i+1, r.Title)}
		parts = append(parts, fmt.Sprintf("    Source: %s", r.URL))
		if r.Content != "" {
			parts = append(parts, fmt.Sprintf("    Content: %s", r.Content))
		} else if r.Snippet != "" {
			parts = append(parts, fmt.Sprintf("    Summary: %s", r.Snippet))
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}
