package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// The news endpoint requires a vqd token minted per query by the main site.
var vqdPattern = regexp.MustCompile(`vqd=["']?([\d-]+)`)

type newsResponse struct {
	Results []struct {
		Date    int64  `json:"date"`
		Excerpt string `json:"excerpt"`
		Image   string `json:"image"`
		Source  string `json:"source"`
		Title   string `json:"title"`
		URL     string `json:"url"`
	} `json:"results"`
}

// SearchNews queries DuckDuckGo's news endpoint and returns up to maxResults
// items, newest first as the endpoint orders them. A non-positive maxResults
// uses the configured cap.
func (c *Client) SearchNews(ctx context.Context, query string, maxResults int) ([]NewsItem, error) {
	if maxResults <= 0 {
		maxResults = c.cfg.MaxResults
	}

	vqd, err := c.fetchVQD(ctx, query)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"l":     {c.cfg.Region},
		"o":     {"json"},
		"noamp": {"1"},
		"q":     {query},
		"vqd":   {vqd},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.newsURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", "https://duckduckgo.com/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news returned status %d", resp.StatusCode)
	}

	var payload newsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFetchBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	items := make([]NewsItem, 0, maxResults)
	for _, row := range payload.Results {
		if len(items) >= maxResults {
			break
		}
		item := NewsItem{
			Title:  row.Title,
			URL:    row.URL,
			Source: row.Source,
			Body:   row.Excerpt,
			Image:  row.Image,
		}
		if row.Date > 0 {
			item.Date = time.Unix(row.Date, 0).UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	c.log.Debug("News search complete.",
		zap.String("query", query),
		zap.Int("results", len(items)))
	return items, nil
}

// fetchVQD loads the regular results page for the query and pulls the vqd
// token out of the embedded script. The news endpoint rejects requests
// without it.
func (c *Client) fetchVQD(ctx context.Context, query string) (string, error) {
	endpoint := c.vqdURL + "?" + url.Values{"q": {query}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build vqd request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("vqd request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vqd request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read vqd response: %w", err)
	}

	match := vqdPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("no vqd token in response")
	}
	return string(match[1]), nil
}
