package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// Containers that hold page chrome rather than content. Their subtrees are
// dropped wholesale.
var boilerplateTags = map[string]struct{}{
	"head": {}, "script": {}, "style": {}, "noscript": {}, "template": {},
	"iframe": {}, "svg": {}, "canvas": {}, "nav": {}, "header": {},
	"footer": {}, "aside": {}, "form": {}, "button": {}, "select": {},
	"option": {}, "label": {},
}

// Elements that end a line of running text.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "main": {}, "li": {},
	"ul": {}, "ol": {}, "table": {}, "tr": {}, "blockquote": {}, "pre": {},
	"br": {}, "hr": {}, "dd": {}, "dt": {}, "figcaption": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// Scrape fetches a page and extracts its readable text. Non-HTML responses
// and pages with no running text return an error.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("unsupported content type %q", ct)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	text := extractReadableText(doc)
	if text == "" {
		return "", fmt.Errorf("no readable text extracted")
	}
	return text, nil
}

// extractReadableText flattens a parsed page into newline-separated lines of
// content text, pruning boilerplate subtrees as it walks.
func extractReadableText(doc *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if _, skip := boilerplateTags[tag]; skip {
				return
			}
			if _, block := blockTags[tag]; block {
				b.WriteByte('\n')
			}
		case html.TextNode:
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
			return
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode {
			if _, block := blockTags[strings.ToLower(n.Data)]; block {
				b.WriteByte('\n')
			}
		}
	}
	walk(doc)
	return collapseBlankLines(b.String())
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
