package websearch

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pocketd/internal/config"
)

// newTestClient builds a client with test defaults. Callers point the
// endpoint fields at their httptest servers.
func newTestClient(t *testing.T, cfg config.SearchConfig) *Client {
	t.Helper()
	return NewClient(cfg, zaptest.NewLogger(t))
}

type searchEntry struct {
	title   string
	href    string
	snippet string
}

// resultPage builds a minimal DuckDuckGo HTML results page containing the
// given entries.
func resultPage(entries ...searchEntry) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body><div id="links" class="results">`)
	for _, e := range entries {
		b.WriteString(`<div class="links_main links_deep result__body">`)
		b.WriteString(`<h2 class="result__title">`)
		fmt.Fprintf(&b, `<a rel="nofollow" class="result__a" href="%s">%s</a>`, e.href, e.title)
		b.WriteString(`</h2>`)
		if e.snippet != "" {
			fmt.Fprintf(&b, `<a class="result__snippet" href="%s">%s</a>`, e.href, e.snippet)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// wrappedURL mimics the /l/?uddg= redirect DuckDuckGo wraps organic result
// links in.
func wrappedURL(target string) string {
	return "//duckduckgo.com/l/?uddg=" + url.QueryEscape(target) + "&rut=9f0e2"
}
