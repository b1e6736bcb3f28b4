// Package websearch provides free web search, news lookup, and page scraping
// through DuckDuckGo's unauthenticated endpoints. No API keys required.
package websearch

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/network"
)

const (
	searchEndpoint = "https://html.duckduckgo.com/html/"
	newsEndpoint   = "https://duckduckgo.com/news.js"
	vqdEndpoint    = "https://duckduckgo.com/"

	// DuckDuckGo serves a captcha to clients that look like bots. A current
	// desktop Firefox string keeps the HTML endpoint cooperative.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

	// maxFetchBytes caps how much of any response body is read. Pages larger
	// than this are truncated before parsing rather than rejected.
	maxFetchBytes = 2 << 20

	// defaultScrapeResults is how many hits SearchAndScrape fetches full
	// content for when the caller does not say.
	defaultScrapeResults = 3
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// EnrichedResult is a search hit with the linked page's extracted text.
// Content is empty when the page could not be fetched or yielded no text.
type EnrichedResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
}

// NewsItem is a single news search hit.
type NewsItem struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	// Date is RFC 3339 in UTC, converted from the epoch seconds the endpoint
	// returns. Empty when the endpoint omitted a timestamp.
	Date  string `json:"date"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

// Client issues search, news, and scrape requests.
type Client struct {
	cfg  config.SearchConfig
	http *network.Client
	log  *zap.Logger

	// Endpoint fields exist so tests can point the client at local servers.
	searchURL string
	newsURL   string
	vqdURL    string
}

var _ schemas.Searcher = (*Client)(nil)

// NewClient builds a search client. Zero config fields fall back to the
// shipped defaults.
func NewClient(cfg config.SearchConfig, logger *zap.Logger) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.TruncateAt <= 0 {
		cfg.TruncateAt = 4000
	}
	if cfg.Region == "" {
		cfg.Region = "wt-wt"
	}

	netCfg := network.NewDefaultClientConfig()
	if cfg.Timeout > 0 {
		netCfg.RequestTimeout = cfg.Timeout
	}
	netCfg.Logger = logger.Named("httpclient")

	return &Client{
		cfg:       cfg,
		http:      network.NewClient(netCfg),
		log:       logger.Named("WebSearch"),
		searchURL: searchEndpoint,
		newsURL:   newsEndpoint,
		vqdURL:    vqdEndpoint,
	}
}
