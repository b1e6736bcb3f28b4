package schemas

// -- Briefing Schemas --

// Story is one news item in a briefing, either raw from the wire or after
// curation.
type Story struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	Date     string `json:"date,omitempty"`
	URL      string `json:"url,omitempty"`
	Image    string `json:"image,omitempty"`
	Body     string `json:"body,omitempty"`
}

// SearchResult is one scraped web search hit prepared for model consumption.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
