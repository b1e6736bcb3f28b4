// Package briefing assembles the news digest: raw headlines from DuckDuckGo
// news queries, optionally selected and retitled by the chat model.
package briefing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pocketd/api/schemas"
	"github.com/xkilldash9x/pocketd/internal/config"
	"github.com/xkilldash9x/pocketd/internal/websearch"
)

const curatorPrompt = `You are an expert News Editor.
Here is a list of raw news articles:
%s

Task:
1. Select the 6 most important and diverse stories.
2. Rewrite the titles to be punchy and short (under 10 words).
3. Assign a category: 'Technology', 'Science', 'Markets', 'Culture', or 'Top Stories'.
4. Return ONLY a JSON array of objects.
   Format: [{"id": <original_id>, "title": "<new_title>", "category": "<category>"}]

Do NOT add any markdown or text. Just the JSON array.`

const (
	cacheKeyCurated = "curated"
	cacheKeyRaw     = "raw"

	// fallbackLimit caps the raw briefing when curation is off or fails.
	fallbackLimit = 8
)

// categoryQueries drive the raw fetch. Order matters: curation ids index
// into the combined list.
var categoryQueries = []struct {
	query    string
	max      int
	category string
}{
	{"top news", 5, "Top Stories"},
	{"technology news", 5, "Technology"},
	{"science breakthrough", 3, "Science"},
}

// NewsSearcher is the slice of the search client the briefing needs.
type NewsSearcher interface {
	SearchNews(ctx context.Context, query string, maxResults int) ([]websearch.NewsItem, error)
}

type cacheEntry struct {
	fetched time.Time
	stories []schemas.Story
}

// Service fetches headlines and curates them with the chat model.
type Service struct {
	cfg     config.BriefingConfig
	news    NewsSearcher
	chat    schemas.ChatModel
	limiter *rate.Limiter
	log     *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry

	now func() time.Time
}

var _ schemas.BriefingProvider = (*Service)(nil)

// New builds the briefing service.
func New(cfg config.BriefingConfig, news NewsSearcher, chat schemas.ChatModel, logger *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	return &Service{
		cfg:  cfg,
		news: news,
		chat: chat,
		// DuckDuckGo rate limits eager clients. One query per second keeps
		// the category sweep polite.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		log:     logger.Named("Briefing"),
		cache:   make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Briefing returns the current stories, serving from cache while fresh. When
// curate is true the model selects and retitles them; any curation problem
// falls back to the raw headlines. Fetch failures degrade to an empty
// briefing rather than an error, since upstream rate limiting is routine and
// transient.
func (s *Service) Briefing(ctx context.Context, curate bool) ([]schemas.Story, error) {
	key := cacheKeyRaw
	if curate {
		key = cacheKeyCurated
	}
	if stories, ok := s.cached(key); ok {
		s.log.Debug("Serving briefing from cache.", zap.String("key", key))
		return stories, nil
	}

	raw, err := s.fetchRaw(ctx)
	if err != nil {
		s.log.Warn("Headline fetch failed.", zap.Error(err))
		return []schemas.Story{}, nil
	}

	var stories []schemas.Story
	if curate && len(raw) > 0 {
		stories, err = s.curate(ctx, raw)
		if err != nil {
			s.log.Warn("Curation failed, falling back to raw headlines.", zap.Error(err))
			stories = nil
		}
	}
	if stories == nil {
		stories = fallbackStories(raw)
	}

	s.store(key, stories)
	return stories, nil
}

// fetchRaw sweeps the category queries and tags each story with its category
// and position. An error on any query abandons the sweep.
func (s *Service) fetchRaw(ctx context.Context) ([]schemas.Story, error) {
	var raw []schemas.Story
	for _, cq := range categoryQueries {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		items, err := s.news.SearchNews(ctx, cq.query, cq.max)
		if err != nil {
			return nil, fmt.Errorf("fetching %s headlines: %w", cq.category, err)
		}
		for _, item := range items {
			raw = append(raw, schemas.Story{
				ID:       len(raw),
				Title:    item.Title,
				Category: cq.category,
				Source:   item.Source,
				Date:     item.Date,
				URL:      item.URL,
				Image:    item.Image,
				Body:     item.Body,
			})
		}
	}
	return raw, nil
}

type curatorPick struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// curate asks the chat model to pick and retitle stories, then merges its
// selection back with the metadata it was not shown.
func (s *Service) curate(ctx context.Context, raw []schemas.Story) ([]schemas.Story, error) {
	type digestEntry struct {
		ID       int    `json:"id"`
		Title    string `json:"title"`
		Source   string `json:"source"`
		Category string `json:"category"`
	}
	digest := make([]digestEntry, len(raw))
	for i, r := range raw {
		digest[i] = digestEntry{ID: r.ID, Title: r.Title, Source: r.Source, Category: r.Category}
	}
	payload, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling digest: %w", err)
	}

	reply, err := s.chat.Chat(ctx,
		[]schemas.ChatMessage{{Role: schemas.RoleUser, Content: fmt.Sprintf(curatorPrompt, payload)}},
		schemas.GenerationOptions{Temperature: s.cfg.CurateTemperature})
	if err != nil {
		return nil, fmt.Errorf("curator call failed: %w", err)
	}

	var picks []curatorPick
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &picks); err != nil {
		return nil, fmt.Errorf("curator returned an unparseable selection: %w", err)
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("curator selected no stories")
	}

	stories := make([]schemas.Story, 0, len(picks))
	for _, pick := range picks {
		if pick.ID < 0 || pick.ID >= len(raw) {
			return nil, fmt.Errorf("curator referenced story %d of %d", pick.ID, len(raw))
		}
		original := raw[pick.ID]
		stories = append(stories, schemas.Story{
			ID:       original.ID,
			Title:    pick.Title,
			Category: pick.Category,
			Source:   original.Source,
			Date:     original.Date,
			URL:      original.URL,
			Image:    original.Image,
			Body:     original.Body,
		})
	}
	return stories, nil
}

// fallbackStories dedups raw headlines by title and keeps the top eight.
func fallbackStories(raw []schemas.Story) []schemas.Story {
	seen := make(map[string]struct{}, len(raw))
	stories := make([]schemas.Story, 0, fallbackLimit)
	for _, story := range raw {
		if len(stories) >= fallbackLimit {
			break
		}
		if _, dup := seen[story.Title]; dup {
			continue
		}
		seen[story.Title] = struct{}{}
		stories = append(stories, story)
	}
	return stories
}

// stripCodeFence peels a markdown code fence off a model reply. Models wrap
// JSON in fences despite instructions often enough to plan for it.
func stripCodeFence(s string) string {
	if strings.Contains(s, "```json") {
		s = strings.SplitN(s, "```json", 2)[1]
		return strings.TrimSpace(strings.SplitN(s, "```", 2)[0])
	}
	if strings.Contains(s, "```") {
		parts := strings.Split(s, "```")
		if len(parts) > 1 {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(s)
}

func (s *Service) cached(key string) ([]schemas.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[key]
	if !ok || s.now().Sub(entry.fetched) >= s.cfg.CacheTTL {
		return nil, false
	}
	return entry.stories, true
}

func (s *Service) store(key string, stories []schemas.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = cacheEntry{fetched: s.now(), stories: stories}
}
