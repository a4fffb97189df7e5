package scout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
	"github.com/arvidstrom/storeagent/agent/storage"
	"github.com/arvidstrom/storeagent/pkg/blocket"
	"github.com/arvidstrom/storeagent/pkg/tradera"
)

// Platforms a saved search can watch.
const (
	PlatformTradera = "tradera"
	PlatformBlocket = "blocket"
	PlatformBoth    = "both"
)

// maxDigestItems caps how many finds a single search contributes to the
// digest text; the rest is summarized as a count.
const maxDigestItems = 5

// TraderaSearcher and BlocketSearcher are the marketplace surfaces the
// scout reads from. They match the concrete clients in pkg/tradera and
// pkg/blocket.
type TraderaSearcher interface {
	Search(ctx context.Context, query, category string, maxPrice float64) ([]tradera.Item, error)
}

type BlocketSearcher interface {
	Search(ctx context.Context, query, region string, maxPrice float64) ([]blocket.Listing, error)
}

// Service owns sourcing watches: saved search criteria run against the
// marketplaces, with previously reported hits deduplicated so a re-run only
// surfaces new finds. A failed platform degrades a run instead of failing it.
type Service struct {
	store   storage.SearchStore
	tradera TraderaSearcher
	blocket BlocketSearcher
	now     func() time.Time
}

func NewService(store storage.SearchStore, traderaClient TraderaSearcher, blocketClient BlocketSearcher) *Service {
	return &Service{
		store:   store,
		tradera: traderaClient,
		blocket: blocketClient,
		now:     time.Now,
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateSearchInput struct {
	Query    string
	Platform string
	Category string
	Region   string
	MaxPrice float64
}

func (s *Service) CreateSearch(ctx context.Context, in CreateSearchInput) (*storage.SavedSearch, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", contractx.ErrValidation)
	}

	platform := in.Platform
	if platform == "" {
		platform = PlatformBoth
	}
	switch platform {
	case PlatformTradera, PlatformBlocket, PlatformBoth:
	default:
		return nil, fmt.Errorf("%w: platform %q, want %s, %s or %s", contractx.ErrValidation, in.Platform, PlatformTradera, PlatformBlocket, PlatformBoth)
	}

	search := &storage.SavedSearch{
		ID:        uuid.NewString(),
		Query:     query,
		Platform:  platform,
		Category:  in.Category,
		MaxPrice:  in.MaxPrice,
		Region:    in.Region,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateSearch(ctx, search); err != nil {
		return nil, fmt.Errorf("save search: %w", err)
	}
	log.Info().Str("search_id", search.ID).Str("query", query).Str("platform", platform).Msg("saved search created")
	return search, nil
}

func (s *Service) ListSearches(ctx context.Context, includeInactive bool) ([]*storage.SavedSearch, error) {
	return s.store.ListSearches(ctx, includeInactive)
}

// DeactivateSearch retires a watch without deleting its history. Already
// inactive searches are left as they are.
func (s *Service) DeactivateSearch(ctx context.Context, id string) (*storage.SavedSearch, error) {
	search, err := s.store.GetSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !search.Active {
		return search, nil
	}
	search.Active = false
	if err := s.store.UpdateSearch(ctx, search); err != nil {
		return nil, err
	}
	return search, nil
}

// Find is one new marketplace hit from a search run.
type Find struct {
	Platform string  `json:"platform"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price,omitempty"`
	URL      string  `json:"url,omitempty"`
}

type RunResult struct {
	SearchID string `json:"search_id"`
	Query    string `json:"query"`
	NewItems []Find `json:"new_items"`
	Count    int    `json:"count"`
}

// RunSearch runs one saved search on demand and reports only hits not seen
// in earlier runs.
func (s *Service) RunSearch(ctx context.Context, id string) (*RunResult, error) {
	search, err := s.store.GetSearch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !search.Active {
		return nil, fmt.Errorf("%w: search %s is inactive", contractx.ErrPrecondition, id)
	}
	return s.run(ctx, search)
}

func (s *Service) run(ctx context.Context, search *storage.SavedSearch) (*RunResult, error) {
	seen, err := s.store.SeenItems(ctx, search.ID)
	if err != nil {
		return nil, err
	}
	seenKeys := make(map[string]bool, len(seen))
	for _, item := range seen {
		seenKeys[item.Platform+":"+item.ExternalID] = true
	}

	var finds []Find
	if search.Platform == PlatformTradera || search.Platform == PlatformBoth {
		finds = append(finds, s.searchTradera(ctx, search)...)
	}
	if search.Platform == PlatformBlocket || search.Platform == PlatformBoth {
		finds = append(finds, s.searchBlocket(ctx, search)...)
	}

	now := s.now().UTC()
	result := &RunResult{SearchID: search.ID, Query: search.Query, NewItems: []Find{}}
	var fresh []*storage.SeenItem
	for _, find := range finds {
		key := find.Platform + ":" + find.ID
		if seenKeys[key] {
			continue
		}
		seenKeys[key] = true
		fresh = append(fresh, &storage.SeenItem{
			ID:         uuid.NewString(),
			SearchID:   search.ID,
			Platform:   find.Platform,
			ExternalID: find.ID,
			Title:      find.Title,
			Price:      find.Price,
			URL:        find.URL,
			CreatedAt:  now,
		})
		result.NewItems = append(result.NewItems, find)
	}
	result.Count = len(result.NewItems)

	if err := s.store.InsertSeenItems(ctx, fresh); err != nil {
		return nil, fmt.Errorf("record seen items: %w", err)
	}
	search.LastRunAt = now
	if err := s.store.UpdateSearch(ctx, search); err != nil {
		return nil, err
	}
	return result, nil
}

type Digest struct {
	Results  []*RunResult `json:"results"`
	TotalNew int          `json:"total_new"`
	Text     string       `json:"digest"`
}

// RunAll runs every active search and formats the combined finds as a
// digest. A search that fails is skipped so one bad watch never hides the
// others' finds.
func (s *Service) RunAll(ctx context.Context) (*Digest, error) {
	searches, err := s.store.ListSearches(ctx, false)
	if err != nil {
		return nil, err
	}

	digest := &Digest{Results: []*RunResult{}}
	if len(searches) == 0 {
		digest.Text = "Inga sparade sökningar."
		return digest, nil
	}

	for _, search := range searches {
		result, err := s.run(ctx, search)
		if err != nil {
			log.Error().Err(err).Str("search_id", search.ID).Str("query", search.Query).Msg("scout run failed")
			continue
		}
		digest.Results = append(digest.Results, result)
		digest.TotalNew += result.Count
	}
	digest.Text = formatDigest(digest.Results)
	return digest, nil
}

func (s *Service) searchTradera(ctx context.Context, search *storage.SavedSearch) []Find {
	if s.tradera == nil {
		return nil
	}
	items, err := s.tradera.Search(ctx, search.Query, search.Category, search.MaxPrice)
	if err != nil {
		log.Warn().Err(err).Str("query", search.Query).Msg("scout tradera search failed")
		return nil
	}
	finds := make([]Find, 0, len(items))
	for _, item := range items {
		finds = append(finds, Find{
			Platform: PlatformTradera,
			ID:       item.ID,
			Title:    item.Title,
			Price:    item.Price,
			URL:      item.URL,
		})
	}
	return finds
}

func (s *Service) searchBlocket(ctx context.Context, search *storage.SavedSearch) []Find {
	if s.blocket == nil {
		return nil
	}
	listings, err := s.blocket.Search(ctx, search.Query, search.Region, search.MaxPrice)
	if err != nil {
		log.Warn().Err(err).Str("query", search.Query).Msg("scout blocket search failed")
		return nil
	}
	finds := make([]Find, 0, len(listings))
	for _, listing := range listings {
		finds = append(finds, Find{
			Platform: PlatformBlocket,
			ID:       listing.ID,
			Title:    listing.Title,
			Price:    listing.Price,
			URL:      listing.URL,
		})
	}
	return finds
}

func formatDigest(results []*RunResult) string {
	total := 0
	for _, r := range results {
		total += r.Count
	}
	if total == 0 {
		return "Inga nya fynd idag."
	}

	var b strings.Builder
	b.WriteString("Dagens scoutrapport:\n")
	for _, r := range results {
		if r.Count == 0 {
			continue
		}
		fmt.Fprintf(&b, "\nSökning: %q — %d nya\n", r.Query, r.Count)
		shown := r.NewItems
		if len(shown) > maxDigestItems {
			shown = shown[:maxDigestItems]
		}
		for _, item := range shown {
			fmt.Fprintf(&b, "  [%s] %s", item.Platform, item.Title)
			if item.Price > 0 {
				fmt.Fprintf(&b, " — %.0f kr", item.Price)
			}
			b.WriteByte('\n')
			if item.URL != "" {
				fmt.Fprintf(&b, "  %s\n", item.URL)
			}
		}
		if r.Count > maxDigestItems {
			fmt.Fprintf(&b, "  ...och %d till\n", r.Count-maxDigestItems)
		}
	}
	return strings.TrimSpace(b.String())
}
