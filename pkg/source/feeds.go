package source

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

// Feed is a named RSS/Atom feed URL.
type Feed struct {
	Name string
	URL  string
}

// Feeds syncs subscribed RSS/Atom feeds as a reading log: one record per
// published entry. Feeds carry their own full history, so every run
// re-fetches each feed and relies on GUID-keyed upserts; the cursor never
// moves.
type Feeds struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []Feed
}

// NewFeeds creates a feed-subscription adapter.
func NewFeeds(feeds []Feed) *Feeds {
	return &Feeds{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
	}
}

func (f *Feeds) Name() Type { return TypeFeeds }

func (f *Feeds) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	var records []Record
	for _, feed := range f.feeds {
		items, err := f.fetchFeed(ctx, feed)
		if err != nil {
			// One dead feed should not abort the rest.
			fmt.Fprintf(os.Stderr, "  feeds: %s: %v\n", feed.Name, err)
			if fault.IsAuth(err) {
				return Batch{}, err
			}
			continue
		}
		records = append(records, items...)
	}
	return Batch{Records: records, NextCursor: cursor, HasMore: false}, nil
}

func (f *Feeds) fetchFeed(ctx context.Context, feed Feed) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "footprint/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fault.Transient("fetch feed "+feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("fetch feed "+feed.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fault.Validation("parse feed "+feed.Name, err)
	}

	now := time.Now().UTC()
	var records []Record
	for _, entry := range parsed.Items {
		var published time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		} else {
			continue
		}

		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}
		if guid == "" {
			continue
		}

		records = append(records, Record{
			ID:         fmt.Sprintf("feeds:%s:%s", feed.Name, guid),
			Source:     TypeFeeds,
			OccurredAt: published,
			Labels: map[string]string{
				"feed":  feed.Name,
				"title": entry.Title,
			},
			Values:    map[string]float64{},
			FetchedAt: now,
		})
	}
	return records, nil
}

func (f *Feeds) Reduce(records []Record) map[string]float64 {
	return map[string]float64{
		"posts":        float64(len(records)),
		"feeds_active": distinctLabel(records, "feed"),
	}
}

func (f *Feeds) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "posts"},
	}
}
