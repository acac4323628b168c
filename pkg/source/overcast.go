package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

// Overcast imports an Overcast OPML export: one record per subscribed feed
// (keyed by the add date) and one per played episode. A single export cannot
// witness removals, so feeds_removed stays at zero until a removal-detecting
// importer exists.
type Overcast struct {
	exportPath string
}

// NewOvercast creates an importer for the OPML export file.
func NewOvercast(exportPath string) *Overcast {
	return &Overcast{exportPath: exportPath}
}

func (o *Overcast) Name() Type { return TypeOvercast }

func (o *Overcast) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	data, err := os.ReadFile(o.exportPath)
	if err != nil {
		return Batch{}, fmt.Errorf("open overcast export: %w", err)
	}

	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return Batch{}, fault.Validation("parse overcast opml", err)
	}

	now := time.Now().UTC()
	var records []Record
	for _, group := range doc.Body.Outlines {
		for _, feed := range flattenOutlines(group) {
			if feed.Type != "rss" {
				continue
			}

			feedKey := feed.XMLURL
			if feedKey == "" {
				feedKey = feed.Title
			}
			if feedKey == "" {
				fmt.Fprintln(os.Stderr, "  overcast: skipping feed without url or title")
				continue
			}

			if added := parseOvercastTime(feed.OvercastAddedDate); !added.IsZero() {
				records = append(records, Record{
					ID:         "overcast:feed:" + feedKey,
					Source:     TypeOvercast,
					OccurredAt: added,
					Labels:     map[string]string{"kind": "feed_added", "feed": feed.Title},
					Values:     map[string]float64{},
					FetchedAt:  now,
				})
			}

			for _, ep := range feed.Outlines {
				if ep.Type != "podcast-episode" || ep.Played != "1" {
					continue
				}
				played := parseOvercastTime(ep.UserUpdatedDate)
				if played.IsZero() {
					continue
				}
				epKey := ep.URL
				if epKey == "" {
					epKey = feedKey + "/" + ep.Title
				}
				records = append(records, Record{
					ID:         "overcast:episode:" + epKey,
					Source:     TypeOvercast,
					OccurredAt: played,
					Labels:     map[string]string{"kind": "episode_played", "feed": feed.Title},
					Values:     map[string]float64{},
					FetchedAt:  now,
				})
			}
		}
	}

	return Batch{Records: records, NextCursor: cursor, HasMore: false}, nil
}

// flattenOutlines returns the outline itself plus all nested outlines, so
// feeds are found whether or not the export wraps them in a group.
func flattenOutlines(o opmlOutline) []opmlOutline {
	out := []opmlOutline{o}
	for _, child := range o.Outlines {
		if child.Type == "rss" {
			out = append(out, flattenOutlines(child)...)
		}
	}
	return out
}

func parseOvercastTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05 -0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (o *Overcast) Reduce(records []Record) map[string]float64 {
	return map[string]float64{
		"feeds_added":     float64(len(filterLabel(records, "kind", "feed_added"))),
		"feeds_removed":   float64(len(filterLabel(records, "kind", "feed_removed"))),
		"episodes_played": float64(len(filterLabel(records, "kind", "episode_played"))),
	}
}

func (o *Overcast) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "episodes_played"},
	}
}

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    struct {
		Outlines []opmlOutline `xml:"outline"`
	} `xml:"body"`
}

type opmlOutline struct {
	Type              string        `xml:"type,attr"`
	Title             string        `xml:"title,attr"`
	Text              string        `xml:"text,attr"`
	XMLURL            string        `xml:"xmlUrl,attr"`
	URL               string        `xml:"url,attr"`
	Played            string        `xml:"played,attr"`
	OvercastAddedDate string        `xml:"overcastAddedDate,attr"`
	UserUpdatedDate   string        `xml:"userUpdatedDate,attr"`
	Outlines          []opmlOutline `xml:"outline"`
}
