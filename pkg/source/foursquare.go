package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

const (
	foursquareBaseURL   = "https://api.foursquare.com/v2"
	foursquarePageSize  = 250
	foursquareAPIDateV2 = "20231010"
)

// Foursquare syncs the authenticated user's checkin history.
//
// Cursor format: "<afterTimestamp unix seconds>|<offset>". The timestamp half
// is the highest createdAt applied so far; the offset half pages through one
// fetch window.
type Foursquare struct {
	client  *http.Client
	token   string
	baseURL string
}

// NewFoursquare creates a Foursquare adapter.
func NewFoursquare(token string) *Foursquare {
	return &Foursquare{
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   token,
		baseURL: foursquareBaseURL,
	}
}

func (f *Foursquare) Name() Type { return TypeFoursquare }

func (f *Foursquare) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	after, offset := parseFoursquareCursor(cursor)

	params := url.Values{}
	params.Set("oauth_token", f.token)
	params.Set("v", foursquareAPIDateV2)
	params.Set("sort", "oldestfirst")
	params.Set("limit", strconv.Itoa(foursquarePageSize))
	params.Set("offset", strconv.Itoa(offset))
	if after > 0 {
		params.Set("afterTimestamp", strconv.FormatInt(after, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/users/self/checkins?"+params.Encode(), nil)
	if err != nil {
		return Batch{}, fmt.Errorf("create foursquare request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Batch{}, fault.Transient("fetch foursquare checkins", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, apiError("fetch foursquare checkins", resp.StatusCode)
	}

	var result fsqCheckinsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Batch{}, fmt.Errorf("decode foursquare response: %w", err)
	}

	now := time.Now().UTC()
	highest := after
	var records []Record
	for _, ci := range result.Response.Checkins.Items {
		if ci.ID == "" || ci.CreatedAt == 0 {
			fmt.Fprintln(os.Stderr, "  foursquare: skipping malformed checkin")
			continue
		}
		if ci.CreatedAt > highest {
			highest = ci.CreatedAt
		}

		records = append(records, Record{
			ID:         "foursquare:" + ci.ID,
			Source:     TypeFoursquare,
			OccurredAt: time.Unix(ci.CreatedAt, 0).UTC(),
			Labels: map[string]string{
				"place":      ci.Venue.ID,
				"place_name": ci.Venue.Name,
			},
			Values:    map[string]float64{},
			FetchedAt: now,
		})
	}

	// A short page ends the window; the next window starts after the
	// highest applied timestamp with a fresh offset.
	if len(result.Response.Checkins.Items) < foursquarePageSize {
		return Batch{
			Records:    records,
			NextCursor: strconv.FormatInt(highest, 10) + "|0",
			HasMore:    false,
		}, nil
	}
	return Batch{
		Records:    records,
		NextCursor: strconv.FormatInt(after, 10) + "|" + strconv.Itoa(offset+foursquarePageSize),
		HasMore:    true,
	}, nil
}

func parseFoursquareCursor(cursor string) (after int64, offset int) {
	ts, off, _ := strings.Cut(cursor, "|")
	after, _ = strconv.ParseInt(ts, 10, 64)
	offset, _ = strconv.Atoi(off)
	return after, offset
}

func (f *Foursquare) Reduce(records []Record) map[string]float64 {
	return map[string]float64{
		"checkins":      float64(len(records)),
		"unique_places": distinctLabel(records, "place"),
	}
}

func (f *Foursquare) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "checkins"},
		{Name: "unique_places"},
	}
}

type fsqCheckinsResult struct {
	Response struct {
		Checkins struct {
			Count int          `json:"count"`
			Items []fsqCheckin `json:"items"`
		} `json:"checkins"`
	} `json:"response"`
}

type fsqCheckin struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Venue     struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"venue"`
}
