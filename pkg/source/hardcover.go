package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

const hardcoverBaseURL = "https://api.hardcover.app/v1/graphql"

const hardcoverFinishedQuery = `
query FinishedBooks {
  me {
    user_books(where: {status_id: {_eq: 3}}) {
      rating
      date_added
      reviewed_at
      book { slug title }
    }
  }
}`

// Hardcover syncs finished books. The API has no incremental listing, so
// every run re-fetches the full finished shelf and relies on slug-keyed
// upserts; the cursor never moves.
type Hardcover struct {
	client  *http.Client
	token   string
	baseURL string
}

// NewHardcover creates a Hardcover adapter.
func NewHardcover(token string) *Hardcover {
	return &Hardcover{
		client:  &http.Client{Timeout: 60 * time.Second},
		token:   token,
		baseURL: hardcoverBaseURL,
	}
}

func (h *Hardcover) Name() Type { return TypeHardcover }

func (h *Hardcover) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	body, _ := json.Marshal(map[string]string{"query": hardcoverFinishedQuery})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL, bytes.NewReader(body))
	if err != nil {
		return Batch{}, fmt.Errorf("create hardcover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return Batch{}, fault.Transient("fetch hardcover books", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Batch{}, apiError("fetch hardcover books", resp.StatusCode)
	}

	var result hcGraphQLResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Batch{}, fmt.Errorf("decode hardcover response: %w", err)
	}
	if len(result.Errors) > 0 {
		return Batch{}, fmt.Errorf("hardcover graphql: %s", result.Errors[0].Message)
	}

	now := time.Now().UTC()
	var records []Record
	for _, me := range result.Data.Me {
		for _, ub := range me.UserBooks {
			if ub.Book.Slug == "" {
				fmt.Fprintln(os.Stderr, "  hardcover: skipping book without slug")
				continue
			}

			// Prefer the review date as the finish date, like the
			// shelf itself does.
			finished := parseHardcoverDate(ub.ReviewedAt)
			if finished.IsZero() {
				finished = parseHardcoverDate(ub.DateAdded)
			}
			if finished.IsZero() {
				fmt.Fprintf(os.Stderr, "  hardcover: skipping %s without finish date\n", ub.Book.Slug)
				continue
			}

			vals := map[string]float64{}
			if ub.Rating != nil {
				vals["rating"] = *ub.Rating
			}

			records = append(records, Record{
				ID:         "hardcover:" + ub.Book.Slug,
				Source:     TypeHardcover,
				OccurredAt: finished.UTC(),
				Labels:     map[string]string{"title": ub.Book.Title},
				Values:     vals,
				FetchedAt:  now,
			})
		}
	}

	return Batch{Records: records, NextCursor: cursor, HasMore: false}, nil
}

func (h *Hardcover) Reduce(records []Record) map[string]float64 {
	metrics := map[string]float64{
		"books_finished": float64(len(records)),
	}
	if avg, ok := avgValue(records, "rating"); ok {
		metrics["avg_rating"] = avg
	}
	return metrics
}

func (h *Hardcover) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "books_finished"},
		{Name: "avg_rating"},
	}
}

type hcGraphQLResult struct {
	Data struct {
		Me []struct {
			UserBooks []hcUserBook `json:"user_books"`
		} `json:"me"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type hcUserBook struct {
	Rating     *float64 `json:"rating"`
	DateAdded  string   `json:"date_added"`
	ReviewedAt string   `json:"reviewed_at"`
	Book       struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"book"`
}

// parseHardcoverDate accepts both the date-only and timestamp forms the API
// mixes freely.
func parseHardcoverDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
