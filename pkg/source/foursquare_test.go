package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func foursquareCheckinJSON(n int, createdAt int64) string {
	return fmt.Sprintf(`{
		"id": "ci-%d",
		"createdAt": %d,
		"venue": {"id": "venue-%d", "name": "Place %d"}
	}`, n, createdAt, n%2, n%2)
}

func TestFoursquare_FetchSince_FullPageKeepsWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "oldestfirst", r.URL.Query().Get("sort"))
		assert.Equal(t, "1000000000", r.URL.Query().Get("afterTimestamp"))
		assert.Equal(t, "250", r.URL.Query().Get("offset"))

		items := make([]json.RawMessage, foursquarePageSize)
		for i := range items {
			items[i] = json.RawMessage(foursquareCheckinJSON(i, 1000000100+int64(i)))
		}
		resp := map[string]any{
			"response": map[string]any{
				"checkins": map[string]any{"count": len(items), "items": items},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	fsq := NewFoursquare("token")
	fsq.baseURL = server.URL

	batch, err := fsq.FetchSince(context.Background(), "1000000000|250")
	require.NoError(t, err)
	assert.Len(t, batch.Records, foursquarePageSize)
	assert.True(t, batch.HasMore)
	// Same window, next offset.
	assert.Equal(t, "1000000000|"+strconv.Itoa(250+foursquarePageSize), batch.NextCursor)
}

func TestFoursquare_FetchSince_ShortPageEndsWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"response": {"checkins": {"count": 2, "items": [%s, %s]}}
		}`, foursquareCheckinJSON(1, 1000000100), foursquareCheckinJSON(2, 1000000200))
	}))
	defer server.Close()

	fsq := NewFoursquare("token")
	fsq.baseURL = server.URL

	batch, err := fsq.FetchSince(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.False(t, batch.HasMore)
	// The next window starts after the highest applied timestamp.
	assert.Equal(t, "1000000200|0", batch.NextCursor)
	assert.Equal(t, "foursquare:ci-1", batch.Records[0].ID)
}

func TestFoursquare_Reduce(t *testing.T) {
	records := []Record{
		{Labels: map[string]string{"place": "a"}},
		{Labels: map[string]string{"place": "b"}},
		{Labels: map[string]string{"place": "a"}},
	}

	metrics := NewFoursquare("").Reduce(records)
	assert.Equal(t, 3.0, metrics["checkins"])
	assert.Equal(t, 2.0, metrics["unique_places"])
}
