package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func valueRecords(key string, vals ...float64) []Record {
	records := make([]Record, len(vals))
	for i, v := range vals {
		records[i] = Record{Values: map[string]float64{key: v}}
	}
	return records
}

func TestMedianValue(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want float64
		ok   bool
	}{
		{"odd", []float64{30, 10, 20}, 20, true},
		{"even takes lower middle", []float64{10, 20, 30, 40}, 20, true},
		{"single", []float64{7}, 7, true},
		{"empty", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := medianValue(valueRecords("v", tt.vals...), "v")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvgMinMax(t *testing.T) {
	records := valueRecords("rating", 3, 5, 4)

	avg, ok := avgValue(records, "rating")
	assert.True(t, ok)
	assert.Equal(t, 4.0, avg)

	min, ok := minValue(records, "rating")
	assert.True(t, ok)
	assert.Equal(t, 3.0, min)

	max, ok := maxValue(records, "rating")
	assert.True(t, ok)
	assert.Equal(t, 5.0, max)
}

func TestAvgValue_SkipsRecordsWithoutKey(t *testing.T) {
	records := []Record{
		{Values: map[string]float64{"rating": 4}},
		{Values: map[string]float64{}},
		{Values: map[string]float64{"rating": 2}},
	}

	avg, ok := avgValue(records, "rating")
	assert.True(t, ok)
	assert.Equal(t, 3.0, avg)
}

func TestDistinctLabel(t *testing.T) {
	records := []Record{
		{Labels: map[string]string{"place": "cafe"}},
		{Labels: map[string]string{"place": "park"}},
		{Labels: map[string]string{"place": "cafe"}},
		{Labels: map[string]string{}},
	}
	assert.Equal(t, 2.0, distinctLabel(records, "place"))
}

func TestFilterLabel(t *testing.T) {
	records := []Record{
		{ID: "a", Labels: map[string]string{"kind": "workout"}},
		{ID: "b", Labels: map[string]string{"kind": "set"}},
		{ID: "c", Labels: map[string]string{"kind": "workout"}},
	}

	workouts := filterLabel(records, "kind", "workout")
	assert.Len(t, workouts, 2)
	assert.Equal(t, "a", workouts[0].ID)
	assert.Equal(t, "c", workouts[1].ID)
}
