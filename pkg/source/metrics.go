package source

import "sort"

// Reduction helpers shared by the adapters' Reduce implementations. Records
// that do not carry the requested value key are excluded from averages and
// order statistics rather than treated as zero.

func sumValue(records []Record, key string) float64 {
	var sum float64
	for i := range records {
		sum += records[i].Values[key]
	}
	return sum
}

func collectValues(records []Record, key string) []float64 {
	var out []float64
	for i := range records {
		if v, ok := records[i].Values[key]; ok {
			out = append(out, v)
		}
	}
	return out
}

func avgValue(records []Record, key string) (float64, bool) {
	vals := collectValues(records, key)
	if len(vals) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals)), true
}

func minValue(records []Record, key string) (float64, bool) {
	vals := collectValues(records, key)
	if len(vals) == 0 {
		return 0, false
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min, true
}

func maxValue(records []Record, key string) (float64, bool) {
	vals := collectValues(records, key)
	if len(vals) == 0 {
		return 0, false
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max, true
}

// medianValue returns the middle of the sorted values, taking the lower of
// the two middle values for even-sized sets.
func medianValue(records []Record, key string) (float64, bool) {
	vals := collectValues(records, key)
	if len(vals) == 0 {
		return 0, false
	}
	sort.Float64s(vals)
	return vals[(len(vals)-1)/2], true
}

// distinctLabel counts the distinct non-empty values of a label key.
func distinctLabel(records []Record, key string) float64 {
	seen := make(map[string]struct{})
	for i := range records {
		if v := records[i].Labels[key]; v != "" {
			seen[v] = struct{}{}
		}
	}
	return float64(len(seen))
}

// filterLabel returns the records whose label key equals value.
func filterLabel(records []Record, key, value string) []Record {
	var out []Record
	for i := range records {
		if records[i].Labels[key] == value {
			out = append(out, records[i])
		}
	}
	return out
}
