// Package gaps analyzes issue key sequences for missing numbers.
//
// Jira issue keys carry a monotonically increasing numeric suffix per
// project; deleted or moved issues leave holes. Gap detection is read-only
// analysis, re-derivable at any time from the live key list.
package gaps

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// ReasonMissing is the reason recorded on detected gaps.
const ReasonMissing = "deleted_or_missing"

// Gap is a contiguous range of missing issue numbers, inclusive on both ends.
type Gap struct {
	StartNumber int    `json:"start_number"`
	EndNumber   int    `json:"end_number"`
	Reason      string `json:"reason"`
}

// Detect scans the numeric suffixes of the given issue keys and reports
// every missing range between the smallest and largest number, sorted
// ascending and disjoint. Keys without a parseable integer suffix are
// skipped and logged. Empty or single-element input yields no gaps.
func Detect(keys []string, logger *slog.Logger) []Gap {
	numbers := make([]int, 0, len(keys))
	for _, key := range keys {
		n, ok := parseKeyNumber(key)
		if !ok {
			if logger != nil {
				logger.Warn("could not parse issue number from key", "key", key)
			}
			continue
		}
		numbers = append(numbers, n)
	}

	if len(numbers) < 2 {
		return nil
	}
	sort.Ints(numbers)

	var result []Gap
	for i := 0; i < len(numbers)-1; i++ {
		current, next := numbers[i], numbers[i+1]
		if next-current > 1 {
			result = append(result, Gap{
				StartNumber: current + 1,
				EndNumber:   next - 1,
				Reason:      ReasonMissing,
			})
		}
	}
	return result
}

// parseKeyNumber extracts the trailing integer of a key like "PROJ-123".
func parseKeyNumber(key string) (int, bool) {
	idx := strings.LastIndex(key, "-")
	if idx < 0 || idx == len(key)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
