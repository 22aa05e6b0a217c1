package utils

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dotted version strings segment by segment.
// Missing segments count as 0, as do segments that are not numeric ("1.7" == "1.7.0", "1.x" == "1.0").
// Returns -1 if a < b, 0 if equal and 1 if a > b.
func CompareVersions(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")

	length := len(partsA)
	if len(partsB) > length {
		length = len(partsB)
	}

	for i := 0; i < length; i++ {
		segA := versionSegment(partsA, i)
		segB := versionSegment(partsB, i)
		if segA < segB {
			return -1
		}
		if segA > segB {
			return 1
		}
	}

	return 0
}

func versionSegment(parts []string, idx int) int64 {
	if idx >= len(parts) {
		return 0
	}
	val, err := strconv.ParseInt(strings.TrimSpace(parts[idx]), 10, 64)
	if err != nil {
		return 0
	}
	return val
}
