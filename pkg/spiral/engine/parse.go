package engine

import (
	"strconv"
	"strings"
)

// extractJSON isolates the JSON object from a reasoner response that may
// wrap it in prose or code fences.
func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return response
	}
	return response[startIdx : endIdx+1]
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
