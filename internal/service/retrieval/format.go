package retrieval

import (
	"fmt"
	"math"
	"strings"

	"ragchat/internal/models"
)

// NoContext is what FormatContext returns for an empty match list.
const NoContext = "No relevant information found."

const unknownFile = "Unknown file"

// FormatContext renders matches, in input order, as the grounding block of the prompt.
func FormatContext(matches []models.Match) string {
	if len(matches) == 0 {
		return NoContext
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("[%s (Page %d, relevance: %.2f)]\n%s\n",
			filename(m), m.Page+1, m.Score, m.Content))
	}
	return strings.Join(parts, "\n")
}

// GroupSources groups matches by filename keeping input order within each file.
func GroupSources(matches []models.Match) models.Sources {
	sources := make(models.Sources)
	for _, m := range matches {
		name := filename(m)
		sources[name] = append(sources[name], models.PageInfo{
			Page:      m.Page + 1,
			Relevance: round(m.Score, 9),
			Text:      m.Content,
		})
	}
	return sources
}

func filename(m models.Match) string {
	if m.Filename == "" {
		return unknownFile
	}
	return m.Filename
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
