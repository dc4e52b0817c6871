package format

import "strings"

// DefaultSegmentSize is the downstream platform's per-message character limit.
const DefaultSegmentSize = 1500

// Split cuts text into ordered segments of at most maxSize characters,
// preferring to cut at the last newline at or before the limit. A line
// longer than maxSize is cut mid-line at exactly maxSize. Pieces are
// trimmed and empty pieces dropped, so no returned segment is empty.
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultSegmentSize
	}

	var segments []string
	remaining := []rune(strings.TrimSpace(text))

	for len(remaining) > maxSize {
		cut := -1
		for i := maxSize; i >= 0; i-- {
			if remaining[i] == '\n' {
				cut = i
				break
			}
		}
		if cut == -1 {
			cut = maxSize
		}

		piece := strings.TrimSpace(string(remaining[:cut]))
		if piece != "" {
			segments = append(segments, piece)
		}
		remaining = []rune(strings.TrimSpace(string(remaining[cut:])))
	}

	if len(remaining) > 0 {
		segments = append(segments, string(remaining))
	}
	return segments
}
