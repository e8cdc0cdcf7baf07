// Package chunker splits extracted pages into overlapping character windows.
//
// Pages are concatenated with a paragraph break between them and a window of
// maxSize runes slides over the result. When the window does not reach the
// end of the text its end is pulled back to the best separator it contains,
// in priority order paragraph, line, sentence, word; without any separator
// the window is cut at exactly maxSize. The next window always starts
// overlap runes before the previous end, so the tail of chunk i equals the
// head of chunk i+1.
package chunker

import (
	"fmt"
	"strings"

	"github.com/akolanti/uniassist/internal/domain/commonModels"
	"github.com/akolanti/uniassist/internal/domain/ragErrors"
)

// PageSeparator is inserted between pages and doubles as a paragraph break.
const PageSeparator = "\n\n"

var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune(" "),
}

type pageSpan struct {
	index int
	start int
}

// Split returns the chunks of a document. maxSize and overlap are counted in
// runes and must satisfy 0 <= overlap < maxSize.
func Split(document string, pages []commonModels.PageRecord, maxSize, overlap int) ([]commonModels.DocChunk, error) {
	if maxSize <= 0 {
		return nil, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("max size must be positive, got %d", maxSize)}
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, &ragErrors.InvalidParamsError{Reason: fmt.Sprintf("overlap %d must be in [0, %d)", overlap, maxSize)}
	}

	text, spans := concatenate(pages)
	if len(spans) == 0 {
		return nil, nil
	}

	chunks := make([]commonModels.DocChunk, 0, len(text)/(maxSize-overlap)+1)
	start := 0
	for {
		end := start + maxSize
		last := end >= len(text)
		if last {
			end = len(text)
		} else {
			end = breakPoint(text, start, end, overlap, maxSize)
		}

		chunks = append(chunks, commonModels.DocChunk{
			Document: document,
			Text:     string(text[start:end]),
			Page:     pageAt(spans, start),
			Ordinal:  len(chunks),
			Start:    start,
			End:      end,
		})
		if last {
			return chunks, nil
		}
		start = end - overlap
	}
}

// concatenate joins the non-blank pages and records where each one starts.
func concatenate(pages []commonModels.PageRecord) ([]rune, []pageSpan) {
	var text []rune
	var spans []pageSpan
	sep := []rune(PageSeparator)
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		if len(spans) > 0 {
			text = append(text, sep...)
		}
		spans = append(spans, pageSpan{index: page.Index, start: len(text)})
		text = append(text, []rune(page.Text)...)
	}
	return text, spans
}

// breakPoint picks the end of a window that starts at start and may extend to
// limit. Candidates must leave the window longer than overlap (so the walk
// always advances) and at least half full (so a separator right after the
// overlap does not produce a sliver).
func breakPoint(text []rune, start, limit, overlap, maxSize int) int {
	lo := start + overlap + 1
	if half := start + maxSize/2; half > lo {
		lo = half
	}
	for _, sep := range separators {
		// the separator stays with the chunk it closes
		for end := limit; end >= lo; end-- {
			if end-len(sep) < start {
				break
			}
			if hasSuffixAt(text, end, sep) {
				return end
			}
		}
	}
	return limit
}

func hasSuffixAt(text []rune, end int, sep []rune) bool {
	begin := end - len(sep)
	for i, r := range sep {
		if text[begin+i] != r {
			return false
		}
	}
	return true
}

func pageAt(spans []pageSpan, offset int) int {
	page := spans[0].index
	for _, span := range spans {
		if span.start > offset {
			break
		}
		page = span.index
	}
	return page
}
