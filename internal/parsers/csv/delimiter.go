package csv

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrUnterminatedQuote is returned by SplitCSVLine for a line that ends
// inside a quoted field.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// delimiterSampleLines is how many non-empty lines DetectDelimiter reads.
const delimiterSampleLines = 5

// DetectDelimiter picks the delimiter that splits the header into at least
// two fields and gives the most sample lines the header's field count.
// Delimiters inside quotes are not counted. Ties go to the earlier of comma,
// semicolon, tab and pipe.
func DetectDelimiter(content string) CsvDelimiter {
	sample := make([]string, 0, delimiterSampleLines)
	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sample = append(sample, line)
		if len(sample) == delimiterSampleLines {
			break
		}
	}
	if len(sample) == 0 {
		return DelimiterComma
	}

	best := DelimiterComma
	bestMatches, bestFields := 0, 0
	for _, delim := range []CsvDelimiter{DelimiterComma, DelimiterSemicolon, DelimiterTab, DelimiterPipe} {
		r, _ := utf8.DecodeRuneInString(string(delim))
		fields, _ := SplitCSVLine(sample[0], r, '"')
		if len(fields) < 2 {
			continue
		}
		matches := 0
		for _, line := range sample {
			if got, _ := SplitCSVLine(line, r, '"'); len(got) == len(fields) {
				matches++
			}
		}
		if matches > bestMatches || (matches == bestMatches && len(fields) > bestFields) {
			best, bestMatches, bestFields = delim, matches, len(fields)
		}
	}
	return best
}

// SplitCSVLine splits one line on delimiter. A doubled quote inside a
// quoted field is a literal quote. The fields read so far are returned with
// ErrUnterminatedQuote when the last quoted field is never closed.
func SplitCSVLine(line string, delimiter rune, quoteChar rune) ([]string, error) {
	fields := make([]string, 0, 8)
	var current strings.Builder
	inQuotes := false

	for i := 0; i < len(line); {
		r, width := utf8.DecodeRuneInString(line[i:])
		i += width

		switch {
		case inQuotes && r == quoteChar:
			if next, w := utf8.DecodeRuneInString(line[i:]); i < len(line) && next == quoteChar {
				current.WriteRune(quoteChar)
				i += w
				continue
			}
			inQuotes = false
		case inQuotes:
			current.WriteRune(r)
		case r == quoteChar:
			inQuotes = true
		case r == delimiter:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, current.String())

	if inQuotes {
		return fields, ErrUnterminatedQuote
	}
	return fields, nil
}
