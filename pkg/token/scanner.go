package token

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUneven is returned when a delimiter has no closing partner.
var ErrUneven = errors.New("uneven number of delimiters")

// Segment is one piece of a scanned string. Literal segments carry text with
// escapes already collapsed; reference segments carry the token name.
type Segment struct {
	Text string
	Ref  bool
}

// Split breaks text into literal and delimited segments for delim. A doubled
// delimiter is an escape for a single literal delimiter. Adjacent literal
// text is merged into one segment.
func Split(text string, delim byte) ([]Segment, error) {
	var (
		segs []Segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Segment{Text: lit.String()})
			lit.Reset()
		}
	}

	rest := text
	for {
		open := strings.IndexByte(rest, delim)
		if open < 0 {
			lit.WriteString(rest)
			break
		}
		lit.WriteString(rest[:open])

		closing := strings.IndexByte(rest[open+1:], delim)
		if closing < 0 {
			return nil, fmt.Errorf("%w %q in %q", ErrUneven, string(delim), text)
		}
		if closing == 0 {
			lit.WriteByte(delim)
		} else {
			flush()
			segs = append(segs, Segment{Text: rest[open+1 : open+1+closing], Ref: true})
		}
		rest = rest[open+closing+2:]
	}
	flush()

	return segs, nil
}

// Join reassembles segments into source text, re-escaping literal delimiters.
// Join(Split(s)) reproduces s for every string Split accepts.
func Join(segs []Segment, delim byte) string {
	var b strings.Builder
	d := string(delim)
	for _, seg := range segs {
		if seg.Ref {
			b.WriteString(d)
			b.WriteString(seg.Text)
			b.WriteString(d)
			continue
		}
		b.WriteString(strings.ReplaceAll(seg.Text, d, d+d))
	}
	return b.String()
}

// HasRefs reports whether any segment is a reference.
func HasRefs(segs []Segment) bool {
	for _, seg := range segs {
		if seg.Ref {
			return true
		}
	}
	return false
}
