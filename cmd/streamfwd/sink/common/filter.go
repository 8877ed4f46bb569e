package common

import "strings"

// filter decides which records reach a sink. Patterns are substrings of the
// line text; a "stdout:" or "stderr:" prefix restricts a pattern to that
// stream, so "stderr:" alone matches every stderr line.
type filter struct {
	includes []pattern
	excludes []pattern
}

type pattern struct {
	stream string
	text   string
}

func newFilter(includes, excludes []string) *filter {
	return &filter{includes: parsePatterns(includes), excludes: parsePatterns(excludes)}
}

func parsePatterns(raw []string) []pattern {
	out := make([]pattern, 0, len(raw))
	for _, r := range raw {
		p := pattern{text: r}
		for _, stream := range []string{"stdout", "stderr"} {
			if rest, ok := strings.CutPrefix(r, stream+":"); ok {
				p = pattern{stream: stream, text: rest}
				break
			}
		}
		out = append(out, p)
	}
	return out
}

func (p pattern) match(rec Record) bool {
	if p.stream != "" && p.stream != rec.Stream {
		return false
	}
	return strings.Contains(rec.Text, p.text)
}

func (f *filter) allow(rec Record) bool {
	if len(f.includes) > 0 {
		ok := false
		for _, p := range f.includes {
			if p.match(rec) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, p := range f.excludes {
		if (p.stream != "" || p.text != "") && p.match(rec) {
			return false
		}
	}
	return true
}
