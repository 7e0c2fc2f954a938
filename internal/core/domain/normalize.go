package domain

import "strings"

const fence = "```"

// NormalizeCompletion strips a code fence wrapped around a model completion.
// The first line must open the fence (optionally followed by a language tag
// such as "json") and the last line must be a bare fence; anything else is
// returned trimmed but otherwise untouched. Nested paired fences are all
// removed, which keeps the function idempotent.
func NormalizeCompletion(raw string) string {
	s := strings.TrimSpace(raw)
	for {
		inner, ok := unfence(s)
		if !ok {
			return s
		}
		s = inner
	}
}

func unfence(s string) (string, bool) {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s, false
	}

	first := strings.TrimSpace(lines[0])
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(first, fence) || last != fence {
		return s, false
	}

	// Only a language tag may follow the opening marker.
	tag := strings.TrimPrefix(first, fence)
	if strings.ContainsAny(tag, "` \t") {
		return s, false
	}

	return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n")), true
}
