package main

import (
	"fmt"
	"strings"
	"sync"
)

// bang is a host command queued by a measure.
type bang struct {
	measure string
	name    string
	args    []string
}

// bangQueue collects commands issued from inside script calls so they run
// after the call returns.
type bangQueue struct {
	items []bang
	mu    sync.Mutex
}

func (q *bangQueue) push(measure, command string) {
	parsed := parseBangs(command)
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, b := range parsed {
		b.measure = measure
		q.items = append(q.items, b)
	}
}

func (q *bangQueue) drain() []bang {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// parseBangs splits "[!A x][!B y]" or a single "!A x" into bangs. Text
// outside brackets in a list is ignored.
func parseBangs(s string) []bang {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		if b, ok := parseBang(s); ok {
			return []bang{b}
		}
		return nil
	}

	var out []bang
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			if depth == 0 {
				start = i + 1
			}
			depth++
		case ']':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				if b, ok := parseBang(s[start:i]); ok {
					out = append(out, b)
				}
			}
		}
	}
	return out
}

func parseBang(s string) (bang, bool) {
	fields := splitArgs(strings.TrimSpace(s))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") || len(fields[0]) == 1 {
		return bang{}, false
	}
	return bang{name: strings.ToLower(fields[0][1:]), args: fields[1:]}, true
}

// splitArgs splits on spaces, keeping double-quoted runs together.
func splitArgs(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		hasWord bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			hasWord = true
		case (r == ' ' || r == '\t') && !quoted:
			if hasWord {
				out = append(out, cur.String())
				cur.Reset()
				hasWord = false
			}
		default:
			cur.WriteRune(r)
			hasWord = true
		}
	}
	if hasWord {
		out = append(out, cur.String())
	}
	return out
}

func (b bang) String() string {
	return fmt.Sprintf("!%s %s", b.name, strings.Join(b.args, " "))
}
