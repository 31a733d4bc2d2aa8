package triage

import "strings"

// phrase is a compiled catalog trigger: a contiguous token sequence, optionally
// ending in a prefix wildcard ("panic attack*").
type phrase struct {
	source string
	tokens []string
	prefix bool
}

func compilePhrase(raw string) (phrase, bool) {
	source := strings.TrimSpace(raw)
	body := source
	prefix := false
	if strings.HasSuffix(body, "*") {
		prefix = true
		body = strings.TrimRight(body, "*")
	}

	n := Normalize(body)
	if n.Empty() {
		return phrase{}, false
	}
	return phrase{source: source, tokens: n.Tokens, prefix: prefix}, true
}

// compilePhrases compiles raw triggers, dropping unusable and duplicate entries.
func compilePhrases(raw []string) []phrase {
	out := make([]phrase, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, r := range raw {
		p, ok := compilePhrase(r)
		if !ok {
			continue
		}
		key := p.key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func (p phrase) key() string {
	key := strings.Join(p.tokens, " ")
	if p.prefix {
		key += "*"
	}
	return key
}

// multiword reports whether the phrase spans more than one token.
func (p phrase) multiword() bool {
	return len(p.tokens) > 1
}

// matches reports whether the phrase occurs as a contiguous run in tokens.
func (p phrase) matches(tokens []string) bool {
	n := len(p.tokens)
	if n == 0 || n > len(tokens) {
		return false
	}
	for start := 0; start+n <= len(tokens); start++ {
		if p.matchesAt(tokens, start) {
			return true
		}
	}
	return false
}

func (p phrase) matchesAt(tokens []string, start int) bool {
	last := len(p.tokens) - 1
	for i, want := range p.tokens {
		got := tokens[start+i]
		if i == last && p.prefix {
			if !strings.HasPrefix(got, want) {
				return false
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}
