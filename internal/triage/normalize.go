// Package triage holds the pure decision logic of the assistant: text
// normalization, crisis risk assessment, scenario matching, profile inference
// and resource ranking. Nothing here performs I/O or blocks.
package triage

import (
	"strings"
	"unicode"
)

// Normalized is user text folded into a searchable form.
type Normalized struct {
	Text   string
	Tokens []string
}

// Empty reports whether the input carried no usable words.
func (n Normalized) Empty() bool {
	return len(n.Tokens) == 0
}

// contractions folds spellings that share a meaning onto one token, so one
// catalog entry covers "can't", "cant", "cannot" and "can not".
var contractions = map[string]string{
	"cannot": "cant",
}

// Normalize case-folds raw, turns every rune that is not part of a word into a
// break and collapses whitespace. Apostrophes inside words are dropped, so
// "don't" and "dont" become the same token; "cannot" and "can not" fold to
// "cant". Normalizing already-normalized text returns it unchanged.
func Normalize(raw string) Normalized {
	if strings.TrimSpace(raw) == "" {
		return Normalized{}
	}

	runes := []rune(strings.ToLower(raw))
	var b strings.Builder
	b.Grow(len(runes))
	for i, r := range runes {
		switch {
		case isWordRune(r):
			b.WriteRune(r)
		case isApostrophe(r) && i > 0 && i < len(runes)-1 && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]):
			// in-word apostrophe: join the halves
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := make([]string, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if folded, ok := contractions[tok]; ok {
			tok = folded
		} else if tok == "can" && i+1 < len(fields) && fields[i+1] == "not" {
			tok = "cant"
			i++
		}
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		return Normalized{}
	}
	return Normalized{Text: strings.Join(tokens, " "), Tokens: tokens}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func isApostrophe(r rune) bool {
	switch r {
	case '\'', '‘', '’', 'ʼ', '`':
		return true
	}
	return false
}
