// Package token extracts search tokens from mixed CJK/ASCII chat text.
package token

import (
	"strings"
	"unicode"
)

// maxCJKRun is the longest CJK run emitted as a single token. Longer runs
// still contribute their 2- and 3-gram substrings.
const maxCJKRun = 6

// stopwords are discourse fillers that carry no retrieval signal.
// CJK entries are 2-grams because the tokenizer never emits single runes.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "you": true,
	"your": true, "that": true, "this": true, "with": true, "have": true,
	"was": true, "what": true, "can": true, "not": true, "but": true,
	"just": true, "please": true, "okay": true, "now": true, "then": true,
	"very": true, "really": true, "about": true, "there": true,
	"它们": true, "我们": true, "你们": true, "那个": true, "这个": true,
	"什么": true, "一下": true, "一个": true, "就是": true, "还是": true,
	"但是": true, "所以": true, "然后": true, "现在": true, "可以": true,
}

// IsStopword reports whether tok is a known discourse filler.
func IsStopword(tok string) bool {
	return stopwords[strings.ToLower(tok)]
}

// Weight scales a token's match contribution by its length:
// clamp(len/2, 1, 3) in runes. Longer tokens are more specific.
func Weight(tok string) float64 {
	w := float64(len([]rune(tok))) / 2
	if w < 1 {
		return 1
	}
	if w > 3 {
		return 3
	}
	return w
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func isWordRune(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Tokenize splits text into lowercase retrieval tokens. CJK runs are emitted
// whole (when short enough) plus all their 3- and 2-character substrings;
// ASCII word runs are emitted when at least 2 characters long. Stopwords are
// dropped and duplicates removed preserving first-seen order.
func Tokenize(text string) []string {
	var out []string
	seen := make(map[string]bool)

	emit := func(tok string) {
		if len([]rune(tok)) < 2 {
			return
		}
		tok = strings.ToLower(tok)
		if stopwords[tok] || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	emitCJKRun := func(run []rune) {
		if len(run) <= maxCJKRun {
			emit(string(run))
		}
		for n := 3; n >= 2; n-- {
			for i := 0; i+n <= len(run); i++ {
				emit(string(run[i : i+n]))
			}
		}
	}

	var word strings.Builder
	var cjkRun []rune
	flushWord := func() {
		if word.Len() > 0 {
			emit(word.String())
			word.Reset()
		}
	}
	flushCJK := func() {
		if len(cjkRun) > 0 {
			emitCJKRun(cjkRun)
			cjkRun = cjkRun[:0]
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjkRun = append(cjkRun, r)
		case isWordRune(r):
			flushCJK()
			word.WriteRune(r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()

	return out
}
