// Package squeeze shrinks oversized text to a word or token budget while
// keeping its head and tail.
package squeeze

import (
	"math"
	"strings"
	"unicode/utf8"
)

// MaxWordBytes is the length at which a single word is treated as garbage
// (minified code, base64 blobs) and dropped.
const MaxWordBytes = 150

// RemoveQuoted drops fenced blocks and over-long words, then keeps the first
// maxWords*split and the last remaining words when the text is still too long.
func RemoveQuoted(text string, maxWords int, split float64) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	inside := false

	for _, line := range lines {
		if strings.Contains(line, "```") || strings.Contains(line, `"""`) {
			inside = !inside
			continue
		}
		if inside {
			continue
		}

		words := strings.Fields(line)
		kept := words[:0]
		for _, w := range words {
			if len(w) < MaxWordBytes {
				kept = append(kept, w)
			}
		}
		out = append(out, strings.Join(kept, " "))
	}

	cleaned := strings.Join(out, "\n")
	words := strings.Fields(cleaned)
	if len(words) <= maxWords {
		return cleaned
	}
	if maxWords <= 0 {
		return ""
	}

	head, tail := headTail(maxWords, split, math.Floor)
	squeezed := make([]string, 0, maxWords)
	squeezed = append(squeezed, words[:head]...)
	squeezed = append(squeezed, words[len(words)-tail:]...)
	return strings.Join(squeezed, " ")
}

// PostTexts keeps the head and tail of text measured in cl100k_base tokens.
// Text already within maxTokens is returned as is. Runes split by a token
// boundary are dropped so the result stays valid UTF-8.
func PostTexts(text string, maxTokens int, split float64) string {
	if maxTokens <= 0 {
		return ""
	}

	enc, err := encoding()
	if err != nil {
		return approximate(text, maxTokens, split)
	}

	tokens := enc.EncodeOrdinary(text)
	if len(tokens) <= maxTokens {
		return text
	}

	head, tail := headTail(maxTokens, split, math.Ceil)
	for {
		out := trimPartialRunes(enc.Decode(tokens[:head])) + trimLeadingPartialRunes(enc.Decode(tokens[len(tokens)-tail:]))
		if head+tail <= 1 || len(enc.EncodeOrdinary(out)) <= maxTokens {
			return out
		}
		if head > 0 {
			head--
		} else {
			tail--
		}
	}
}

// trimPartialRunes drops an incomplete UTF-8 sequence left at the end of s
// when a token boundary splits a rune.
func trimPartialRunes(s string) string {
	for i := 0; i < utf8.UTFMax-1 && s != ""; i++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size != 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

// trimLeadingPartialRunes drops continuation bytes at the start of s.
func trimLeadingPartialRunes(s string) string {
	for i := 0; i < utf8.UTFMax-1 && s != "" && !utf8.RuneStart(s[0]); i++ {
		s = s[1:]
	}
	return s
}

// Tokens counts cl100k_base tokens, falling back to a rough estimate when the
// tokenizer is unavailable.
func Tokens(text string) int {
	enc, err := encoding()
	if err != nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(enc.EncodeOrdinary(text))
}

// TruncateChars returns at most n runes of text.
func TruncateChars(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}

// headTail splits budget between head and tail. The head never exceeds the
// budget, and a split below 1 always leaves at least one unit for the tail.
func headTail(budget int, split float64, round func(float64) float64) (head, tail int) {
	if split < 0 {
		split = 0
	}
	if split > 1 {
		split = 1
	}
	head = int(round(float64(budget) * split))
	if head > budget {
		head = budget
	}
	tail = budget - head
	if tail == 0 && split < 1 && budget > 1 {
		head--
		tail = 1
	}
	return head, tail
}

// approximate applies the head/tail policy on runes at roughly four runes per token.
func approximate(text string, maxTokens int, split float64) string {
	runes := []rune(text)
	budget := maxTokens * 4
	if len(runes) <= budget {
		return text
	}
	head, tail := headTail(budget, split, math.Ceil)
	return string(runes[:head]) + string(runes[len(runes)-tail:])
}
