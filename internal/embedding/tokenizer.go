package embedding

import (
	"hash/fnv"
	"strings"
	"unicode"
)

const (
	clsTokenID = 101
	sepTokenID = 102
	// hashed token IDs start above the BERT special and unused range
	firstWordID = 1000
	vocabSize   = 30000
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps SplitTokens output to hashed token IDs. It needs no vocabulary file.
type SimpleTokenizer struct{}

// Tokenize produces [CLS] tokens... [SEP] padded to maxTokens.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = clsTokenID
	attentionMask[0] = 1

	pos := 1
	for _, tok := range SplitTokens(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = int64(firstWordID + HashToken(tok)%(vocabSize-firstWordID))
		attentionMask[pos] = 1
		pos++
	}
	if pos < maxTokens {
		inputIDs[pos] = sepTokenID
		attentionMask[pos] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// SplitTokens lower-cases text and splits it into runs of letters and digits.
// Han, Hiragana and Katakana characters are emitted one per token since those
// scripts do not separate words with spaces.
func SplitTokens(text string) []string {
	var (
		tokens []string
		word   []rune
	)
	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, string(word))
			word = word[:0]
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r), unicode.IsDigit(r):
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// HashToken returns the 32-bit FNV-1a hash of token.
func HashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}
