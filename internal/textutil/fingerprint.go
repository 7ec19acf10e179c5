package textutil

import (
	"math"
	"strings"
)

// Fingerprint is a weighted term vector over lowercase alphanumeric tokens.
type Fingerprint struct {
	tokens map[string]float64
	norm   float64
}

func newFingerprint(weights map[string]float64) *Fingerprint {
	if len(weights) == 0 {
		return nil
	}
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	return &Fingerprint{tokens: weights, norm: math.Sqrt(sum)}
}

// NewFingerprint counts the tokens of text. It returns nil when text has no
// usable tokens.
func NewFingerprint(text string) *Fingerprint {
	counts := make(map[string]float64)
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	return newFingerprint(counts)
}

// Tokenize splits text into lowercase alphanumeric tokens of at least three
// bytes. Identifiers such as RetryBackoff stay one token.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) >= 3 {
			terms = append(terms, field)
		}
	}
	return terms
}

// TokenCount returns the number of distinct tokens.
func (f *Fingerprint) TokenCount() int {
	if f == nil {
		return 0
	}
	return len(f.tokens)
}

// WithIDF returns a copy weighted by idf. Terms absent from idf keep their
// raw count.
func (f *Fingerprint) WithIDF(idf map[string]float64) *Fingerprint {
	if f == nil || len(idf) == 0 {
		return f
	}
	weighted := make(map[string]float64, len(f.tokens))
	for token, count := range f.tokens {
		if w, ok := idf[token]; ok {
			count *= w
		}
		if count != 0 {
			weighted[token] = count
		}
	}
	return newFingerprint(weighted)
}

// Corpus counts, per term, how many documents contain it.
type Corpus struct {
	docs    int
	docFreq map[string]int
}

func NewCorpus() *Corpus {
	return &Corpus{docFreq: make(map[string]int)}
}

// Add registers one document. Nil fingerprints are ignored.
func (c *Corpus) Add(fp *Fingerprint) {
	if c == nil || fp == nil {
		return
	}
	c.docs++
	for token := range fp.tokens {
		c.docFreq[token]++
	}
}

// IDF returns smoothed weights 1+log((N+1)/(1+df)). Terms present in every
// document keep weight 1 instead of vanishing.
func (c *Corpus) IDF() map[string]float64 {
	if c == nil || c.docs == 0 {
		return nil
	}
	n := float64(c.docs)
	idf := make(map[string]float64, len(c.docFreq))
	for term, df := range c.docFreq {
		idf[term] = 1 + math.Log((n+1)/(1+float64(df)))
	}
	return idf
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	if len(b.tokens) < len(a.tokens) {
		a, b = b, a
	}
	var dot float64
	for token, w := range a.tokens {
		dot += w * b.tokens[token]
	}
	return dot / (a.norm * b.norm)
}
