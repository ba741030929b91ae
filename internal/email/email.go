// Package email holds the labelled email record and its n-gram tokenizer.
package email

import (
	"iter"
	"strings"

	"github.com/blevesearch/segment"
)

// Email is an immutable labelled message. Words are segmented once at
// construction; n-grams are produced lazily from them.
type Email struct {
	spam  bool
	body  string
	words []string
}

// New builds an Email from its label and body.
func New(spam bool, body string) Email {
	return Email{spam: spam, body: body, words: Words(body)}
}

// Spam reports whether the email is labelled spam.
func (e Email) Spam() bool { return e.spam }

// Body returns the raw body text.
func (e Email) Body() string { return e.body }

// NGramCount returns how many n-grams of order k NGrams yields.
func (e Email) NGramCount(k int) int {
	if k < 1 {
		return 0
	}
	return max(0, len(e.words)-k+1)
}

// NGrams yields the overlapping word n-grams of order k, each the k words
// joined by a single space. Nothing is yielded for k < 1.
func (e Email) NGrams(k int) iter.Seq[string] {
	return func(yield func(string) bool) {
		n := e.NGramCount(k)
		for i := 0; i < n; i++ {
			var gram string
			if k == 1 {
				gram = e.words[i]
			} else {
				gram = strings.Join(e.words[i:i+k], " ")
			}
			if !yield(gram) {
				return
			}
		}
	}
}

// Words splits text into lower-cased Unicode word segments, dropping
// whitespace and punctuation.
func Words(text string) []string {
	seg := segment.NewWordSegmenterDirect([]byte(text))
	var words []string
	for seg.Segment() {
		if seg.Type() == segment.None {
			continue
		}
		words = append(words, strings.ToLower(string(seg.Bytes())))
	}
	return words
}
