package corpus

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/szibis/spamsketch/internal/email"
)

// GenerateOptions controls synthetic corpus generation.
type GenerateOptions struct {
	Emails    int
	SpamRatio float64
	// Words per email body.
	Words int
	// Shared is the probability that a word is drawn from the vocabulary
	// common to both classes.
	Shared float64
	// Rare adds one unique token per email, which grows the vocabulary
	// linearly with the corpus.
	Rare bool
	Seed uint64
}

// DefaultGenerateOptions returns options for a mildly separable corpus.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Emails:    10000,
		SpamRatio: 0.4,
		Words:     20,
		Shared:    0.5,
		Rare:      true,
		Seed:      12,
	}
}

var (
	spamVocabulary = strings.Fields(`free offer winner prize claim cash cheap
		pills viagra casino bonus urgent limited click unsubscribe guaranteed
		credit loan investment million dollars risk congratulations selected`)
	hamVocabulary = strings.Fields(`meeting agenda report review draft schedule
		attached project deadline team lunch notes minutes conference budget
		quarter forecast contract invoice manager thanks regards`)
	sharedVocabulary = strings.Fields(`the a to of and in for on is you your
		we this that with please today now new time information email week`)
)

// Generate returns a labelled synthetic corpus. The same options always
// produce the same emails.
func Generate(opts GenerateOptions) ([]email.Email, error) {
	if opts.Emails < 0 || opts.Words < 1 {
		return nil, fmt.Errorf("generate: need emails >= 0 and words >= 1, got %d and %d", opts.Emails, opts.Words)
	}
	if opts.SpamRatio < 0 || opts.SpamRatio > 1 || opts.Shared < 0 || opts.Shared > 1 {
		return nil, fmt.Errorf("generate: spam ratio and shared share must be in [0, 1]")
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x5eed))
	out := make([]email.Email, opts.Emails)
	var b strings.Builder
	for i := range out {
		spam := rng.Float64() < opts.SpamRatio
		own := hamVocabulary
		if spam {
			own = spamVocabulary
		}

		b.Reset()
		for w := 0; w < opts.Words; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			if rng.Float64() < opts.Shared {
				b.WriteString(sharedVocabulary[rng.IntN(len(sharedVocabulary))])
			} else {
				b.WriteString(own[rng.IntN(len(own))])
			}
		}
		if opts.Rare {
			fmt.Fprintf(&b, " id%x", rng.Uint64())
		}
		out[i] = email.New(spam, b.String())
	}
	return out, nil
}
