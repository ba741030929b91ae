package hashing

import (
	"fmt"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	for _, a := range []Algorithm{AlgorithmMetro, AlgorithmXXHash} {
		h, err := For(a)
		if err != nil {
			t.Fatalf("For(%s): %v", a, err)
		}
		if h("buy now", 7) != h("buy now", 7) {
			t.Errorf("%s: same token and seed produced different hashes", a)
		}
		if h("buy now", 7) == h("buy now", 8) {
			t.Errorf("%s: different seeds produced the same hash", a)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", AlgorithmMetro, false},
		{"metro", AlgorithmMetro, false},
		{"XXHash", AlgorithmXXHash, false},
		{"xxh64", AlgorithmXXHash, false},
		{"md5", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSeedsDistinct(t *testing.T) {
	seeds := Seeds(DefaultSeed, 8)
	if seeds[0] != DefaultSeed {
		t.Errorf("row 0 seed = %#x, want %#x", seeds[0], DefaultSeed)
	}
	seen := make(map[uint64]bool)
	for _, s := range seeds {
		if seen[s] {
			t.Fatalf("duplicate seed %#x", s)
		}
		seen[s] = true
	}
}

func TestBucketInRange(t *testing.T) {
	b := NewBucketer(Metro, 4)
	if b.Size() != 16 {
		t.Fatalf("Size() = %d, want 16", b.Size())
	}
	for i := 0; i < 1000; i++ {
		idx := b.Bucket(fmt.Sprintf("token-%d", i), DefaultSeed)
		if idx < 0 || idx >= 16 {
			t.Fatalf("bucket %d out of range", idx)
		}
	}
}

// Low bits must be spread evenly, because buckets are derived by masking.
func TestBucketUniformity(t *testing.T) {
	for _, a := range []Algorithm{AlgorithmMetro, AlgorithmXXHash} {
		h, _ := For(a)
		b := NewBucketer(h, 6)
		counts := make([]int, b.Size())
		const n = 64000
		for i := 0; i < n; i++ {
			counts[b.Bucket(fmt.Sprintf("w%d", i), DefaultSeed)]++
		}
		expected := n / b.Size()
		for i, c := range counts {
			if c < expected/2 || c > expected*3/2 {
				t.Errorf("%s: bucket %d has %d tokens, expected about %d", a, i, c, expected)
			}
		}
	}
}

func TestRowsIndependent(t *testing.T) {
	b := NewBucketer(Metro, 10)
	seeds := Seeds(DefaultSeed, 2)
	same := 0
	const n = 2000
	for i := 0; i < n; i++ {
		tok := fmt.Sprintf("tok%d", i)
		if b.Bucket(tok, seeds[0]) == b.Bucket(tok, seeds[1]) {
			same++
		}
	}
	// Independent rows agree with probability 1/1024.
	if same > 20 {
		t.Errorf("rows agree on %d of %d tokens", same, n)
	}
}
