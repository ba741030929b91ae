package email

import (
	"slices"
	"testing"
)

func TestWords(t *testing.T) {
	got := Words("Buy NOW, cheap pills!!! 100% free")
	want := []string{"buy", "now", "cheap", "pills", "100", "free"}
	if !slices.Equal(got, want) {
		t.Errorf("Words() = %q, want %q", got, want)
	}
}

func TestNGrams(t *testing.T) {
	e := New(true, "buy now buy now")

	tests := []struct {
		k    int
		want []string
	}{
		{1, []string{"buy", "now", "buy", "now"}},
		{2, []string{"buy now", "now buy", "buy now"}},
		{4, []string{"buy now buy now"}},
		{5, nil},
		{0, nil},
	}
	for _, tt := range tests {
		got := slices.Collect(e.NGrams(tt.k))
		if !slices.Equal(got, tt.want) {
			t.Errorf("NGrams(%d) = %q, want %q", tt.k, got, tt.want)
		}
		if n := e.NGramCount(tt.k); n != len(tt.want) {
			t.Errorf("NGramCount(%d) = %d, want %d", tt.k, n, len(tt.want))
		}
	}
}

func TestNGramsEarlyStop(t *testing.T) {
	e := New(false, "a b c d e")
	var got []string
	for g := range e.NGrams(1) {
		got = append(got, g)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Errorf("expected iteration to stop after 2, got %d", len(got))
	}
}

func TestAccessors(t *testing.T) {
	e := New(true, "hello")
	if !e.Spam() {
		t.Error("Spam() = false, want true")
	}
	if e.Body() != "hello" {
		t.Errorf("Body() = %q", e.Body())
	}
	if New(false, "").NGramCount(1) != 0 {
		t.Error("empty body should have no n-grams")
	}
}
