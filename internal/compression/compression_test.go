package compression

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		input    string
		expected Type
		wantErr  bool
	}{
		{"", TypeNone, false},
		{"none", TypeNone, false},
		{"gzip", TypeGzip, false},
		{"GZ", TypeGzip, false},
		{"zstd", TypeZstd, false},
		{" zst ", TypeZstd, false},
		{"lz4", TypeNone, true},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseType(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestFromPathAndExt(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"data/enron.txt", TypeNone},
		{"data/enron.txt.gz", TypeGzip},
		{"data/enron.txt.zst", TypeZstd},
		{"data/ENRON.TXT.ZSTD", TypeZstd},
	}
	for _, tt := range tests {
		if got := FromPath(tt.path); got != tt.want {
			t.Errorf("FromPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if FromPath("x"+TypeZstd.Ext()) != TypeZstd || FromPath("x"+TypeGzip.Ext()) != TypeGzip {
		t.Error("Ext and FromPath disagree")
	}
	if TypeNone.Ext() != "" {
		t.Errorf("TypeNone.Ext() = %q", TypeNone.Ext())
	}
}

func TestRoundTrip(t *testing.T) {
	payload := strings.Repeat("1\tbuy cheap pills now\n0\tlunch at noon\n", 200)
	for _, typ := range []Type{TypeNone, TypeGzip, TypeZstd} {
		for _, level := range []Level{LevelDefault, LevelFastest, LevelBest} {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, Config{Type: typ, Level: level})
			if err != nil {
				t.Fatalf("%s: NewWriter: %v", typ, err)
			}
			if _, err := io.WriteString(w, payload); err != nil {
				t.Fatalf("%s: write: %v", typ, err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("%s: close: %v", typ, err)
			}
			if typ != TypeNone && buf.Len() >= len(payload) {
				t.Errorf("%s level %d: compressed %d bytes into %d", typ, level, len(payload), buf.Len())
			}

			r, err := NewReader(&buf, typ)
			if err != nil {
				t.Fatalf("%s: NewReader: %v", typ, err)
			}
			got, err := io.ReadAll(r)
			_ = r.Close()
			if err != nil {
				t.Fatalf("%s: read: %v", typ, err)
			}
			if string(got) != payload {
				t.Errorf("%s: round trip mismatch", typ)
			}
		}
	}
}

func TestInvalidData(t *testing.T) {
	if _, err := NewReader(strings.NewReader("not gzip"), TypeGzip); err == nil {
		t.Error("expected gzip header error")
	}
	r, err := NewReader(strings.NewReader("not zstd"), TypeZstd)
	if err != nil {
		return
	}
	defer r.Close()
	if _, err := io.ReadAll(r); err == nil {
		t.Error("expected zstd decode error")
	}
}

func TestUnsupportedType(t *testing.T) {
	if _, err := NewReader(strings.NewReader(""), "lz4"); err == nil {
		t.Error("expected error for unsupported reader type")
	}
	if _, err := NewWriter(io.Discard, Config{Type: "lz4"}); err == nil {
		t.Error("expected error for unsupported writer type")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt.zst")
	err := WriteFile(path, Config{Type: TypeZstd}, func(bw *bufio.Writer) error {
		_, err := bw.WriteString("1\tfree money\n")
		return err
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := readFile(t, path, TypeZstd); got != "1\tfree money\n" {
		t.Errorf("read back %q", got)
	}
}

func TestWriteFileClosesEncoderOnError(t *testing.T) {
	errWrite := errors.New("write failed")
	for _, typ := range []Type{TypeGzip, TypeZstd} {
		path := filepath.Join(t.TempDir(), "partial.txt"+typ.Ext())
		err := WriteFile(path, Config{Type: typ}, func(bw *bufio.Writer) error {
			bw.WriteString("0\tlunch\n")
			if err := bw.Flush(); err != nil {
				return err
			}
			return errWrite
		})
		if !errors.Is(err, errWrite) {
			t.Fatalf("%s: err = %v, want %v", typ, err, errWrite)
		}
		// An unclosed gzip encoder leaves a stream without its trailer.
		if got := readFile(t, path, typ); got != "0\tlunch\n" {
			t.Errorf("%s: read back %q", typ, got)
		}
	}
}

func TestWriteFileCreateError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	called := false
	err := WriteFile(path, Config{Type: TypeNone}, func(*bufio.Writer) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("err = %v, called = %v; want create error before fn runs", err, called)
	}
}

func readFile(t *testing.T, path string, typ Type) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := NewReader(f, typ)
	if err != nil {
		t.Fatalf("%s: NewReader: %v", typ, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("%s: ReadAll: %v", typ, err)
	}
	return string(data)
}
