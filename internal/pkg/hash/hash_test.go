package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256String(t *testing.T) {
	got := SHA256String("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if got != want {
		t.Errorf("SHA256String(hello) = %s, want %s", got, want)
	}
}

func TestSHA256Short(t *testing.T) {
	hash := SHA256([]byte("hello"))

	tests := []struct {
		n    int
		want string
	}{
		{8, hash[:8]},
		{16, hash[:16]},
		{32, hash[:32]},
		{64, hash},  // full hash
		{100, hash}, // exceeds length, returns full
	}

	for _, tt := range tests {
		got := SHA256Short([]byte("hello"), tt.n)
		if got != tt.want {
			t.Errorf("SHA256Short(hello, %d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestPredictionKey(t *testing.T) {
	// Same inputs should produce same output
	k1 := PredictionKey("deberta-v3-small", "great food")
	k2 := PredictionKey("deberta-v3-small", "great food")

	if k1 != k2 {
		t.Errorf("PredictionKey not deterministic: %s != %s", k1, k2)
	}

	// Different text should produce different output
	k3 := PredictionKey("deberta-v3-small", "great foods")
	if k1 == k3 {
		t.Errorf("PredictionKey collision: %s == %s", k1, k3)
	}

	// Different model should produce different output
	k4 := PredictionKey("deberta-v3-base", "great food")
	if k1 == k4 {
		t.Errorf("PredictionKey ignores model: %s == %s", k1, k4)
	}

	// Full hex hash
	if len(k1) != 64 {
		t.Errorf("PredictionKey length = %d, want 64", len(k1))
	}
}

func TestFileID(t *testing.T) {
	// Same inputs should produce same output
	id1 := FileID("reviews.csv", "abc123")
	id2 := FileID("reviews.csv", "abc123")

	if id1 != id2 {
		t.Errorf("FileID not deterministic: %s != %s", id1, id2)
	}

	// Different inputs should produce different output
	id3 := FileID("reviews.csv", "abc124")
	if id1 == id3 {
		t.Errorf("FileID collision: %s == %s", id1, id3)
	}

	// Should be 16 characters
	if len(id1) != 16 {
		t.Errorf("FileID length = %d, want 16", len(id1))
	}

	// Should be hex
	for _, c := range id1 {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Errorf("FileID contains non-hex character: %c", c)
		}
	}
}

func BenchmarkSHA256(b *testing.B) {
	data := []byte("benchmark test data for hashing performance measurement")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SHA256(data)
	}
}

func BenchmarkPredictionKey(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		PredictionKey("deberta-v3-small", "the service was slow but the food made up for it")
	}
}
