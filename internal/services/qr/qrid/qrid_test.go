package qrid

import (
	"math/rand/v2"
	"sync"
	"testing"
)

func TestGenerateReturnsRequestedCount(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(rand.NewPCG(1, 2))
	for _, count := range []int{0, 1, 72, 500} {
		ids := gen.Generate(count)
		if len(ids) != count {
			t.Fatalf("Generate(%d) returned %d ids", count, len(ids))
		}
		for _, id := range ids {
			if !Valid(id) {
				t.Fatalf("Generate(%d) produced invalid id %q", count, id)
			}
		}
	}
}

func TestGenerateNegativeCountIsEmpty(t *testing.T) {
	t.Parallel()

	ids := NewGenerator(rand.NewPCG(1, 2)).Generate(-3)
	if ids == nil || len(ids) != 0 {
		t.Fatalf("Generate(-3) = %#v, want empty slice", ids)
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	t.Parallel()

	first := NewGenerator(rand.NewPCG(7, 11)).Generate(10)
	second := NewGenerator(rand.NewPCG(7, 11)).Generate(10)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("id[%d] = %q, want %q", i, second[i], first[i])
		}
	}
}

func TestGenerateUsesWholeAlphabet(t *testing.T) {
	t.Parallel()

	seen := map[rune]bool{}
	for _, id := range NewGenerator(rand.NewPCG(3, 5)).Generate(2000) {
		for _, r := range id {
			seen[r] = true
		}
	}
	if len(seen) != len(Alphabet) {
		t.Fatalf("saw %d distinct characters, want %d", len(seen), len(Alphabet))
	}
}

func TestNewSeededGenerator(t *testing.T) {
	t.Parallel()

	gen, err := NewSeededGenerator()
	if err != nil {
		t.Fatalf("new seeded generator: %v", err)
	}
	if id := gen.New(); !Valid(id) {
		t.Fatalf("New() = %q, want valid id", id)
	}
}

func TestGeneratorConcurrentUse(t *testing.T) {
	t.Parallel()

	gen := NewGenerator(rand.NewPCG(9, 9))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range gen.Generate(50) {
				if !Valid(id) {
					t.Errorf("invalid id %q", id)
				}
			}
		}()
	}
	wg.Wait()
}

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{"A1B2C3", true},
		{"000000", true},
		{"ZZZZZZ", true},
		{"a1b2c3", false},
		{"A1B2C", false},
		{"A1B2C3D4", false},
		{"A1-2C3", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Valid(tt.id); got != tt.want {
			t.Fatalf("Valid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := Normalize("  ab12cd "); got != "AB12CD" {
		t.Fatalf("Normalize = %q, want %q", got, "AB12CD")
	}
	if !Valid(Normalize("ab12cd")) {
		t.Fatal("expected normalized id to be valid")
	}
}
