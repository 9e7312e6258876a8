// Package random provides cryptographic seed generation helpers.
//
// It uses crypto/rand to seed the general-purpose pseudo-random sources used
// for identifier draws, so each process starts from a distinct stream.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// NewSource returns a PCG source seeded from crypto/rand.
func NewSource() (rand.Source, error) {
	hi, err := NewSeed()
	if err != nil {
		return nil, err
	}
	lo, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return rand.NewPCG(hi, lo), nil
}
