// Package rng provides the pseudo-random sources that drive card draws.
//
// Two implementations cover the two draw contexts: Crypto is backed by
// crypto/rand and is the default for interactive draws, where the stream
// must not be predictable. SplitMix64 is seeded and deterministic, used for
// offline-progression replay and for tests. SplitMix64 is implemented here
// rather than delegated to math/rand so the stream is identical on every
// platform and Go release; offline recomputation depends on that stability.
package rng

import (
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"time"
)

// Source produces floats in [0,1). Draw components never own a Source: the
// caller injects one per logical draw sequence (one per draw batch, one per
// offline calculation), which is what makes sequences reproducible.
type Source interface {
	Float64() float64
}

// Crypto is a crypto/rand-backed Source. Zero value is ready to use.
type Crypto struct{}

// NewCrypto returns the default unpredictable Source.
func NewCrypto() Crypto { return Crypto{} }

// Float64 maps 53 random bits into [0,1). Falls back to math/rand/v2 if the
// system entropy read fails.
func (Crypto) Float64() float64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53)
}

// SplitMix64 is a seeded deterministic Source (Steele et al., "Fast
// Splittable Pseudorandom Number Generators"). State advances with every
// call, so one instance must not be shared across logical draw sequences.
type SplitMix64 struct {
	state uint64
}

// NewSeeded returns a deterministic Source for the given seed. The same
// seed always yields the same Float64 sequence.
func NewSeeded(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

func (s *SplitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns the next value in [0,1), using the top 53 bits.
func (s *SplitMix64) Float64() float64 {
	return float64(s.next()>>11) / (1 << 53)
}

// SeedFromTime derives a 64-bit seed from a timestamp via SHA-256. The
// offline simulator seeds from the player's last-seen timestamp so that
// recomputing the same interval reproduces the same draws.
func SeedFromTime(t time.Time) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	h := sha256.Sum256(buf[:])
	return binary.BigEndian.Uint64(h[:8])
}
