package entropy

import (
	"crypto/rand"
	"encoding/binary"
)

// Crypto is a non-deterministic Source backed by crypto/rand.
type Crypto struct{}

// Float64 implements Source.
func (Crypto) Float64() float64 {
	return cryptoRandFloat()
}

// Intn implements Source.
func (c Crypto) Intn(n int) int {
	return intnFromFloat(c.Float64(), n)
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

func intnFromFloat(f float64, n int) int {
	i := int(f * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
