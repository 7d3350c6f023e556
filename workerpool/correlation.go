package workerpool

import (
	"crypto/rand"
	mrand "math/rand/v2"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newCorrelationID produces a fresh task id: a cryptographic UUID when
// crypto/rand is available, otherwise a random base-36 string. Unlike a
// simple incrementing counter, this stays safe to hand out across
// worker-pool reloads, where two generations could otherwise overlap.
func newCorrelationID() string {
	if id, err := newRandomUUID(); err == nil {
		return id
	}
	return newBase36ID(16)
}

func newRandomUUID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10
	return formatUUID(b), nil
}

func formatUUID(b [16]byte) string {
	const hex = "0123456789abcdef"
	out := make([]byte, 36)
	pos := 0
	for i, v := range b {
		if i == 4 || i == 6 || i == 8 || i == 10 {
			out[pos] = '-'
			pos++
		}
		out[pos] = hex[v>>4]
		out[pos+1] = hex[v&0x0f]
		pos += 2
	}
	return string(out)
}

func newBase36ID(length int) string {
	out := make([]byte, length)
	for i := range out {
		out[i] = base36Alphabet[mrand.IntN(len(base36Alphabet))]
	}
	return string(out)
}
