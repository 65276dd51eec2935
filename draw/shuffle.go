// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strconv"
)

// MinParticipants is the smallest field a draw may run on.
const MinParticipants = 2

var ErrTooFewIDs = errors.New("shuffle needs at least 2 ids")

const two48 = float64(1 << 48)

// PRF is the keyed pseudo-random stream used by Shuffle.
// The n-th value is HMAC-SHA256(seed, decimal(n)), first 48 bits, divided by 2^48.
type PRF struct {
	seed    []byte
	counter uint64
}

func NewPRF(seed []byte) *PRF {
	key := make([]byte, len(seed))
	copy(key, seed)
	return &PRF{seed: key}
}

// Next returns the next value in [0,1).
func (p *PRF) Next() float64 {
	mac := hmac.New(sha256.New, p.seed)
	mac.Write([]byte(strconv.FormatUint(p.counter, 10)))
	sum := mac.Sum(nil)
	p.counter++

	var buf [8]byte
	copy(buf[2:], sum[:6])
	return float64(binary.BigEndian.Uint64(buf[:])) / two48
}

// Count reports how many values have been drawn.
func (p *PRF) Count() uint64 {
	return p.counter
}

// Shuffle returns a Fisher-Yates permutation of ids driven by the PRF keyed with seed.
// The input slice is not modified.
func Shuffle(ids []string, seed []byte) ([]string, error) {
	if len(ids) < MinParticipants {
		return nil, ErrTooFewIDs
	}

	return shuffleWith(ids, NewPRF(seed)), nil
}

func shuffleWith(ids []string, prf *PRF) []string {
	out := make([]string, len(ids))
	copy(out, ids)

	for i := len(out) - 1; i > 0; i-- {
		j := int(prf.Next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
