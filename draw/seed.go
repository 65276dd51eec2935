// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

import (
	"crypto/sha512"
	"strings"
	"time"
)

// SeedDomain separates draw seeds from any other use of SHA-512 over similar input.
const SeedDomain = "quickly-draw/seed/v1"

// SeedSize is the length in bytes of a composed seed.
const SeedSize = sha512.Size

// FormatMoment renders the draw moment the way it is bound into the seed:
// UTC, RFC 3339, second precision.
func FormatMoment(moment time.Time) string {
	return moment.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ComposeSeed derives the 64-byte seed for one draw.
// ticketCodes must be the snapshot taken when the draw began, in participation order.
func ComposeSeed(raffleID string, moment time.Time, ticketCodes []string, secret string) []byte {
	h := sha512.New()
	h.Write([]byte(SeedDomain))
	h.Write([]byte(raffleID))
	h.Write([]byte(FormatMoment(moment)))
	h.Write([]byte(strings.Join(ticketCodes, "|")))
	h.Write([]byte(secret))
	return h.Sum(nil)
}
