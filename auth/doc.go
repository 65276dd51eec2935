// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication and token generation utilities.

# Admin Keys

Raffle owners authenticate with an HMAC-SHA256 admin key derived from the
raffle ID:

	adminKey := auth.GenerateAdminKey(raffleID, salt)
	err := auth.ValidateAdminKey(raffleID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same raffle ID and salt always produce the same key. This allows
validation without storing the key in the database.

Administrators (and the periodic sweep) use a single configured token
instead:

	err := auth.ValidateAdminToken(r.Header.Get("X-Admin-Token"), cfg.AdminToken)

# Holder Tokens

Holder tokens are random 24-byte (192-bit) secrets handed to a participant
when they enter a raffle:

	token, err := auth.GenerateHolderToken()

They identify the participant's own entry and final rank.

# Ticket Codes

	code, err := auth.GenerateTicketCode() // "T-4F9A21C7"

Used when the ticket system does not supply its own display code.

# Share Slugs

	slug := auth.GenerateShareSlug(raffleID, salt)

Base62 (alphanumeric only), deterministic from the raffle ID and salt.

# ID Generation

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
