// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package draw implements the commit-reveal draw algorithm.

Everything in this package is pure computation: no database, no clock, no
ambient randomness except for NewCommitment. Given the same persisted inputs
it always produces the same ranking, which is what makes a finished raffle
auditable by anyone holding the revealed secret.

# Commitment

Before a draw runs, a 256-bit secret is generated and only its digest is
published:

	c, err := draw.NewCommitment()
	fmt.Println(draw.FormatHash(c.Hash)) // sha256:<hex>

After the draw the secret is revealed and anyone can check it:

	err := draw.VerifyCommitment(secret, hash)

# Seed

The seed binds the raffle identity, the draw moment, the exact ticket codes
and the secret:

	seed = SHA-512(SeedDomain ‖ raffleID ‖ RFC3339(moment) ‖ join(codes, "|") ‖ secret)

# Shuffle and ranking

Shuffle is a Fisher-Yates pass from the last index down to 1. Each random
index comes from HMAC-SHA256(seed, decimal(counter)); the first 48 bits of the
digest divided by 2^48 give a value in [0,1). A shuffle of n ids consumes
exactly n-1 values.

The shuffled order is elimination order. Resolve reverses it: ranking[0] is
the winner, ranking[1] second place, and so on.

# Replay

Run composes all three steps, Verify replays a published Audit and reports
the first mismatch.
*/
package draw
