// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package draw

// Resolve turns elimination order into a ranking.
// The last id eliminated is the winner: ranking = reverse(shuffled), winner = ranking[0].
func Resolve(shuffled []string) (winnerID string, ranking []string) {
	ranking = make([]string, len(shuffled))
	for i, id := range shuffled {
		ranking[len(shuffled)-1-i] = id
	}
	if len(ranking) > 0 {
		winnerID = ranking[0]
	}
	return winnerID, ranking
}
