// Package leaderboard orders metric records into a ranked board.
package leaderboard

import (
	"sort"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// Rank returns a copy of records sorted by MetricValue descending with
// 1-based ranks. Ties keep their input order and still receive distinct
// ranks. The input slice is left untouched.
func Rank(records []domain.MetricRecord) []domain.MetricRecord {
	out := make([]domain.MetricRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MetricValue > out[j].MetricValue
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// RankOf returns the rank of user in a ranked board, or 0 if absent.
func RankOf(ranked []domain.MetricRecord, user string) int {
	for _, r := range ranked {
		if r.User == user {
			return r.Rank
		}
	}
	return 0
}
