package pipeline

import (
	"context"

	"github.com/bilgisen/newsroom/internal/ai"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/models"
)

// Select asks ranker for the n best candidates. Out-of-range and repeated
// indices are dropped and the ranker's order is kept. When the ranker fails
// or yields nothing usable, the first n candidates in feed order are used.
func Select(ctx context.Context, ranker ai.Ranker, candidates []models.Candidate, n int) []models.Candidate {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if ranker == nil {
		return firstN(candidates, n)
	}

	indices, err := ranker.Rank(ctx, candidates, n)
	if err != nil {
		logger.Get().Warn().Err(err).Msg("Ranking failed, using feed order")
		return firstN(candidates, n)
	}

	seen := make(map[int]bool, len(indices))
	selected := make([]models.Candidate, 0, n)
	for _, idx := range indices {
		if idx < 1 || idx > len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, candidates[idx-1])
		if len(selected) == n {
			break
		}
	}

	if len(selected) == 0 {
		logger.Get().Warn().Ints("indices", indices).Msg("Ranking returned no usable index, using feed order")
		return firstN(candidates, n)
	}
	return selected
}

func firstN(candidates []models.Candidate, n int) []models.Candidate {
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]models.Candidate, n)
	copy(out, candidates[:n])
	return out
}
