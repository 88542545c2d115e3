// Package rank blends raw relevance scores with host authority and,
// optionally, asks a local LLM to reorder the top hits. Every failure mode
// on the rerank path is fail-open: the caller always gets a ranked list.
package rank

import (
	"sort"

	"github.com/sulaimonao/selfhostedsearch/internal/index"
)

// DefaultAuthAlpha is the host-authority blend coefficient when the caller
// doesn't override it.
const DefaultAuthAlpha = 0.15

// AuthorityScorer is the narrow view of the authority estimator the
// blender needs; satisfied by *authority.Estimator.
type AuthorityScorer interface {
	ScoreFor(urlOrHost string) float64
}

// BlendedHit is one ranked result after authority blending.
type BlendedHit struct {
	URL           string
	Title         string
	Snippet       string
	Lang          string
	Score         float64
	HostAuthority float64
	BlendedScore  float64
}

// Blend enriches hits with host authority and re-sorts by
// score + alpha*host_authority, descending. The sort is stable, so hits
// with equal blended scores keep their incoming (relevance) order.
func Blend(hits []index.Hit, scorer AuthorityScorer, alpha float64) []BlendedHit {
	blended := make([]BlendedHit, 0, len(hits))
	for _, hit := range hits {
		hostScore := 0.0
		if scorer != nil {
			hostScore = scorer.ScoreFor(hit.URL)
		}
		blended = append(blended, BlendedHit{
			URL:           hit.URL,
			Title:         hit.Title,
			Snippet:       hit.Snippet,
			Lang:          hit.Lang,
			Score:         hit.Score,
			HostAuthority: hostScore,
			BlendedScore:  hit.Score + alpha*hostScore,
		})
	}
	sort.SliceStable(blended, func(i, j int) bool {
		return blended[i].BlendedScore > blended[j].BlendedScore
	})
	return blended
}
