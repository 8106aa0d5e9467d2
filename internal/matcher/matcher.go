package matcher

import (
	"sync"
	"time"

	"oddsarb.dev/core/internal/venue"
)

// Matcher runs the two-stage candidate-search-then-verify pipeline and
// maintains the accepted MarketPair set.
type Matcher struct {
	verifier ExternalVerifier // nil selects the heuristic fallback

	mu    sync.RWMutex
	pairs map[string]MarketPair
}

// New builds a Matcher. Pass nil to always use the heuristic fallback
// scorer.
func New(verifier ExternalVerifier) *Matcher {
	return &Matcher{verifier: verifier, pairs: make(map[string]MarketPair)}
}

// Pairs returns a snapshot of all currently accepted, active pairs.
func (m *Matcher) Pairs() []MarketPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MarketPair, 0, len(m.pairs))
	for _, p := range m.pairs {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// Deactivate marks any pair involving marketExternalID as inactive (spec.md
// §4.6: "marked inactive when either underlying market deactivates").
func (m *Matcher) Deactivate(marketExternalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.pairs {
		if p.Polymarket.ExternalID == marketExternalID || p.Kalshi.ExternalID == marketExternalID {
			p.IsActive = false
			m.pairs[k] = p
		}
	}
}

// Scan runs Stage 1 candidate search over polyMarkets × kalshiMarkets, then
// Stage 2 verification on the top candidates, and merges newly accepted
// pairs into the store. It returns the pairs newly accepted this scan.
func (m *Matcher) Scan(polyMarkets, kalshiMarkets []venue.Market) []MarketPair {
	cands := m.findCandidates(polyMarkets, kalshiMarkets)

	var accepted []MarketPair
	for _, c := range cands {
		poly := polyMarkets[c.polyIdx]
		kalshi := kalshiMarkets[c.kalshiIdx]

		var result VerifyResult
		var err error
		if m.verifier != nil {
			result, err = m.verifier.Verify(poly, kalshi)
			if err != nil {
				result = heuristicVerify(poly, kalshi, c.similarity)
			}
		} else {
			result = heuristicVerify(poly, kalshi, c.similarity)
		}

		if !result.IsMatch || result.Confidence < acceptThreshold {
			continue
		}

		pair := MarketPair{
			Key:           pairKey(poly, kalshi),
			Polymarket:    poly,
			Kalshi:        kalshi,
			PolyOutcome:   result.PolyOutcome,
			KalshiOutcome: result.KalshiOutcome,
			Confidence:    result.Confidence,
			Reasoning:     result.Reasoning,
			IsActive:      true,
			MatchedAt:     time.Now(),
		}
		m.mu.Lock()
		m.pairs[pair.Key] = pair
		m.mu.Unlock()
		accepted = append(accepted, pair)
	}
	return accepted
}

func (m *Matcher) findCandidates(polyMarkets, kalshiMarkets []venue.Market) []candidate {
	var cands []candidate
	for i, p := range polyMarkets {
		if !p.IsActive {
			continue
		}
		pWords := normalizedWords(p.Title + " " + p.Description)
		for j, k := range kalshiMarkets {
			if !k.IsActive {
				continue
			}
			if abs(p.EndDate.Sub(k.EndDate)) > maxEndDateSkew {
				continue
			}
			kWords := normalizedWords(k.Title + " " + k.Description)
			sim := jaccard(pWords, kWords)
			if sim < minSimilarity {
				continue
			}
			cands = append(cands, candidate{similarity: sim, polyIdx: i, kalshiIdx: j})
		}
	}
	return rankCandidates(cands)
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
