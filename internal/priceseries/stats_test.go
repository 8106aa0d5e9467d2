package priceseries

import (
	"testing"
	"time"

	"oddsarb.dev/core/internal/marketdata"
)

func pushN(st *Store, key marketdata.Key, prices []float64) {
	base := time.Now().Add(-time.Duration(len(prices)) * time.Second)
	for i, p := range prices {
		st.Push(key, Sample{Timestamp: base.Add(time.Duration(i) * time.Second), Price: p, Volume: 10})
	}
}

func TestStatsInsufficientBelowLongWindow(t *testing.T) {
	st := NewStore(100)
	key := marketdata.Key{MarketID: "m", OutcomeID: "yes"}
	pushN(st, key, []float64{0.5, 0.51, 0.52})

	stats := st.Stats(key)
	if !stats.Insufficient {
		t.Fatalf("expected Insufficient with only 3 samples, got %+v", stats)
	}
}

func TestStatsSufficientAboveLongWindow(t *testing.T) {
	st := NewStore(100)
	key := marketdata.Key{MarketID: "m", OutcomeID: "yes"}
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 0.5 + float64(i)*0.001
	}
	pushN(st, key, prices)

	stats := st.Stats(key)
	if stats.Insufficient {
		t.Fatalf("expected sufficient samples, got Insufficient=true")
	}
	if stats.Trend != TrendUp {
		t.Fatalf("expected TrendUp for monotonically increasing prices, got %v", stats.Trend)
	}
}

func TestRSIBounded(t *testing.T) {
	samples := make([]Sample, 20)
	for i := range samples {
		price := 0.5
		if i%2 == 0 {
			price = 0.9
		} else {
			price = 0.1
		}
		samples[i] = Sample{Price: price}
	}
	rsi, ok := RSI(samples, 14)
	if !ok {
		t.Fatalf("expected RSI to be computable")
	}
	if rsi < 0 || rsi > 100 {
		t.Fatalf("RSI out of bounds: %v", rsi)
	}
}

func TestRSIAllGainsIsHundred(t *testing.T) {
	samples := []Sample{
		{Price: 0.1}, {Price: 0.2}, {Price: 0.3}, {Price: 0.4}, {Price: 0.5},
	}
	rsi, ok := RSI(samples, 4)
	if !ok || rsi != 100 {
		t.Fatalf("expected RSI=100 for all-gains series, got %v ok=%v", rsi, ok)
	}
}

func TestVolumeSpikeDetection(t *testing.T) {
	st := NewStore(100)
	key := marketdata.Key{MarketID: "m", OutcomeID: "yes"}
	base := time.Now().Add(-30 * time.Second)
	for i := 0; i < 20; i++ {
		st.Push(key, Sample{Timestamp: base.Add(time.Duration(i) * time.Second), Price: 0.5, Volume: 10})
	}
	st.Push(key, Sample{Timestamp: time.Now(), Price: 0.5, Volume: 1000})

	stats := st.Stats(key)
	if !stats.VolumeSpike {
		t.Fatalf("expected volume spike to be detected")
	}
}
