package priceseries

import "oddsarb.dev/core/internal/marketdata"

// Trend classifies the SMA-crossover direction with hysteresis to avoid
// flapping at the crossover boundary (spec.md §4.5).
type Trend string

const (
	TrendUp      Trend = "Up"
	TrendDown    Trend = "Down"
	TrendNeutral Trend = "Neutral"
)

// hysteresisBand is the minimum separation between short/long SMA (as a
// fraction of the long SMA) required to flip trend state.
const hysteresisBand = 0.001

// volumeSpikeMultiple and medianWindow tune the volume-spike detector.
const (
	volumeSpikeMultiple = 2.0
	medianWindow        = 20
)

// Stats is the set of derived statistics for one outcome's price series at
// a point in time. Insufficient marks any field that could not be computed
// because fewer than the required sample count exists (spec.md §4.5).
type Stats struct {
	SMA           float64
	VWAP          float64
	RSI           float64
	Momentum      float64
	ChangePercent float64
	Trend         Trend
	VolumeSpike   bool
	Insufficient  bool
	SampleCount   int
}

// SMA computes the simple moving average over the last n samples, oldest
// weighting equal. Returns (value, ok); ok is false if fewer than n exist.
func SMA(samples []Sample, n int) (float64, bool) {
	if n <= 0 || len(samples) < n {
		return 0, false
	}
	sum := 0.0
	tail := samples[len(samples)-n:]
	for _, s := range tail {
		sum += s.Price
	}
	return sum / float64(n), true
}

// VWAP computes the volume-weighted average price over the last window
// samples. Falls back to a plain average when no sample in the window
// carries volume.
func VWAP(samples []Sample, window int) (float64, bool) {
	if window <= 0 || len(samples) < window {
		return 0, false
	}
	tail := samples[len(samples)-window:]
	var num, denom float64
	for _, s := range tail {
		num += s.Price * s.Volume
		denom += s.Volume
	}
	if denom == 0 {
		return SMA(samples, window)
	}
	return num / denom, true
}

// RSI computes the Relative Strength Index using Wilder smoothing, bounded
// to [0,100]: the first n price changes in samples seed the average
// gain/loss, and every later change is folded in as (avg*(n-1)+x)/n.
// Requires at least n+1 samples.
func RSI(samples []Sample, n int) (float64, bool) {
	if n <= 0 || len(samples) < n+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i < len(samples); i++ {
		change := samples[i].Price - samples[i-1].Price
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i <= n {
			avgGain += gain / float64(n)
			avgLoss += loss / float64(n)
		} else {
			avgGain = (avgGain*float64(n-1) + gain) / float64(n)
			avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		}
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi < 0 {
		rsi = 0
	}
	if rsi > 100 {
		rsi = 100
	}
	return rsi, true
}

// Momentum returns a signed, normalized slope over window: the price change
// from the first to the last sample divided by the first sample's price.
func Momentum(samples []Sample, window int) (float64, bool) {
	if window <= 0 || len(samples) < window {
		return 0, false
	}
	tail := samples[len(samples)-window:]
	first := tail[0].Price
	last := tail[len(tail)-1].Price
	if first == 0 {
		return 0, false
	}
	return (last - first) / first, true
}

// ChangePercent returns the percentage change from the first to the last
// sample in the window.
func ChangePercent(samples []Sample, window int) (float64, bool) {
	m, ok := Momentum(samples, window)
	if !ok {
		return 0, false
	}
	return m * 100, true
}

// classifyTrend compares short and long SMA with a hysteresis band, so a
// crossover must clear hysteresisBand (as a fraction of the long SMA)
// before the trend state flips, and otherwise holds prev.
func classifyTrend(shortSMA, longSMA float64, prev Trend) Trend {
	if longSMA == 0 {
		return TrendNeutral
	}
	diff := (shortSMA - longSMA) / longSMA
	switch {
	case diff > hysteresisBand:
		return TrendUp
	case diff < -hysteresisBand:
		return TrendDown
	default:
		if prev == "" {
			return TrendNeutral
		}
		return prev
	}
}

// median returns the median of xs; xs is not mutated.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	cp := append([]float64(nil), xs...)
	// simple insertion sort; medianWindow-sized slices only.
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j-1] > cp[j]; j-- {
			cp[j-1], cp[j] = cp[j], cp[j-1]
		}
	}
	mid := len(cp) / 2
	if len(cp)%2 == 0 {
		return (cp[mid-1] + cp[mid]) / 2
	}
	return cp[mid]
}

func detectVolumeSpike(samples []Sample) bool {
	if len(samples) < medianWindow+1 {
		return false
	}
	tail := samples[len(samples)-medianWindow-1:]
	history := tail[:medianWindow]
	latest := tail[medianWindow]

	vols := make([]float64, 0, len(history))
	for _, s := range history {
		vols = append(vols, s.Volume)
	}
	med := median(vols)
	if med == 0 {
		return false
	}
	return latest.Volume > volumeSpikeMultiple*med
}

// shortWindow/longWindow/rsiWindow/momentumWindow/changeWindow are the
// sample counts Stats uses for each derived field.
const (
	shortWindow    = 5
	longWindow     = 20
	rsiWindow      = 14
	momentumWindow = 10
	changeWindow   = 10
)

// Stats derives the full statistics set for key from its stored samples.
// If fewer than longWindow samples exist, Insufficient is set and
// best-effort values are still populated where individually computable.
// Trend carries hysteresis state across calls, keyed by key.
func (st *Store) Stats(key marketdata.Key) Stats {
	samples := st.samples(key)
	out := Stats{SampleCount: len(samples)}

	shortSMA, okShort := SMA(samples, shortWindow)
	longSMA, okLong := SMA(samples, longWindow)
	if okLong {
		out.SMA = longSMA
	} else if okShort {
		out.SMA = shortSMA
	}

	if vwap, ok := VWAP(samples, longWindow); ok {
		out.VWAP = vwap
	}
	if rsi, ok := RSI(samples, rsiWindow); ok {
		out.RSI = rsi
	}
	if m, ok := Momentum(samples, momentumWindow); ok {
		out.Momentum = m
	}
	if c, ok := ChangePercent(samples, changeWindow); ok {
		out.ChangePercent = c
	}
	out.VolumeSpike = detectVolumeSpike(samples)

	if okShort && okLong {
		st.mu.Lock()
		prev := st.trendState[key]
		trend := classifyTrend(shortSMA, longSMA, prev)
		st.trendState[key] = trend
		st.mu.Unlock()
		out.Trend = trend
	} else {
		out.Trend = TrendNeutral
	}

	out.Insufficient = !okShort || !okLong
	return out
}
