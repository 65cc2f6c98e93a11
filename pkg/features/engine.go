// Package features derives a technical-indicator frame from an OHLCV bar
// series. Every rolling or lag-based column is NaN until its window fills;
// callers drop those rows (Frame.Matrix) before handing data to a trainer.
package features

import (
	"fmt"
	"math"

	"github.com/redline/pkg/candles"
)

const divEpsilon = 1e-10

// Compute builds the full indicator frame for a time-ordered bar series.
func Compute(bars []candles.Candle) (*Frame, error) {
	n := len(bars)
	if n == 0 {
		return nil, fmt.Errorf("features: empty bar series")
	}

	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	volume := make([]float64, n)
	for i, b := range bars {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}

	f := newFrame(n)
	f.add("open", open)
	f.add("high", high)
	f.add("low", low)
	f.add("close", closes)
	f.add("volume", volume)

	// Moving averages.
	f.add("ma_5", sma(closes, 5))
	f.add("ma_10", sma(closes, 10))
	ma20 := sma(closes, 20)
	f.add("ma_20", ma20)
	f.add("ma_50", sma(closes, 50))
	ema12 := ema(closes, 12)
	ema26 := ema(closes, 26)
	f.add("ema_12", ema12)
	f.add("ema_26", ema26)

	f.add("rsi", rsi(closes, 14))

	// Percent changes and volatility.
	f.add("price_change", pctChange(closes, 1))
	f.add("price_change_5", pctChange(closes, 5))
	f.add("price_change_10", pctChange(closes, 10))
	f.add("volatility_10", rollingStd(closes, 10))
	vol20 := rollingStd(closes, 20)
	f.add("volatility_20", vol20)

	// Bollinger bands around the 20-period mean.
	bbUpper := make([]float64, n)
	bbLower := make([]float64, n)
	bbWidth := make([]float64, n)
	bbPosition := make([]float64, n)
	for i := 0; i < n; i++ {
		bbUpper[i] = ma20[i] + 2*vol20[i]
		bbLower[i] = ma20[i] - 2*vol20[i]
		bbWidth[i] = safeDiv(bbUpper[i]-bbLower[i], ma20[i])
		bbPosition[i] = safeDiv(closes[i]-bbLower[i], bbUpper[i]-bbLower[i])
	}
	f.add("bb_middle", ma20)
	f.add("bb_upper", bbUpper)
	f.add("bb_lower", bbLower)
	f.add("bb_width", bbWidth)
	f.add("bb_position", bbPosition)

	// MACD.
	macd := make([]float64, n)
	for i := 0; i < n; i++ {
		macd[i] = ema12[i] - ema26[i]
	}
	macdSignal := ema(macd, 9)
	macdHist := make([]float64, n)
	for i := 0; i < n; i++ {
		macdHist[i] = macd[i] - macdSignal[i]
	}
	f.add("macd", macd)
	f.add("macd_signal", macdSignal)
	f.add("macd_histogram", macdHist)

	// Stochastic oscillator and Williams %R over the 14-period range.
	lowMin := rollingMin(low, 14)
	highMax := rollingMax(high, 14)
	stochK := make([]float64, n)
	williamsR := make([]float64, n)
	for i := 0; i < n; i++ {
		stochK[i] = 100 * safeDiv(closes[i]-lowMin[i], highMax[i]-lowMin[i])
		williamsR[i] = -100 * safeDiv(highMax[i]-closes[i], highMax[i]-lowMin[i])
	}
	f.add("stoch_k", stochK)
	f.add("stoch_d", sma(stochK, 3))
	f.add("williams_r", williamsR)

	// Volume ratios against 10- and 20-period averages.
	volumeMA := sma(volume, 10)
	volumeSMA20 := sma(volume, 20)
	volumeRatio := make([]float64, n)
	volumeSMARatio := make([]float64, n)
	for i := 0; i < n; i++ {
		volumeRatio[i] = safeDiv(volume[i], volumeMA[i])
		volumeSMARatio[i] = safeDiv(volume[i], volumeSMA20[i])
	}
	f.add("volume_ma", volumeMA)
	f.add("volume_ratio", volumeRatio)
	f.add("volume_sma_ratio", volumeSMARatio)

	// Momentum and rate of change.
	f.add("momentum_5", momentum(closes, 5))
	f.add("momentum_10", momentum(closes, 10))
	f.add("roc_5", roc(closes, 5))
	f.add("roc_10", roc(closes, 10))

	f.add("atr", atr(high, low, closes, 14))
	f.add("cci", cci(high, low, closes, 20))
	f.add("mfi", mfi(high, low, closes, volume, 14))

	// Rolling support/resistance and distance ratios.
	support := rollingMin(low, 20)
	resistance := rollingMax(high, 20)
	toSupport := make([]float64, n)
	toResistance := make([]float64, n)
	for i := 0; i < n; i++ {
		toSupport[i] = safeDiv(closes[i]-support[i], support[i])
		toResistance[i] = safeDiv(resistance[i]-closes[i], closes[i])
	}
	f.add("support_20", support)
	f.add("resistance_20", resistance)
	f.add("price_to_support", toSupport)
	f.add("price_to_resistance", toResistance)

	return f, nil
}

// safeDiv divides with an epsilon floor on the denominator. NaN operands
// propagate unchanged.
func safeDiv(a, b float64) float64 {
	if b == 0 {
		b = divEpsilon
	}
	return a / b
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func sma(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period - 1; i < len(v); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += v[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// ema is the recursive exponential average with alpha = 2/(span+1), seeded
// with the first value. NaN inputs (e.g. the MACD of a short series) stay NaN
// until the first finite value appears.
func ema(v []float64, span int) []float64 {
	out := nanSlice(len(v))
	alpha := 2.0 / (float64(span) + 1.0)
	prev := math.NaN()
	for i, x := range v {
		if math.IsNaN(prev) {
			prev = x
		} else if !math.IsNaN(x) {
			prev = alpha*x + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

func rollingStd(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period - 1; i < len(v); i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += v[j]
		}
		mean /= float64(period)
		sumSq := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := v[j] - mean
			sumSq += d * d
		}
		// Sample standard deviation (ddof=1).
		out[i] = math.Sqrt(sumSq / float64(period-1))
	}
	return out
}

func rollingMin(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period - 1; i < len(v); i++ {
		m := v[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if v[j] < m {
				m = v[j]
			}
		}
		out[i] = m
	}
	return out
}

func rollingMax(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period - 1; i < len(v); i++ {
		m := v[i-period+1]
		for j := i - period + 2; j <= i; j++ {
			if v[j] > m {
				m = v[j]
			}
		}
		out[i] = m
	}
	return out
}

func pctChange(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period; i < len(v); i++ {
		out[i] = safeDiv(v[i]-v[i-period], v[i-period])
	}
	return out
}

func momentum(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period; i < len(v); i++ {
		out[i] = v[i] - v[i-period]
	}
	return out
}

func roc(v []float64, period int) []float64 {
	out := nanSlice(len(v))
	for i := period; i < len(v); i++ {
		out[i] = safeDiv(v[i]-v[i-period], v[i-period]) * 100
	}
	return out
}

// rsi computes the 14-style relative strength index over rolling mean gains
// and losses, with an epsilon-stabilized ratio.
func rsi(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	for i := period; i < n; i++ {
		var avgGain, avgLoss float64
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)
		rs := avgGain / (avgLoss + divEpsilon)
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// atr averages the true range max(h−l, |h−prevClose|, |l−prevClose|).
func atr(high, low, closes []float64, period int) []float64 {
	n := len(high)
	tr := nanSlice(n)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	out := nanSlice(n)
	for i := period; i < n; i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += tr[j]
		}
		out[i] = sum / float64(period)
	}
	return out
}

// cci scales typical-price deviation by 0.015 times the mean absolute
// deviation over the window.
func cci(high, low, closes []float64, period int) []float64 {
	n := len(high)
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (high[i] + low[i] + closes[i]) / 3
	}
	out := nanSlice(n)
	for i := period - 1; i < n; i++ {
		mean := 0.0
		for j := i - period + 1; j <= i; j++ {
			mean += tp[j]
		}
		mean /= float64(period)
		mad := 0.0
		for j := i - period + 1; j <= i; j++ {
			mad += math.Abs(tp[j] - mean)
		}
		mad /= float64(period)
		out[i] = safeDiv(tp[i]-mean, 0.015*mad)
	}
	return out
}

// mfi is the money flow index over signed typical-price×volume flows.
func mfi(high, low, closes, volume []float64, period int) []float64 {
	n := len(high)
	tp := make([]float64, n)
	for i := 0; i < n; i++ {
		tp[i] = (high[i] + low[i] + closes[i]) / 3
	}
	pos := make([]float64, n)
	neg := make([]float64, n)
	for i := 1; i < n; i++ {
		flow := tp[i] * volume[i]
		if tp[i] > tp[i-1] {
			pos[i] = flow
		} else if tp[i] < tp[i-1] {
			neg[i] = flow
		}
	}
	out := nanSlice(n)
	for i := period; i < n; i++ {
		var posSum, negSum float64
		for j := i - period + 1; j <= i; j++ {
			posSum += pos[j]
			negSum += neg[j]
		}
		ratio := posSum / (negSum + divEpsilon)
		out[i] = 100 - 100/(1+ratio)
	}
	return out
}
