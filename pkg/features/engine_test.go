package features

import (
	"math"
	"testing"

	"github.com/redline/pkg/candles"
)

// syntheticBars builds a positive, non-constant OHLCV series.
func syntheticBars(n int) []candles.Candle {
	bars := make([]candles.Candle, n)
	for i := 0; i < n; i++ {
		base := 100 + 10*math.Sin(float64(i)/3) + 0.5*float64(i)
		bars[i] = candles.Candle{
			Symbol:    "TEST",
			Timestamp: int64(i * 60),
			Open:      base - 0.5,
			High:      base + 1.5,
			Low:       base - 1.5,
			Close:     base,
			Volume:    1000 + 50*math.Sin(float64(i)/2) + 10*float64(i%7),
		}
	}
	return bars
}

func TestRSIWithinBounds(t *testing.T) {
	frame, err := Compute(syntheticBars(40))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	rsi := frame.Col("rsi")
	if rsi == nil {
		t.Fatal("rsi column missing")
	}
	for i := 14; i < len(rsi); i++ {
		if math.IsNaN(rsi[i]) {
			t.Fatalf("rsi[%d] is NaN after warmup", i)
		}
		if rsi[i] < 0 || rsi[i] > 100 {
			t.Fatalf("rsi[%d] = %f outside [0, 100]", i, rsi[i])
		}
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("rsi[%d] = %f, want NaN during warmup", i, rsi[i])
		}
	}
}

func TestSurvivingRowsAfterWarmup(t *testing.T) {
	// 30 bars, selected columns all have rolling windows of at most 20, so
	// the first 19 rows drop and 11 survive.
	frame, err := Compute(syntheticBars(30))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	var xCols []string
	for _, name := range frame.Names {
		if name == "ma_50" || name == "close" {
			continue
		}
		xCols = append(xCols, name)
	}

	x, y, kept, err := frame.Matrix(xCols, "close")
	if err != nil {
		t.Fatalf("Matrix failed: %v", err)
	}
	if len(kept) != 11 {
		t.Fatalf("surviving rows = %d, want 11", len(kept))
	}
	if kept[0] != 19 || kept[len(kept)-1] != 29 {
		t.Fatalf("kept rows span [%d, %d], want [19, 29]", kept[0], kept[len(kept)-1])
	}
	if r, c := x.Dims(); r != 11 || c != len(xCols) {
		t.Fatalf("X dims = [%d, %d], want [11, %d]", r, c, len(xCols))
	}
	if r, c := y.Dims(); r != 11 || c != 1 {
		t.Fatalf("y dims = [%d, %d], want [11, 1]", r, c)
	}
}

func TestSMAKnownValues(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	out := sma(v, 5)
	if !math.IsNaN(out[3]) {
		t.Fatalf("sma[3] = %f, want NaN", out[3])
	}
	if out[4] != 3 {
		t.Fatalf("sma[4] = %f, want 3", out[4])
	}
	if out[9] != 8 {
		t.Fatalf("sma[9] = %f, want 8", out[9])
	}
}

func TestATRFlatSeriesIsZero(t *testing.T) {
	bars := make([]candles.Candle, 20)
	for i := range bars {
		bars[i] = candles.Candle{High: 50, Low: 50, Close: 50, Open: 50, Volume: 1}
	}
	frame, err := Compute(bars)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	atr := frame.Col("atr")
	for i := 14; i < len(atr); i++ {
		if atr[i] != 0 {
			t.Fatalf("atr[%d] = %f, want 0 on flat series", i, atr[i])
		}
	}
}

func TestMatrixUnknownColumn(t *testing.T) {
	frame, err := Compute(syntheticBars(30))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if _, _, _, err := frame.Matrix([]string{"no_such_column"}, "close"); err == nil {
		t.Fatal("expected error for unknown column")
	}
	if _, _, _, err := frame.Matrix([]string{"close"}, "no_such_target"); err == nil {
		t.Fatal("expected error for unknown target")
	}
}

func TestStochasticWithinBounds(t *testing.T) {
	frame, err := Compute(syntheticBars(40))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	stochK := frame.Col("stoch_k")
	for i := 13; i < len(stochK); i++ {
		if stochK[i] < 0 || stochK[i] > 100 {
			t.Fatalf("stoch_k[%d] = %f outside [0, 100]", i, stochK[i])
		}
	}
	williams := frame.Col("williams_r")
	for i := 13; i < len(williams); i++ {
		if williams[i] < -100 || williams[i] > 0 {
			t.Fatalf("williams_r[%d] = %f outside [-100, 0]", i, williams[i])
		}
	}
}
