// Package candles defines the OHLCV bar type and the sources that produce
// time-ordered bar series: CSV files on disk and SQL candle stores.
package candles

import "fmt"

// Candle represents a single OHLCV bar.
type Candle struct {
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Validate checks basic bar sanity: high is the bar maximum, low the minimum.
func (c Candle) Validate() error {
	if c.High < c.Low {
		return fmt.Errorf("candle %s@%d: high %.8f below low %.8f", c.Symbol, c.Timestamp, c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("candle %s@%d: open/close outside high/low range", c.Symbol, c.Timestamp)
	}
	return nil
}
