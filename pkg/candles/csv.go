package candles

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// requiredColumns are the bar fields a CSV file must provide. Volume may be
// named either "vol" or "volume"; a "timestamp" or "date" column is optional.
var requiredColumns = []string{"open", "high", "low", "close"}

// LoadCSVDir reads every *.csv file in dir and concatenates the bars in file
// order, then by row order within each file.
func LoadCSVDir(dir string) ([]Candle, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no CSV files found in directory: %s", dir)
	}
	sort.Strings(paths)

	var bars []Candle
	for _, p := range paths {
		fileBars, err := LoadCSVFile(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		bars = append(bars, fileBars...)
	}
	return bars, nil
}

// LoadCSVFile reads one OHLCV CSV file. The header row names the columns;
// matching is case-insensitive.
func LoadCSVFile(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("CSV file has no data rows")
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("CSV file must contain columns: %v plus vol or volume", requiredColumns)
		}
	}
	volIdx, ok := cols["vol"]
	if !ok {
		if volIdx, ok = cols["volume"]; !ok {
			return nil, fmt.Errorf("CSV file must contain columns: %v plus vol or volume", requiredColumns)
		}
	}
	tsIdx, hasTS := cols["timestamp"]
	if !hasTS {
		tsIdx, hasTS = cols["date"]
	}
	symbol := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	bars := make([]Candle, 0, len(records)-1)
	for line, rec := range records[1:] {
		c := Candle{Symbol: symbol}
		var err error
		if c.Open, err = strconv.ParseFloat(rec[cols["open"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad open: %w", line+2, err)
		}
		if c.High, err = strconv.ParseFloat(rec[cols["high"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad high: %w", line+2, err)
		}
		if c.Low, err = strconv.ParseFloat(rec[cols["low"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad low: %w", line+2, err)
		}
		if c.Close, err = strconv.ParseFloat(rec[cols["close"]], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad close: %w", line+2, err)
		}
		if c.Volume, err = strconv.ParseFloat(rec[volIdx], 64); err != nil {
			return nil, fmt.Errorf("row %d: bad volume: %w", line+2, err)
		}
		if hasTS {
			c.Timestamp, err = parseTimestamp(rec[tsIdx])
			if err != nil {
				return nil, fmt.Errorf("row %d: bad timestamp: %w", line+2, err)
			}
		} else {
			c.Timestamp = int64(line)
		}
		bars = append(bars, c)
	}
	return bars, nil
}

func parseTimestamp(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", s)
}
