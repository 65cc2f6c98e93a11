package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/redline/pkg/candles"
	"github.com/redline/pkg/features"
	"github.com/redline/pkg/logger"
	"github.com/redline/pkg/nn"
)

func main() {
	data := flag.String("data", "", "CSV file or directory of CSV files with OHLCV bars")
	dsn := flag.String("dsn", "", "Bar database DSN (clickhouse:// or postgres://), used when -data is empty")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to load when reading from a database")
	period := flag.String("period", "", "Period in format YYYY-MM-DD:YYYY-MM-DD for database loads")
	xFeatures := flag.String("x-features", "open,high,low,volume,ma_10,rsi,price_change,volatility_10", "Comma-separated input feature columns")
	yFeature := flag.String("y-feature", "close", "Target column to predict")
	hiddenSizes := flag.String("hidden-sizes", "64,32", "Comma-separated hidden layer widths")
	learningRate := flag.Float64("lr", 0.001, "Learning rate")
	dropoutRate := flag.Float64("dropout", 0.2, "Dropout rate in [0, 1)")
	l2Reg := flag.Float64("l2", 0.01, "L2 regularization coefficient")
	epochs := flag.Int("epochs", 200, "Maximum training epochs")
	batchSize := flag.Int("batch-size", 32, "Mini-batch size")
	validationSplit := flag.Float64("validation-split", 0.2, "Validation fraction")
	patience := flag.Int("patience", 15, "Early stopping patience in epochs")
	seed := flag.Int64("seed", 42, "Random seed for init, split, and shuffles")
	modelDir := flag.String("model-dir", "", "Output model directory (default model_<timestamp>)")
	flag.Parse()

	logger.Init("train")

	bars, err := loadBars(*data, *dsn, *symbol, *period)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bars")
	}
	log.Info().Int("bars", len(bars)).Msg("bars loaded")

	frame, err := features.Compute(bars)
	if err != nil {
		log.Fatal().Err(err).Msg("feature computation failed")
	}

	inputs := splitList(*xFeatures)
	x, y, kept, err := frame.Matrix(inputs, *yFeature)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build training matrix")
	}
	log.Info().Int("rows", len(kept)).Int("features", len(inputs)).Msg("training matrix ready")

	hidden, err := parseSizes(*hiddenSizes)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -hidden-sizes")
	}

	net, err := nn.New(len(inputs), hidden, nn.Config{
		LearningRate: *learningRate,
		DropoutRate:  *dropoutRate,
		L2Reg:        *l2Reg,
		Seed:         *seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct network")
	}
	net.SetFeatureInfo(inputs, *yFeature)

	history, err := net.Train(x, y, nn.TrainConfig{
		Epochs:          *epochs,
		BatchSize:       *batchSize,
		ValidationSplit: *validationSplit,
		Patience:        *patience,
		Seed:            *seed,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	dir := *modelDir
	if dir == "" {
		dir = fmt.Sprintf("model_%s", time.Now().Format("20060102_150405"))
	}
	if err := net.Save(dir); err != nil {
		log.Fatal().Err(err).Msg("failed to save model")
	}

	pred := net.DenormalizeTarget(net.Predict(x))
	metrics := nn.EvaluateRegression(y, pred)

	bestVal := history[0].ValLoss
	for _, rec := range history {
		if rec.ValLoss < bestVal {
			bestVal = rec.ValLoss
		}
	}

	fmt.Println("📊 TRAINING REPORT")
	fmt.Printf("├── Epochs Run: %d\n", len(history))
	fmt.Printf("├── Final Train Loss: %.6f\n", history[len(history)-1].TrainLoss)
	fmt.Printf("├── Best Val Loss: %.6f\n", bestVal)
	fmt.Printf("├── MSE: %.6f  RMSE: %.6f  MAE: %.6f\n", metrics.MSE, metrics.RMSE, metrics.MAE)
	fmt.Printf("├── R²: %.4f  MAPE: %.2f%%\n", metrics.R2, metrics.MAPE)
	fmt.Printf("└── Model Directory: %s\n", dir)
}

func loadBars(data, dsn, symbol, period string) ([]candles.Candle, error) {
	switch {
	case data != "":
		info, err := os.Stat(data)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return candles.LoadCSVDir(data)
		}
		return candles.LoadCSVFile(data)
	case dsn != "":
		from, to, err := parsePeriod(period)
		if err != nil {
			return nil, err
		}
		store, err := candles.OpenStore(dsn)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadCandles(context.Background(), symbol, from, to)
	default:
		return nil, fmt.Errorf("either -data or -dsn is required")
	}
}

func parsePeriod(period string) (time.Time, time.Time, error) {
	if period == "" {
		// Default: trailing year.
		now := time.Now()
		return now.AddDate(-1, 0, 0), now, nil
	}
	parts := strings.Split(period, ":")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period format, use YYYY-MM-DD:YYYY-MM-DD")
	}
	from, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	to, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	return from, to, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, p := range splitList(s) {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad layer width %q: %w", p, err)
		}
		sizes = append(sizes, v)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("at least one hidden layer width is required")
	}
	return sizes, nil
}
