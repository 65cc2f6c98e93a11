package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"

	"github.com/redline/pkg/candles"
	"github.com/redline/pkg/features"
	"github.com/redline/pkg/logger"
	"github.com/redline/pkg/nn"
)

func main() {
	modelDir := flag.String("model-dir", "", "Model directory written by cmd/train")
	data := flag.String("data", "", "CSV file or directory of CSV files with OHLCV bars")
	output := flag.String("output", "", "Optional CSV file for predictions")
	tail := flag.Int("tail", 10, "Number of most recent predictions to print")
	flag.Parse()

	logger.Init("predict")

	if *modelDir == "" || *data == "" {
		log.Fatal().Msg("-model-dir and -data are required")
	}

	net, err := nn.Load(*modelDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model")
	}
	info := net.FeatureInfo()
	if len(info.Inputs) == 0 {
		log.Fatal().Msg("model directory has no recorded feature columns")
	}

	var bars []candles.Candle
	if stat, err := os.Stat(*data); err != nil {
		log.Fatal().Err(err).Msg("failed to read data path")
	} else if stat.IsDir() {
		bars, err = candles.LoadCSVDir(*data)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load bars")
		}
	} else {
		bars, err = candles.LoadCSVFile(*data)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load bars")
		}
	}

	frame, err := features.Compute(bars)
	if err != nil {
		log.Fatal().Err(err).Msg("feature computation failed")
	}
	x, y, kept, err := frame.Matrix(info.Inputs, info.Target)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build prediction matrix")
	}

	pred := net.DenormalizeTarget(net.Predict(x))
	metrics := nn.EvaluateRegression(y, pred)

	fmt.Println("📊 PREDICTION REPORT")
	fmt.Printf("├── Rows Predicted: %d\n", len(kept))
	fmt.Printf("├── MSE: %.6f  RMSE: %.6f  MAE: %.6f\n", metrics.MSE, metrics.RMSE, metrics.MAE)
	fmt.Printf("└── R²: %.4f  MAPE: %.2f%%\n", metrics.R2, metrics.MAPE)
	fmt.Println()

	start := len(kept) - *tail
	if start < 0 {
		start = 0
	}
	fmt.Printf("%-12s %-14s %-14s %-12s\n", "Timestamp", "Actual", "Predicted", "Error")
	for i := start; i < len(kept); i++ {
		actual := y.At(i, 0)
		p := pred.At(i, 0)
		fmt.Printf("%-12d %-14.6f %-14.6f %-12.6f\n", bars[kept[i]].Timestamp, actual, p, p-actual)
	}

	if *output != "" {
		if err := writePredictionsCSV(*output, bars, kept, y, pred); err != nil {
			log.Fatal().Err(err).Msg("failed to write predictions")
		}
		fmt.Printf("\nSaved predictions to %s\n", *output)
	}
}

func writePredictionsCSV(path string, bars []candles.Candle, kept []int, y, pred *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "actual", "predicted"}); err != nil {
		return err
	}
	for i, r := range kept {
		row := []string{
			strconv.FormatInt(bars[r].Timestamp, 10),
			strconv.FormatFloat(y.At(i, 0), 'g', -1, 64),
			strconv.FormatFloat(pred.At(i, 0), 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
