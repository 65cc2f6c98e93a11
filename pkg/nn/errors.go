package nn

import (
	"errors"
	"fmt"
)

// ErrNoForwardPass reports a backward call with no cached forward activations.
var ErrNoForwardPass = errors.New("nn: backward called without a matching forward pass")

// ConfigError reports an invalid hyperparameter at construction time.
type ConfigError struct {
	Param string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("nn: invalid config %s: %s", e.Param, e.Msg)
}

// DataError reports invalid training or prediction inputs, such as non-finite
// feature values or dimension mismatches against the network's input size.
type DataError struct {
	Msg string
}

func (e *DataError) Error() string {
	return "nn: bad data: " + e.Msg
}

// NumericInstabilityError reports a non-finite loss detected at an epoch
// boundary, usually from an unstable learning rate.
type NumericInstabilityError struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
}

func (e *NumericInstabilityError) Error() string {
	return fmt.Sprintf("nn: non-finite loss at epoch %d (train=%v val=%v); lower the learning rate", e.Epoch, e.TrainLoss, e.ValLoss)
}

// PersistenceError reports a save/load failure, including configuration and
// weight tensor shape mismatches found in a model directory.
type PersistenceError struct {
	Path string
	Msg  string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("nn: persistence error at %s: %s", e.Path, e.Msg)
}
