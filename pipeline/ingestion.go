package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
)

// DataIngestion splits the raw dataset into the train and test files.
type DataIngestion struct {
	Config Config
	Logger log.Logger
}

// Run reads DataPath, shuffles it with Seed and writes TrainPath and TestPath.
func (d *DataIngestion) Run(ctx context.Context) (train, test *dataset.Frame, err error) {
	logger := loggerOr(d.Logger, "ingestion")
	start := time.Now()

	if d.Config.DataPath == "" {
		return nil, nil, errors.NewValidationError("data_path", "required for ingestion", "")
	}
	raw, err := dataset.ReadCSV(d.Config.DataPath)
	if err != nil {
		return nil, nil, err
	}
	if !raw.Has(d.Config.Target) {
		return nil, nil, errors.NewValidationError("target", "column not found in dataset", d.Config.Target)
	}
	logger.Info("Read the dataset", log.SamplesKey, raw.Len())

	if train, test, err = raw.TrainTestSplit(d.Config.TestSize, d.Config.Seed); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := train.SaveCSV(d.Config.TrainPath); err != nil {
		return nil, nil, err
	}
	if err := test.SaveCSV(d.Config.TestPath); err != nil {
		return nil, nil, err
	}

	logger.Info("Ingestion of the data is completed",
		"train_samples", train.Len(),
		"test_samples", test.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return train, test, nil
}

func loggerOr(l log.Logger, name string) log.Logger {
	if l != nil {
		return l.With(log.ComponentKey, name)
	}
	return log.GetLoggerWithName(name)
}
