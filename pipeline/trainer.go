package pipeline

import (
	"context"
	"encoding/gob"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/studentperf/artifact"
	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/metrics"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/selection"
)

func init() {
	gob.Register(&ModelArtifact{})
}

// ModelArtifact is the persisted winner of a training run.
type ModelArtifact struct {
	RunID        string
	Name         string
	Score        float64
	Report       selection.Report
	Params       string
	FeatureNames []string
	TrainedAt    time.Time
	Model        model.Regressor
}

// TrainResult is returned by ModelTrainer.Run.
type TrainResult struct {
	Artifact  *ModelArtifact
	Selection *selection.Result
	// TestR2 is recomputed from the persisted model on the test set.
	TestR2 float64
}

// ModelTrainer selects the best candidate and persists it under ModelKey.
type ModelTrainer struct {
	Config   Config
	Store    artifact.Store
	Registry *selection.Registry
	Logger   log.Logger
	// Options are passed to the selection engine after the config-derived ones.
	Options []selection.Option
	// RunID identifies the run; empty generates a new UUID.
	RunID string
}

// Run executes the training stage. Nothing is persisted when selection fails.
func (t *ModelTrainer) Run(ctx context.Context, data *TransformedData) (*TrainResult, error) {
	runID := t.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := loggerOr(t.Logger, "trainer").With(log.RunIDKey, runID)

	registry := t.Registry
	if registry == nil {
		var err error
		if registry, err = t.Config.LoadRegistry(); err != nil {
			return nil, err
		}
	}

	opts := []selection.Option{
		selection.WithLogger(logger),
		selection.WithNJobs(t.Config.NJobs),
		selection.WithParallelCandidates(t.Config.ParallelCandidates),
	}
	if t.Config.SkipFailed {
		opts = append(opts, selection.WithSkipFailed())
	}
	opts = append(opts, t.Options...)

	logger.Info("Split training and test input data",
		log.SamplesKey, rows(data),
		log.CandidatesKey, registry.Len(),
	)
	result, err := selection.SelectBestModel(ctx, data.XTrain, data.YTrain, data.XTest, data.YTest, registry, opts...)
	if err != nil {
		logger.Error("Exception occurred at model training", err)
		return nil, err
	}

	art := &ModelArtifact{
		RunID:        runID,
		Name:         result.BestName,
		Score:        result.BestScore,
		Report:       result.Report,
		Params:       result.BestModel.GetParams().String(),
		FeatureNames: data.FeatureNames,
		TrainedAt:    time.Now().UTC(),
		Model:        result.BestModel,
	}
	if err := t.Store.Save(ctx, t.Config.ModelKey, art); err != nil {
		logger.Error("Failed to save the model", err)
		return nil, err
	}

	pred, err := art.Model.Predict(data.XTest)
	if err != nil {
		return nil, errors.NewFitFailure(log.OperationPredict, art.Name, err)
	}
	r2, err := metrics.R2ScoreMatrix(data.YTest, pred)
	if err != nil {
		return nil, errors.NewFitFailure(log.OperationScore, art.Name, err)
	}
	logger.Info("Saved the best model",
		log.ModelNameKey, art.Name,
		log.R2ScoreKey, r2,
		"artifact.key", t.Config.ModelKey,
	)
	return &TrainResult{Artifact: art, Selection: result, TestR2: r2}, nil
}

func rows(data *TransformedData) int {
	r, _ := data.XTrain.Dims()
	return r
}
