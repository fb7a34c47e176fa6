package model_selection

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/metrics"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
)

// CVResult is the cross-validated score of one configuration.
type CVResult struct {
	Params     model.Params
	FoldScores []float64
	MeanScore  float64
}

// GridSearchCV exhaustively evaluates a parameter grid with k-fold
// cross-validation, scoring each fold with R².
//
// The searched estimator is only ever cloned; it is never fitted itself.
type GridSearchCV struct {
	Estimator model.Regressor
	ParamGrid map[string][]interface{}
	CV        *KFold
	NJobs     int // <= 0 uses every CPU
	Logger    log.Logger

	// ErrorScoreNaN scores a failing configuration as NaN instead of
	// aborting the search (scikit-learn error_score=nan).
	ErrorScoreNaN bool

	Results    []CVResult
	BestIndex  int
	BestParams model.Params
	BestScore  float64
}

// NewGridSearchCV creates a 3-fold, non-shuffling grid search.
func NewGridSearchCV(estimator model.Regressor, grid map[string][]interface{}) *GridSearchCV {
	return &GridSearchCV{
		Estimator: estimator,
		ParamGrid: grid,
		CV:        NewKFold(3),
		BestIndex: -1,
	}
}

// Fit evaluates every (configuration, fold) pair.
//
// The best configuration has the highest mean fold score; ties keep the
// first configuration in grid order and NaN means never win. A cancelled ctx
// stops scheduling and Fit returns the context error.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GridSearchCV.Fit")

	logger := gs.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("model_selection")
	}

	rows, _, err := model.CheckXY("GridSearchCV.Fit", X, y)
	if err != nil {
		return err
	}
	configs, err := ParameterGrid(gs.ParamGrid)
	if err != nil {
		return err
	}
	folds, err := gs.CV.Split(rows)
	if err != nil {
		return err
	}

	type foldData struct {
		XTrain, yTrain, XTest, yTest *mat.Dense
	}
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			XTrain: SelectRows(X, f.TrainIndices),
			yTrain: SelectRows(y, f.TrainIndices),
			XTest:  SelectRows(X, f.TestIndices),
			yTest:  SelectRows(y, f.TestIndices),
		}
	}

	start := time.Now()
	logger.Debug("Grid search started",
		log.OperationKey, log.OperationGridSearch,
		log.ConfigsKey, len(configs),
		log.FoldsKey, len(folds),
		log.SamplesKey, rows,
	)

	// scores[c*len(folds)+f]
	scores := make([]float64, len(configs)*len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs(gs.NJobs))

schedule:
	for c := range configs {
		for f := range folds {
			if gctx.Err() != nil {
				break schedule
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				score, err := fitAndScore(gs.Estimator, configs[c], data[f].XTrain, data[f].yTrain, data[f].XTest, data[f].yTest)
				if err != nil {
					if !gs.ErrorScoreNaN {
						return errors.Wrapf(err, "configuration %s fold %d", configs[c], f)
					}
					logger.Warn("Configuration failed, scored as NaN",
						errors.Wrapf(err, "configuration %s fold %d", configs[c], f),
						log.HyperParamsKey, configs[c].String(),
					)
					score = math.NaN()
				}
				scores[c*len(folds)+f] = score
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// errgroup の gctx ではなく呼び出し元の ctx で判定する
	if err := ctx.Err(); err != nil {
		return err
	}

	results := make([]CVResult, len(configs))
	best := -1
	for c, p := range configs {
		fs := append([]float64(nil), scores[c*len(folds):(c+1)*len(folds)]...)
		var sum float64
		for _, s := range fs {
			sum += s
		}
		mean := sum / float64(len(fs))
		results[c] = CVResult{Params: p, FoldScores: fs, MeanScore: mean}
		if math.IsNaN(mean) {
			continue
		}
		if best < 0 || mean > results[best].MeanScore {
			best = c
		}
	}
	if best < 0 {
		// 全設定が NaN の場合は先頭を採用する
		best = 0
	}

	gs.Results = results
	gs.BestIndex = best
	gs.BestParams = results[best].Params.Copy()
	gs.BestScore = results[best].MeanScore

	logger.Debug("Grid search finished",
		log.OperationKey, log.OperationGridSearch,
		log.HyperParamsKey, gs.BestParams.String(),
		log.CVScoreKey, gs.BestScore,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func fitAndScore(prototype model.Regressor, params model.Params, XTrain, yTrain, XTest, yTest mat.Matrix) (float64, error) {
	est := prototype.Clone()
	if err := est.SetParams(params); err != nil {
		return 0, err
	}
	if err := est.Fit(XTrain, yTrain); err != nil {
		return 0, err
	}
	pred, err := est.Predict(XTest)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(yTest, pred)
}

func jobs(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
