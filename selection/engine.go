package selection

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/metrics"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/sklearn/model_selection"
)

// MinScore is the quality gate on the winner's held-out R².
const MinScore = 0.6

// ErrNoCandidateCompleted is wrapped in the FitFailure returned when
// WithSkipFailed dropped every candidate.
var ErrNoCandidateCompleted = errors.New("no candidate completed")

// Candidate outcomes recorded in the candidates metric.
const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// ReportEntry is the held-out R² of one candidate.
type ReportEntry struct {
	Name  string
	Score float64
}

// Report lists the completed candidates in registry order.
type Report []ReportEntry

// Get returns the score of name.
func (r Report) Get(name string) (float64, bool) {
	for _, e := range r {
		if e.Name == name {
			return e.Score, true
		}
	}
	return 0, false
}

// Names returns the candidate names in report order.
func (r Report) Names() []string {
	names := make([]string, len(r))
	for i, e := range r {
		names[i] = e.Name
	}
	return names
}

// Trial holds diagnostics of one candidate. Only TestScore takes part in
// selection.
type Trial struct {
	Name       string
	Searched   bool
	BestParams model.Params
	CVScore    float64 // NaN when no search ran
	TrainScore float64
	TestScore  float64
	Fits       int64
	Duration   time.Duration
}

// Result is the outcome of a successful selection run.
type Result struct {
	BestName  string
	BestModel model.Regressor
	BestScore float64
	Report    Report
	Trials    []Trial
	// Skipped lists candidates dropped under WithSkipFailed, in registry order.
	Skipped []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is the "selection" process logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNJobs bounds the concurrent (configuration, fold) jobs of each grid
// search. n <= 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(e *Engine) { e.nJobs = n }
}

// WithParallelCandidates evaluates up to n candidates at once. The report
// and the tie-break still follow registry order.
func WithParallelCandidates(n int) Option {
	return func(e *Engine) { e.parallelCandidates = n }
}

// WithSkipFailed logs and skips failing candidates instead of aborting the run.
// Inside a grid search a failing configuration scores NaN. Cancellation of
// ctx still aborts.
func WithSkipFailed() Option {
	return func(e *Engine) { e.skipFailed = true }
}

// WithMetrics records Prometheus metrics for the run.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine tunes and compares the candidates of a registry.
type Engine struct {
	registry           *Registry
	logger             log.Logger
	nJobs              int
	parallelCandidates int
	skipFailed         bool
	metrics            *Metrics
}

// NewEngine creates an engine over registry.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:           registry,
		nJobs:              1,
		parallelCandidates: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.GetLoggerWithName("selection")
	}
	return e
}

// SelectBestModel runs NewEngine(registry, opts...).Select.
func SelectBestModel(ctx context.Context, XTrain, yTrain, XTest, yTest mat.Matrix, registry *Registry, opts ...Option) (*Result, error) {
	return NewEngine(registry, opts...).Select(ctx, XTrain, yTrain, XTest, yTest)
}

type splitData struct {
	XTrain, yTrain, XTest, yTest mat.Matrix
}

type outcome struct {
	trial Trial
	model model.Regressor
	err   error
}

// Select evaluates every candidate and returns the winner.
func (e *Engine) Select(ctx context.Context, XTrain, yTrain, XTest, yTest mat.Matrix) (*Result, error) {
	if e.registry == nil || e.registry.Len() == 0 {
		return nil, errors.NewValidationError("registry", "must contain at least one candidate", 0)
	}
	data := splitData{XTrain: XTrain, yTrain: yTrain, XTest: XTest, yTest: yTest}
	if err := validateData(data); err != nil {
		return nil, errors.NewFitFailure("validate", "", err)
	}

	rows, cols := XTrain.Dims()
	e.logger.Info("Model selection started",
		log.CandidatesKey, e.registry.Len(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	entries := e.registry.Entries()
	outcomes, err := e.evaluateAll(ctx, entries, data)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, entry := range entries {
		o := outcomes[i]
		if o.err != nil {
			res.Skipped = append(res.Skipped, entry.Name)
			continue
		}
		res.Report = append(res.Report, ReportEntry{Name: entry.Name, Score: o.trial.TestScore})
		res.Trials = append(res.Trials, o.trial)
	}

	if len(res.Report) == 0 {
		e.logger.Info("No candidate completed", log.ThresholdKey, MinScore)
		return nil, errors.NewFitFailure(log.OperationSelect, strings.Join(res.Skipped, ", "), ErrNoCandidateCompleted)
	}

	// 最大値と完全一致する最初の候補を選ぶ。NaN は選ばれない。
	best := -1
	for i, r := range res.Report {
		if math.IsNaN(r.Score) {
			continue
		}
		if best < 0 || r.Score > res.Report[best].Score {
			best = i
		}
	}
	if best < 0 {
		e.logger.Info("No best model found", log.ThresholdKey, MinScore)
		return nil, errors.NewNoAcceptableModelError(res.Report[0].Name, math.NaN(), MinScore)
	}

	bestName := res.Report[best].Name
	bestScore := res.Report[best].Score
	if bestScore < MinScore {
		e.logger.Info("No best model found",
			log.CandidateKey, bestName,
			log.R2ScoreKey, bestScore,
			log.ThresholdKey, MinScore,
		)
		return nil, errors.NewNoAcceptableModelError(bestName, bestScore, MinScore)
	}

	for i, entry := range entries {
		if entry.Name == bestName {
			res.BestModel = outcomes[i].model
		}
	}
	res.BestName = bestName
	res.BestScore = bestScore
	if e.metrics != nil {
		e.metrics.BestScore.Set(bestScore)
	}
	e.logger.Info("Best model found",
		log.CandidateKey, bestName,
		log.R2ScoreKey, bestScore,
	)
	return res, nil
}

// evaluateAll fills one outcome slot per entry. Under fail-fast it returns
// the first failure; under skip-failed failures stay in their slots.
func (e *Engine) evaluateAll(ctx context.Context, entries []Entry, data splitData) ([]outcome, error) {
	outcomes := make([]outcome, len(entries))

	run := func(ctx context.Context, i int) error {
		trial, fitted, err := e.evaluate(ctx, entries[i], data)
		outcomes[i] = outcome{trial: trial, model: fitted, err: err}
		if err == nil {
			e.record(entries[i].Name, trial, statusOK)
			return nil
		}
		// キャンセルは skip 指定でも中断扱い
		if ctx.Err() != nil || !e.skipFailed {
			e.record(entries[i].Name, trial, statusFailed)
			return err
		}
		e.record(entries[i].Name, trial, statusSkipped)
		e.logger.Warn("Skipping failed candidate",
			err,
			log.CandidateKey, entries[i].Name,
		)
		return nil
	}

	if e.parallelCandidates <= 1 {
		for i := range entries {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return outcomes, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelCandidates)
	for i := range entries {
		g.Go(func() error { return run(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// evaluate tunes, refits and scores one candidate on a clone of its prototype.
func (e *Engine) evaluate(ctx context.Context, entry Entry, data splitData) (trial Trial, fitted model.Regressor, err error) {
	start := time.Now()
	logger := e.logger.With(log.CandidateKey, entry.Name)
	trial = Trial{Name: entry.Name, CVScore: math.NaN(), TrainScore: math.NaN(), TestScore: math.NaN()}

	var fits atomic.Int64
	defer func() {
		trial.Fits = fits.Load()
		trial.Duration = time.Since(start)
		if err != nil {
			logger.Error("Candidate failed", err, log.DurationMsKey, trial.Duration.Milliseconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationGridSearch, entry.Name, err)
	}

	est := entry.Prototype.Clone()
	if len(entry.Space) > 0 {
		gs := model_selection.NewGridSearchCV(countingRegressor{entry.Prototype, &fits}, entry.Space)
		gs.NJobs = e.nJobs
		gs.Logger = logger
		gs.ErrorScoreNaN = e.skipFailed
		if err := gs.Fit(ctx, data.XTrain, data.yTrain); err != nil {
			return trial, nil, errors.NewFitFailure(log.OperationGridSearch, entry.Name, err)
		}
		if err := est.SetParams(gs.BestParams); err != nil {
			return trial, nil, errors.NewFitFailure(log.OperationGridSearch, entry.Name, err)
		}
		trial.Searched = true
		trial.BestParams = gs.BestParams
		trial.CVScore = gs.BestScore
	}

	if err := ctx.Err(); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationFit, entry.Name, err)
	}
	fits.Add(1)
	if err := errors.SafeExecute(entry.Name+".Fit", func() error {
		return est.Fit(data.XTrain, data.yTrain)
	}); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationFit, entry.Name, err)
	}

	var trainPred, testPred mat.Matrix
	if err := errors.SafeExecute(entry.Name+".Predict", func() error {
		var perr error
		if trainPred, perr = est.Predict(data.XTrain); perr != nil {
			return perr
		}
		testPred, perr = est.Predict(data.XTest)
		return perr
	}); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationPredict, entry.Name, err)
	}

	if trial.TrainScore, err = metrics.R2ScoreMatrix(data.yTrain, trainPred); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationScore, entry.Name, err)
	}
	if trial.TestScore, err = metrics.R2ScoreMatrix(data.yTest, testPred); err != nil {
		return trial, nil, errors.NewFitFailure(log.OperationScore, entry.Name, err)
	}
	if trial.BestParams == nil {
		trial.BestParams = est.GetParams()
	}

	fields := []any{
		log.R2ScoreKey, trial.TestScore,
		log.TrainR2Key, trial.TrainScore,
		log.HyperParamsKey, trial.BestParams.String(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	}
	if trial.Searched {
		fields = append(fields, log.CVScoreKey, trial.CVScore)
	}
	logger.Info("Candidate evaluated", fields...)
	return trial, est, nil
}

func (e *Engine) record(name string, trial Trial, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.CandidatesTotal.WithLabelValues(name, status).Inc()
	e.metrics.CandidateDurationSeconds.WithLabelValues(name).Observe(trial.Duration.Seconds())
	e.metrics.FitsTotal.WithLabelValues(name).Add(float64(trial.Fits))
	if status == statusOK {
		e.metrics.TestR2.WithLabelValues(name).Set(trial.TestScore)
	}
}

func validateData(d splitData) error {
	trainRows, trainCols := d.XTrain.Dims()
	testRows, testCols := d.XTest.Dims()
	if trainRows == 0 || testRows == 0 || trainCols == 0 {
		return errors.ErrEmptyData
	}
	if r, _ := d.yTrain.Dims(); r != trainRows {
		return errors.NewDimensionError("select_best_model.y_train", trainRows, r, 0)
	}
	if r, _ := d.yTest.Dims(); r != testRows {
		return errors.NewDimensionError("select_best_model.y_test", testRows, r, 0)
	}
	if testCols != trainCols {
		return errors.NewDimensionError("select_best_model.X_test", trainCols, testCols, 1)
	}
	for _, m := range []struct {
		op string
		x  mat.Matrix
	}{
		{"select_best_model.X_train", d.XTrain},
		{"select_best_model.y_train", d.yTrain},
		{"select_best_model.X_test", d.XTest},
		{"select_best_model.y_test", d.yTest},
	} {
		if err := errors.CheckMatrix(m.op, m.x); err != nil {
			return err
		}
	}
	return nil
}

// countingRegressor counts the fits of every clone made during a search.
type countingRegressor struct {
	model.Regressor
	fits *atomic.Int64
}

func (c countingRegressor) Fit(X, y mat.Matrix) error {
	c.fits.Add(1)
	return c.Regressor.Fit(X, y)
}

func (c countingRegressor) Clone() model.Regressor {
	return countingRegressor{c.Regressor.Clone(), c.fits}
}
