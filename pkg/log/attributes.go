package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// CandidateKey is the registry identifier of a candidate, e.g. "Random Forest".
	CandidateKey = "selection.candidate"

	// CandidatesKey is the number of candidates in a selection run.
	CandidatesKey = "selection.candidates"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// RunIDKey identifies one training run of the pipeline.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	FoldKey     = "cv.fold"
	FoldsKey    = "cv.folds"
)

// Performance and scores.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	R2ScoreKey     = "metrics.r2_score"
	TrainR2Key     = "metrics.train_r2"
	CVScoreKey     = "metrics.cv_score"
	ThresholdKey   = "selection.threshold"
	ConfigsKey     = "grid.configurations"
	IterationKey   = "training.iteration"
	HyperParamsKey = "model.hyperparams"
)

// Error context.
const (
	// ErrorKey carries the error value of a failed operation.
	ErrorKey = "error"

	// StacktraceKey contains the stack trace recorded by cockroachdb/errors.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit        = "fit"
	OperationPredict    = "predict"
	OperationTransform  = "transform"
	OperationScore      = "score"
	OperationGridSearch = "grid_search"
	OperationSave       = "save"
	OperationLoad       = "load"
	OperationSelect     = "select"
)
