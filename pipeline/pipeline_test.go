package pipeline

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/studentperf/artifact"
	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/selection"
	"github.com/YuminosukeSato/studentperf/sklearn/linear_model"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

var (
	genders   = []string{"female", "male"}
	races     = []string{"group A", "group B", "group C", "group D", "group E"}
	education = []string{"some high school", "high school", "some college", "associate's degree", "bachelor's degree", "master's degree"}
	lunches   = []string{"standard", "free/reduced"}
	courses   = []string{"none", "completed"}
)

// writeStudents writes n synthetic students. With noise the math score is
// unrelated to every feature.
func writeStudents(t *testing.T, path string, n int, noise bool) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	var sb strings.Builder
	sb.WriteString("gender,race_ethnicity,parental_level_of_education,lunch,test_preparation_course,math_score,reading_score,writing_score\n")
	for i := 0; i < n; i++ {
		gender := genders[i%2]
		lunch := lunches[(i/2)%2]
		reading := 40 + float64((i*37)%60)
		writing := reading + float64((i*13)%11-5)
		math := 10 + 0.6*reading + 0.3*writing
		if lunch == "standard" {
			math += 5
		}
		if gender == "male" {
			math += 3
		}
		if noise {
			math = rng.Float64() * 100
		}
		fmt.Fprintf(&sb, "%s,%s,%s,%s,%s,%g,%g,%g\n",
			gender, races[i%5], education[i%6], lunch, courses[(i/3)%2], math, reading, writing)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataPath = filepath.Join(dir, "stud.csv")
	cfg.TrainPath = filepath.Join(dir, "artifacts", "train.csv")
	cfg.TestPath = filepath.Join(dir, "artifacts", "test.csv")
	cfg.ArtifactsDir = filepath.Join(dir, "artifacts")
	cfg.NJobs = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func smallRegistry(t *testing.T) *selection.Registry {
	t.Helper()
	reg := selection.NewRegistry()
	require.NoError(t, reg.Register("Linear Regression", linear_model.NewLinearRegression(), selection.SearchSpace{}))
	require.NoError(t, reg.Register("Decision Tree", tree.NewDecisionTreeRegressor(), selection.SearchSpace{
		"criterion": {"squared_error", "friedman_mse"},
	}))
	return reg
}

func prepare(t *testing.T, cfg Config, store artifact.Store, noise bool) *TransformedData {
	t.Helper()
	writeStudents(t, cfg.DataPath, 100, noise)

	train, test, err := (&DataIngestion{Config: cfg, Logger: log.NewNopLogger()}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80, train.Len())
	assert.Equal(t, 20, test.Len())

	data, err := (&DataTransformation{Config: cfg, Store: store, Logger: log.NewNopLogger()}).Run(context.Background())
	require.NoError(t, err)
	return data
}

func TestPipeline_TrainAndPredict(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := artifact.NewFileStore(cfg.ArtifactsDir)
	data := prepare(t, cfg, store, false)

	r, c := data.XTrain.Dims()
	assert.Equal(t, 80, r)
	assert.Equal(t, 2+2+5+6+2+2, c)
	assert.Equal(t, []string{"writing_score", "reading_score"}, data.FeatureNames[:2])

	logger, _ := log.NewTestLogger(log.LevelDebug)
	trainer := &ModelTrainer{Config: cfg, Store: store, Registry: smallRegistry(t), Logger: logger, RunID: "run-1"}
	res, err := trainer.Run(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, "Linear Regression", res.Artifact.Name)
	assert.Equal(t, "run-1", res.Artifact.RunID)
	assert.Greater(t, res.TestR2, 0.999)
	assert.InDelta(t, res.Artifact.Score, res.TestR2, 1e-12)
	assert.Equal(t, []string{"Linear Regression", "Decision Tree"}, res.Artifact.Report.Names())
	assert.True(t, logger.ContainsMessage("Best model found"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "Linear Regression"))
	assert.True(t, logger.ContainsField(log.RunIDKey, "run-1"))

	predictor, err := LoadPredictor(ctx, cfg, store, log.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "Linear Regression", predictor.Artifact.Name)

	test, err := dataset.ReadCSV(cfg.TestPath)
	require.NoError(t, err)
	got, err := predictor.Predict(test)
	require.NoError(t, err)
	want, err := test.Floats(cfg.Target)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)

	frame, err := RecordsFrame([]StudentRecord{{
		Gender:                   "male",
		RaceEthnicity:            "group B",
		ParentalLevelOfEducation: "some college",
		Lunch:                    "standard",
		TestPreparationCourse:    "none",
		ReadingScore:             60,
		WritingScore:             62,
	}})
	require.NoError(t, err)
	one, err := predictor.Predict(frame)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.InDelta(t, 10+0.6*60+0.3*62+5+3, one[0], 1e-6)
}

func TestPipeline_GateFailurePersistsNoModel(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := artifact.NewFileStore(cfg.ArtifactsDir)
	data := prepare(t, cfg, store, true)

	reg := selection.NewRegistry()
	require.NoError(t, reg.Register("Linear Regression", linear_model.NewLinearRegression(), selection.SearchSpace{}))

	_, err := (&ModelTrainer{Config: cfg, Store: store, Registry: reg, Logger: log.NewNopLogger()}).Run(ctx, data)
	var noModel *errors.NoAcceptableModelError
	require.True(t, errors.As(err, &noModel))
	assert.Equal(t, "Linear Regression", noModel.BestName)

	var art ModelArtifact
	err = store.Load(ctx, cfg.ModelKey, &art)
	assert.True(t, errors.Is(err, artifact.ErrNotFound))

	_, err = LoadPredictor(ctx, cfg, store, nil)
	var pf *errors.PersistenceFailure
	assert.True(t, errors.As(err, &pf))
}

func TestPipeline_BadgerStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store = StoreBadger
	store, err := cfg.OpenStore(log.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	data := prepare(t, cfg, store, false)
	reg := selection.NewRegistry()
	require.NoError(t, reg.Register("Linear Regression", linear_model.NewLinearRegression(), selection.SearchSpace{}))
	res, err := (&ModelTrainer{Config: cfg, Store: store, Registry: reg, Logger: log.NewNopLogger()}).Run(ctx, data)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Artifact.RunID)

	predictor, err := LoadPredictor(ctx, cfg, store, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Artifact.RunID, predictor.Artifact.RunID)
}

func TestRecordsFrame_Invalid(t *testing.T) {
	_, err := RecordsFrame([]StudentRecord{{Gender: "female", ReadingScore: 120}})
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("test_size: 0.3\nstore: badger\nscaling: minmax\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.TestSize)
	assert.Equal(t, StoreBadger, cfg.Store)
	assert.Equal(t, "math_score", cfg.Target)
	assert.Equal(t, "model.gob", cfg.ModelKey)

	cfg, err = LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(strings.NewReader("learning_rate: 0.1\n"))
	assert.Error(t, err)

	var verr *errors.ValidationError
	_, err = LoadConfig(strings.NewReader("test_size: 1.5\n"))
	assert.True(t, errors.As(err, &verr))
	_, err = LoadConfig(strings.NewReader("store: s3\n"))
	assert.True(t, errors.As(err, &verr))
	_, err = LoadConfig(strings.NewReader("numeric: [math_score]\n"))
	assert.True(t, errors.As(err, &verr))
}

func TestSplitTarget(t *testing.T) {
	frame, err := dataset.ParseCSV(strings.NewReader("a,math_score\n1,\n"))
	require.NoError(t, err)
	_, _, err = splitTarget(frame, "math_score")
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))
}
