package pipeline

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/artifact"
	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/preprocessing"
)

// Predictor applies the persisted preprocessor and model to new records.
type Predictor struct {
	Preprocessor *preprocessing.ColumnTransformer
	Artifact     *ModelArtifact
	Logger       log.Logger
}

// LoadPredictor loads both artifacts named by cfg from store.
func LoadPredictor(ctx context.Context, cfg Config, store artifact.Store, logger log.Logger) (*Predictor, error) {
	pre := &preprocessing.ColumnTransformer{}
	if err := store.Load(ctx, cfg.PreprocessorKey, pre); err != nil {
		return nil, err
	}
	art := &ModelArtifact{}
	if err := store.Load(ctx, cfg.ModelKey, art); err != nil {
		return nil, err
	}
	if art.Model == nil {
		return nil, errors.NewPersistenceFailure(artifact.OpLoad, cfg.ModelKey, errors.New("artifact holds no model"))
	}
	l := loggerOr(logger, "predictor")
	l.Debug("Loaded artifacts",
		log.ModelNameKey, art.Name,
		log.RunIDKey, art.RunID,
		log.R2ScoreKey, art.Score,
	)
	return &Predictor{Preprocessor: pre, Artifact: art, Logger: l}, nil
}

// Predict transforms frame and returns one prediction per record. Columns
// other than the configured features (the target included) are ignored.
func (p *Predictor) Predict(frame *dataset.Frame) ([]float64, error) {
	X, err := p.Preprocessor.Transform(frame)
	if err != nil {
		return nil, errors.Wrap(err, "transform input")
	}
	var pred mat.Matrix
	if err := errors.SafeExecute(p.Artifact.Name+".Predict", func() error {
		var perr error
		pred, perr = p.Artifact.Model.Predict(X)
		return perr
	}); err != nil {
		return nil, errors.NewFitFailure(log.OperationPredict, p.Artifact.Name, err)
	}
	out := model.Column(pred)
	if p.Logger != nil {
		p.Logger.Info("Predicted", log.SamplesKey, len(out), log.ModelNameKey, p.Artifact.Name)
	}
	return out, nil
}

// StudentRecord is one input row of the student-performance dataset.
type StudentRecord struct {
	Gender                   string  `json:"gender" validate:"required"`
	RaceEthnicity            string  `json:"race_ethnicity" validate:"required"`
	ParentalLevelOfEducation string  `json:"parental_level_of_education" validate:"required"`
	Lunch                    string  `json:"lunch" validate:"required"`
	TestPreparationCourse    string  `json:"test_preparation_course" validate:"required"`
	ReadingScore             float64 `json:"reading_score" validate:"gte=0,lte=100"`
	WritingScore             float64 `json:"writing_score" validate:"gte=0,lte=100"`
}

var recordValidate = validator.New()

// RecordsFrame validates records and lays them out with the dataset's column names.
func RecordsFrame(records []StudentRecord) (*dataset.Frame, error) {
	header := []string{
		"gender",
		"race_ethnicity",
		"parental_level_of_education",
		"lunch",
		"test_preparation_course",
		"reading_score",
		"writing_score",
	}
	rows := make([][]string, len(records))
	for i, r := range records {
		if err := recordValidate.Struct(r); err != nil {
			return nil, errors.NewValidationError("record "+strconv.Itoa(i), err.Error(), r)
		}
		rows[i] = []string{
			r.Gender,
			r.RaceEthnicity,
			r.ParentalLevelOfEducation,
			r.Lunch,
			r.TestPreparationCourse,
			strconv.FormatFloat(r.ReadingScore, 'g', -1, 64),
			strconv.FormatFloat(r.WritingScore, 'g', -1, 64),
		}
	}
	return dataset.NewFrame(header, rows)
}
