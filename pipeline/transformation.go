package pipeline

import (
	"context"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/artifact"
	"github.com/YuminosukeSato/studentperf/dataset"
	"github.com/YuminosukeSato/studentperf/pkg/errors"
	"github.com/YuminosukeSato/studentperf/pkg/log"
	"github.com/YuminosukeSato/studentperf/preprocessing"
)

// TransformedData holds the model-ready matrices of one run.
type TransformedData struct {
	XTrain, YTrain *mat.Dense
	XTest, YTest   *mat.Dense
	FeatureNames   []string
}

// DataTransformation fits the preprocessor on the training file, applies it
// to both files and persists it under PreprocessorKey.
type DataTransformation struct {
	Config Config
	Store  artifact.Store
	Logger log.Logger
}

// Run executes the transformation stage.
func (d *DataTransformation) Run(ctx context.Context) (*TransformedData, error) {
	logger := loggerOr(d.Logger, "transformation")

	train, err := dataset.ReadCSV(d.Config.TrainPath)
	if err != nil {
		return nil, err
	}
	test, err := dataset.ReadCSV(d.Config.TestPath)
	if err != nil {
		return nil, err
	}
	logger.Info("Read train and test data completed",
		"train_samples", train.Len(),
		"test_samples", test.Len(),
	)

	XTrainFrame, yTrain, err := splitTarget(train, d.Config.Target)
	if err != nil {
		return nil, errors.Wrap(err, "train data")
	}
	XTestFrame, yTest, err := splitTarget(test, d.Config.Target)
	if err != nil {
		return nil, errors.Wrap(err, "test data")
	}

	pre := preprocessing.NewColumnTransformer(d.Config.Numeric, d.Config.Categorical)
	pre.Scaling = d.Config.Scaling
	XTrain, err := pre.FitTransform(XTrainFrame)
	if err != nil {
		return nil, errors.Wrap(err, "fit preprocessor")
	}
	XTest, err := pre.Transform(XTestFrame)
	if err != nil {
		return nil, errors.Wrap(err, "apply preprocessor")
	}
	names, err := pre.FeatureNames()
	if err != nil {
		return nil, err
	}
	_, nFeatures := XTrain.Dims()
	logger.Info("Applied preprocessing object on training and testing data",
		log.FeaturesKey, nFeatures,
		log.OperationKey, log.OperationTransform,
	)

	if err := d.Store.Save(ctx, d.Config.PreprocessorKey, pre); err != nil {
		return nil, err
	}
	logger.Info("Saved preprocessing object", "artifact.key", d.Config.PreprocessorKey)

	return &TransformedData{
		XTrain:       XTrain,
		YTrain:       yTrain,
		XTest:        XTest,
		YTest:        yTest,
		FeatureNames: names,
	}, nil
}

// splitTarget separates the target column. Missing targets are rejected.
func splitTarget(frame *dataset.Frame, target string) (*dataset.Frame, *mat.Dense, error) {
	y, err := frame.Floats(target)
	if err != nil {
		return nil, nil, err
	}
	if len(y) == 0 {
		return nil, nil, errors.WithStack(errors.ErrEmptyData)
	}
	for i, v := range y {
		if math.IsNaN(v) {
			return nil, nil, errors.NewValueError("pipeline.splitTarget",
				"missing target "+strconv.Quote(target)+" in row "+strconv.Itoa(i))
		}
	}
	X, err := frame.Drop(target)
	if err != nil {
		return nil, nil, err
	}
	return X, mat.NewDense(len(y), 1, y), nil
}
