// Package studentperf predicts a student's math score from demographic
// features and the other two exam scores.
//
// A training run splits the raw dataset, fits a preprocessor (median
// imputation and scaling for numeric columns, most-frequent imputation and
// one-hot encoding for categorical ones), tunes every candidate regressor
// with 3-fold cross-validated grid search, and keeps the candidate with the
// highest held-out R², provided it reaches 0.6.
//
// # Quick Start
//
//	studentperf train --config studentperf.yaml --plot artifacts/report.png
//	studentperf predict --input new_students.csv --output predictions.csv
//
// The selection engine can also be used directly:
//
//	res, err := selection.SelectBestModel(ctx, XTrain, yTrain, XTest, yTest,
//	    selection.DefaultRegistry(),
//	    selection.WithNJobs(0),
//	)
//	if err != nil {
//	    var gate *errors.NoAcceptableModelError
//	    if errors.As(err, &gate) {
//	        // every candidate scored below selection.MinScore
//	    }
//	    return err
//	}
//	fmt.Println(res.BestName, res.BestScore)
//
// # Packages
//
//   - selection: candidate registry, tuning and selection engine
//   - sklearn/model_selection: KFold, ParameterGrid, GridSearchCV
//   - sklearn/linear_model, sklearn/tree, sklearn/ensemble, sklearn/neighbors:
//     scikit-learn style regressors
//   - sklearn/lightgbm, sklearn/catboost: histogram and oblivious-tree boosting
//   - preprocessing: SimpleImputer, StandardScaler, OneHotEncoder, ColumnTransformer
//   - dataset: CSV frames and train/test splitting
//   - artifact: gob persistence to files or BadgerDB
//   - pipeline: ingestion, transformation, training and prediction stages
//   - report: bar chart of the selection report
//   - metrics: regression metrics (R², MSE, ...)
//   - core/model: estimator interfaces, parameters and fitted state
//   - core/parallel: parallel processing utilities
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Concurrency
//
// Grid search jobs, forest trees and (optionally) whole candidates run on
// bounded errgroups. Results are written to index-addressed slots, so the
// outcome does not depend on scheduling.
package studentperf
