// Package ensemble provides tree ensembles for regression: bagged random
// forests, stochastic gradient boosting and AdaBoost.R2.
//
// All estimators are built on sklearn/tree and satisfy model.Regressor. They
// are deterministic for a fixed RandomState.
package ensemble
