/*
Package lightgbm provides a LightGBM-style gradient boosting regressor.

Features are pre-binned into histograms (at most MaxBin bins per feature) and
trees are grown leaf-wise: at every step the leaf with the largest split gain
is split, until NumLeaves leaves exist or no split improves the objective.
The larger child's histogram is obtained by subtracting the smaller sibling
from the parent.

	reg := lightgbm.NewLGBMRegressor().
		WithLearningRate(0.05).
		WithNumIterations(200)
	if err := reg.Fit(X, y); err != nil {
		return err
	}
	pred, err := reg.Predict(XTest)

Trees are stored as sklearn/tree.Tree values with raw-feature thresholds, so a
fitted model can be persisted with gob and used without the bin mapper.
*/
package lightgbm
