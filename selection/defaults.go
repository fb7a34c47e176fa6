package selection

import (
	"github.com/YuminosukeSato/studentperf/core/model"
	"github.com/YuminosukeSato/studentperf/sklearn/catboost"
	"github.com/YuminosukeSato/studentperf/sklearn/ensemble"
	"github.com/YuminosukeSato/studentperf/sklearn/lightgbm"
	"github.com/YuminosukeSato/studentperf/sklearn/linear_model"
	"github.com/YuminosukeSato/studentperf/sklearn/neighbors"
	"github.com/YuminosukeSato/studentperf/sklearn/tree"
)

// Algorithms resolves the algorithm names used in registry files.
var Algorithms = map[string]func() model.Regressor{
	"random_forest":     func() model.Regressor { return ensemble.NewRandomForestRegressor() },
	"decision_tree":     func() model.Regressor { return tree.NewDecisionTreeRegressor() },
	"gradient_boosting": func() model.Regressor { return ensemble.NewGradientBoostingRegressor() },
	"linear_regression": func() model.Regressor { return linear_model.NewLinearRegression() },
	"lightgbm":          func() model.Regressor { return lightgbm.NewLGBMRegressor() },
	"catboost":          func() model.Regressor { return catboost.NewCatBoostRegressor() },
	"adaboost":          func() model.Regressor { return ensemble.NewAdaBoostRegressor() },
	"kneighbors":        func() model.Regressor { return neighbors.NewKNeighborsRegressor() },
}

var estimatorCounts = []interface{}{8, 16, 32, 64, 128, 256}

// DefaultRegistry returns the eight student-performance candidates with their
// search spaces.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	must := func(name, algorithm string, space SearchSpace) {
		if err := r.Register(name, Algorithms[algorithm](), space); err != nil {
			panic(err)
		}
	}

	must("Random Forest", "random_forest", SearchSpace{
		"n_estimators": estimatorCounts,
	})
	must("Decision Tree", "decision_tree", SearchSpace{
		"criterion": {"squared_error", "friedman_mse", "absolute_error", "poisson"},
	})
	must("Gradient Boosting", "gradient_boosting", SearchSpace{
		"learning_rate": {0.1, 0.01, 0.05, 0.001},
		"subsample":     {0.6, 0.7, 0.75, 0.8, 0.85, 0.9},
		"n_estimators":  estimatorCounts,
	})
	must("Linear Regression", "linear_regression", SearchSpace{})
	must("LightGBM Regressor", "lightgbm", SearchSpace{
		"learning_rate": {0.1, 0.01, 0.05, 0.001},
		"n_estimators":  estimatorCounts,
	})
	must("CatBoost Regressor", "catboost", SearchSpace{
		"depth":         {6, 8, 10},
		"learning_rate": {0.01, 0.05, 0.1},
		"iterations":    {30, 50, 100},
	})
	must("AdaBoost Regressor", "adaboost", SearchSpace{
		"learning_rate": {0.1, 0.01, 0.5, 0.001},
		"n_estimators":  estimatorCounts,
	})
	must("KNeighbors Regressor", "kneighbors", SearchSpace{
		"n_neighbors": {5, 7, 9, 11},
	})
	return r
}
