/*
Package selection tunes a registry of candidate regressors and picks the best.

For every candidate, in registration order, the engine

 1. grid-searches the candidate's search space with 3-fold cross-validation
    (an empty space skips the search and keeps the defaults),
 2. refits the winning configuration on the whole training set,
 3. scores it on the held-out test set with R².

The winner is the first candidate whose test R² equals the maximum. A winner
scoring below MinScore is rejected with a NoAcceptableModelError.

	res, err := selection.SelectBestModel(ctx, XTrain, yTrain, XTest, yTest,
		selection.DefaultRegistry(),
		selection.WithLogger(logger),
		selection.WithNJobs(4),
	)

The registry and its prototypes are never fitted or modified: every fit runs
on a clone.
*/
package selection
