// Package catboost implements a CatBoost-style regressor: symmetric (oblivious)
// trees over quantized features, with ordered target statistics for categorical
// columns.
//
// Every level of an oblivious tree applies the same (feature, border) test to
// all nodes, so a tree of depth d is d tests plus 2^d leaf values and a row's
// leaf is the bit pattern of its test results.
package catboost
