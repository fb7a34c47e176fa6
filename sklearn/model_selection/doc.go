// Package model_selection は交差検証とハイパーパラメータ探索を提供します。
//
// KFold は scikit-learn と同じ分割（先頭の n%k 個のフォールドが 1 件多い）を行い、
// GridSearchCV は (設定 × フォールド) のジョブを errgroup で並列に評価します。
// 結果はインデックス指定のスロットに格納されるため、並列度に関係なく
// 同じ入力からは同じ BestParams が得られます。
package model_selection
