// Package metrics は回帰モデルの評価指標を提供する。
// モデル選択エンジンの採点には R2ScoreMatrix を用いる。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	yt, yp, err := vecPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yt {
		diff := yt[i] - yp[i]
		sum += diff * diff
	}
	return sum / float64(len(yt)), nil
}

// MSEMatrix は n×1 行列形式の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yt, yp, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(mat.NewVecDense(len(yt), yt), mat.NewVecDense(len(yp), yp))
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	yt, yp, err := vecPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i := range yt {
		sum += math.Abs(yt[i] - yp[i])
	}
	return sum / float64(len(yt)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue の分散がゼロの場合は scikit-learn と同じく、完全予測なら 1.0、
// そうでなければ 0.0 を返し、UndefinedMetricWarning を発行する。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	yt, yp, err := vecPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(yt, yp), nil
}

// R2ScoreMatrix は n×1 行列形式の入力に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	yt, yp, err := columnPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(yt, yp), nil
}

func r2(yt, yp []float64) float64 {
	n := float64(len(yt))
	var yMean float64
	for _, v := range yt {
		yMean += v
	}
	yMean /= n

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yt {
		tss += (yt[i] - yMean) * (yt[i] - yMean)
		rss += (yt[i] - yp[i]) * (yt[i] - yp[i])
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R^2", "zero variance in y_true", result))
		return result
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss
}

// MAPE は平均絶対パーセンテージ誤差を計算する
// yTrue がゼロの要素は除外する。すべてゼロの場合は ValueError。
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	yt, yp, err := vecPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	var count int
	for i := range yt {
		if yt[i] == 0 {
			continue
		}
		sum += math.Abs((yt[i] - yp[i]) / yt[i])
		count++
	}
	if count == 0 {
		return 0, errors.NewValueError("MAPE", "all true values are zero")
	}
	return sum / float64(count) * 100, nil
}

func vecPair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue.IsEmpty() || yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.IsEmpty() || yPred.Len() != n {
		got := 0
		if !yPred.IsEmpty() {
			got = yPred.Len()
		}
		return nil, nil, errors.NewDimensionError(op, n, got, 0)
	}
	yt := make([]float64, n)
	yp := make([]float64, n)
	for i := 0; i < n; i++ {
		yt[i] = yTrue.AtVec(i)
		yp[i] = yPred.AtVec(i)
	}
	return yt, yp, nil
}

func columnPair(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}
