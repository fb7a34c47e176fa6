// Package model defines the contract every regression estimator in studentperf
// satisfies, together with shared state, parameter and input helpers.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// ParamsAccessor はハイパーパラメータを公開・変更できるモデルのインターフェース
type ParamsAccessor interface {
	// GetParams はモデルのハイパーパラメータのコピーを返す
	GetParams() Params

	// SetParams はハイパーパラメータを設定する。未知の名前や不正な値はエラー。
	SetParams(params Params) error
}

// Regressor はモデル選択エンジンが扱う回帰モデルの統一インターフェース
//
// Clone は同じハイパーパラメータを持つ未学習の新しいインスタンスを返す。
// エンジンは登録されたプロトタイプを直接学習せず、必ず Clone してから
// SetParams → Fit を行う。
type Regressor interface {
	Fitter
	Predictor
	ParamsAccessor

	Clone() Regressor
}
