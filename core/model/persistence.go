package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// SaveModelToWriter はモデルをgobでio.Writerに保存する
//
// インターフェース型（Regressor など）を含む値を保存する場合、具象型は
// 各推定器パッケージの init で gob.Register されている必要がある。
//
// 使用例:
//
//	var buf bytes.Buffer
//	err := model.SaveModelToWriter(&buf, artifact)
func SaveModelToWriter(w io.Writer, v interface{}) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
//
// パラメータ:
//   - r: 読み込み元のReader
//   - v: 読み込み先（ポインタ）
func LoadModelFromReader(r io.Reader, v interface{}) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
