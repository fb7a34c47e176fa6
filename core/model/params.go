package model

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/YuminosukeSato/studentperf/pkg/errors"
)

// Params はハイパーパラメータ名から値へのマッピング
type Params map[string]interface{}

// Copy は浅いコピーを返す
func (p Params) Copy() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys はパラメータ名を昇順で返す
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String はキー順に整列した表現を返す（ログ・レポート用）
func (p Params) String() string {
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%v", k, p[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// UnknownParamError は推定器が持たないパラメータ名を指定された場合のエラーを返す
func UnknownParamError(model, name string, value interface{}) error {
	return errors.NewValidationError(name, fmt.Sprintf("unknown parameter for %s", model), value)
}

// ToInt は設定値を int に変換する。YAML/JSON 由来の整数値の float64 も受け付ける。
func ToInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int(x), nil
		}
	case float32:
		if float64(x) == math.Trunc(float64(x)) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// ToFloat は設定値を float64 に変換する
func ToFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// ToString は設定値を string に変換する
func ToString(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(name, "must be a string", v)
}

// ToBool は設定値を bool に変換する
func ToBool(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(name, "must be a bool", v)
}

// PositiveInt は 1 以上の整数パラメータを検証付きで取り出す
func PositiveInt(name string, v interface{}) (int, error) {
	n, err := ToInt(name, v)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.NewValidationError(name, "must be >= 1", v)
	}
	return n, nil
}

// UnitInterval は (0, 1] に収まる実数パラメータを検証付きで取り出す
func UnitInterval(name string, v interface{}) (float64, error) {
	f, err := ToFloat(name, v)
	if err != nil {
		return 0, err
	}
	if !(f > 0 && f <= 1) {
		return 0, errors.NewValidationError(name, "must be in (0, 1]", v)
	}
	return f, nil
}

// PositiveFloat は 0 より大きい実数パラメータを検証付きで取り出す
func PositiveFloat(name string, v interface{}) (float64, error) {
	f, err := ToFloat(name, v)
	if err != nil {
		return 0, err
	}
	if !(f > 0) || math.IsInf(f, 0) {
		return 0, errors.NewValidationError(name, "must be > 0", v)
	}
	return f, nil
}
