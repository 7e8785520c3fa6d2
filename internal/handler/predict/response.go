package predict

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"

	perrors "github.com/Meesho/BharatMLStack/predict-server/internal/errors"
	"github.com/Meesho/BharatMLStack/predict-server/internal/predictor"
)

type Response struct {
	Prediction [][]any `json:"prediction"`
}

// Serialize converts predictor rows into JSON-ready rows. Numeric text becomes a
// JSON number; values with no JSON representation fail with SerializationFailure.
func Serialize(res *predictor.Result) (*Response, error) {
	if res == nil || len(res.Rows) == 0 {
		return nil, perrors.Newf(perrors.KindSerializationFailure, "predictor returned no predictions")
	}
	rows := make([][]any, len(res.Rows))
	for i, row := range res.Rows {
		out := make([]any, len(row))
		for j, v := range row {
			jv, err := toJSONValue(v)
			if err != nil {
				return nil, perrors.Wrapf(perrors.KindSerializationFailure, err, "row %d column %d", i, j)
			}
			out[j] = jv
		}
		rows[i] = out
	}
	return &Response{Prediction: rows}, nil
}

func toJSONValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return t, nil
	case string:
		if isJSONNumber(t) {
			return json.Number(t), nil
		}
		return t, nil
	case json.Number:
		if !isJSONNumber(string(t)) {
			return nil, perrors.Newf(perrors.KindSerializationFailure, "invalid number %q", string(t))
		}
		return t, nil
	case float32:
		return checkFloat(float64(t))
	case float64:
		return checkFloat(t)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, perrors.Newf(perrors.KindSerializationFailure, "unsupported value of type %T", v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		jv, err := toJSONValue(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = jv
	}
	return out, nil
}

func checkFloat(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, perrors.Newf(perrors.KindSerializationFailure, "non-finite number %v", f)
	}
	return f, nil
}

// isJSONNumber reports whether s is exactly one JSON number literal.
func isJSONNumber(s string) bool {
	if s == "" || strings.TrimSpace(s) != s {
		return false
	}
	if c := s[0]; c != '-' && (c < '0' || c > '9') {
		return false
	}
	var n json.Number
	return json.Unmarshal([]byte(s), &n) == nil
}
