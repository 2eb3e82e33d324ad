package dval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FromJSON decodes JSON into an untyped Dval. Numbers without a fraction or
// exponent become DInt, other numbers DFloat. Strings stay DStr; use a
// table-aware coercion to turn them into IDs or dates.
func FromJSON(data []byte) (Dval, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromGo(raw)
}

// FromGo converts a decoded JSON or YAML value into a Dval.
func FromGo(v any) (Dval, error) {
	switch val := v.(type) {
	case nil:
		return DNull{}, nil
	case bool:
		return DBool(val), nil
	case string:
		return DStr(val), nil
	case int:
		return DInt(val), nil
	case int64:
		return DInt(val), nil
	case float64:
		return DFloat(val), nil
	case time.Time:
		return NewDate(val), nil
	case json.Number:
		s := string(val)
		if !strings.ContainsAny(s, ".eE") {
			n, err := val.Int64()
			if err != nil {
				return nil, fmt.Errorf("number out of int64 range: %s", val)
			}
			return DInt(n), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", val, err)
		}
		return DFloat(f), nil
	case []any:
		list := make(DList, len(val))
		for i, elem := range val {
			d, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			list[i] = d
		}
		return list, nil
	case map[string]any:
		obj := make(DObj, len(val))
		for k, elem := range val {
			d, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = d
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts v into plain Go values suitable for JSON or BSON encoding.
// IDs render as strings and dates as RFC 3339. Blocks, incomplete values and
// table handles have no data representation and are rejected.
func ToGo(v Dval) (any, error) {
	switch x := v.(type) {
	case DInt:
		return int64(x), nil
	case DFloat:
		return float64(x), nil
	case DBool:
		return bool(x), nil
	case DNull:
		return nil, nil
	case DChar:
		return string(rune(x)), nil
	case DStr:
		return string(x), nil
	case DID:
		return x.UUID().String(), nil
	case DDate:
		return x.Time().UTC().Format(time.RFC3339Nano), nil
	case DTitle:
		return string(x), nil
	case DURL:
		return string(x), nil
	case DList:
		out := make([]any, len(x))
		for i, el := range x {
			g, err := ToGo(el)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			out[i] = g
		}
		return out, nil
	case DObj:
		out := make(map[string]any, len(x))
		for k, el := range x {
			g, err := ToGo(el)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = g
		}
		return out, nil
	case DResponse:
		body, err := ToGo(x.Body)
		if err != nil {
			return nil, fmt.Errorf("response body: %w", err)
		}
		return map[string]any{"status": x.Meta.Status, "headers": x.Meta.Headers, "body": body}, nil
	default:
		return nil, fmt.Errorf("%s has no data representation", TipeOf(v))
	}
}

// MarshalJSON encodes v as JSON with sorted object keys.
func MarshalJSON(v Dval) ([]byte, error) {
	g, err := ToGo(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}
