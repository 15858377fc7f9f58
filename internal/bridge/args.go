package bridge

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

type undefined struct{}

// Undefined stands in for an argument the host did not supply at all, as
// opposed to an explicit null.
var Undefined any = undefined{}

// TypeName reports v using the host's typeof vocabulary.
func TypeName(v any) string {
	switch v.(type) {
	case undefined:
		return "undefined"
	case nil:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Func:
		return "function"
	default:
		return "object"
	}
}

// sequence converts any slice or array (other than raw bytes) to []any.
func sequence(v any) ([]any, bool) {
	switch v := v.(type) {
	case nil, undefined, string, []byte:
		return nil, false
	case []any:
		return v, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// flattenArgs turns host arguments into wire arguments. Sequence arguments
// are spread in place and string-keyed maps become key/value pairs in key
// order.
func flattenArgs(args []any) ([]any, error) {
	out := make([]any, 0, len(args))
	for _, arg := range args {
		if items, ok := sequence(arg); ok {
			for _, item := range items {
				wire, err := wireArg(item)
				if err != nil {
					return nil, err
				}
				out = append(out, wire)
			}
			continue
		}

		if fields, ok := arg.(map[string]any); ok {
			keys := make([]string, 0, len(fields))
			for key := range fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				wire, err := wireArg(fields[key])
				if err != nil {
					return nil, err
				}
				out = append(out, key, wire)
			}
			continue
		}

		wire, err := wireArg(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, wire)
	}
	return out, nil
}

func wireArg(v any) (any, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string, []byte:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case json.Number:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", v)
	}
}
