package duck

// toFloat widens DuckDB scalar values.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// toVector converts a numeric LIST or ARRAY value, or a numeric scalar as a
// one-element vector. Strings, structs and nested lists are not vectors.
func toVector(v any) ([]float64, bool) {
	if n, ok := toFloat(v); ok {
		return []float64{n}, true
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(list))
	for i, e := range list {
		n, ok := toFloat(e)
		if !ok {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// imageBytes extracts the encoded image from a {bytes, path} struct or a
// bare BLOB.
func imageBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case map[string]any:
		b, ok := x[imageBytesField].([]byte)
		return b, ok
	default:
		return nil, false
	}
}
