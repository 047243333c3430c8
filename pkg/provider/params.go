package provider

// Canonical model parameter keys. Resolved configurations use these names
// regardless of backend; each adapter maps them to its native spelling.
const (
	ParamTemperature   = "temperature"
	ParamMaxTokens     = "maxTokens"
	ParamTopP          = "topP"
	ParamStopSequences = "stopSequences"
)

// RenameParameters maps canonical parameter names to backend-native ones
// using the given translation table. Keys without a table entry pass through
// unchanged, so operators can serve backend-specific parameters today that
// this package learns about later.
func RenameParameters(params map[string]any, table map[string]string) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for key, value := range params {
		if native, ok := table[key]; ok {
			out[native] = value
		} else {
			out[key] = value
		}
	}
	return out
}

// FloatParam extracts a numeric parameter. JSON payloads deliver numbers as
// float64; defaults written in Go may use int.
func FloatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// IntParam extracts an integer parameter.
func IntParam(params map[string]any, key string) (int, bool) {
	f, ok := FloatParam(params, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// StringParam extracts a string parameter.
func StringParam(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok
}

// StringsParam extracts a string list parameter, accepting both []string
// and the []any that JSON decoding produces.
func StringsParam(params map[string]any, key string) ([]string, bool) {
	switch v := params[key].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
