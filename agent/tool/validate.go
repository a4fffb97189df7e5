package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/arvidstrom/storeagent/agent/contract"
)

// StripNulls recursively removes nil values from maps and slices. Empty maps
// that result from stripping collapse to nil so downstream presence checks
// keep working.
func StripNulls(value any) any {
	switch v := value.(type) {
	case map[string]any:
		cleaned := make(map[string]any, len(v))
		for key, val := range v {
			if val == nil {
				continue
			}
			if stripped := StripNulls(val); stripped != nil {
				cleaned[key] = stripped
			}
		}
		if len(cleaned) == 0 {
			return nil
		}
		return cleaned
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, StripNulls(item))
		}
		return out
	default:
		return value
	}
}

// ValidateArgs checks raw backend-supplied arguments against the tool's
// parameter schema: required fields present, unknown fields rejected, types
// coerced where JSON decoding is lossy (numbers). Returns the cleaned args.
func ValidateArgs(def Definition, raw map[string]any) (map[string]any, error) {
	cleaned, _ := StripNulls(raw).(map[string]any)
	if cleaned == nil {
		cleaned = map[string]any{}
	}

	for name := range cleaned {
		if _, ok := def.Params[name]; !ok {
			return nil, fmt.Errorf("%w: tool %s does not accept argument %q", contractx.ErrValidation, def.Name, name)
		}
	}

	for _, name := range sortedParamNames(def.Params) {
		info := def.Params[name]
		val, present := cleaned[name]
		if !present {
			if info.Required {
				return nil, fmt.Errorf("%w: tool %s requires argument %q", contractx.ErrValidation, def.Name, name)
			}
			continue
		}
		coerced, err := coerce(name, info, val)
		if err != nil {
			return nil, err
		}
		cleaned[name] = coerced
	}

	return cleaned, nil
}

func coerce(name string, info *schema.ParameterInfo, val any) (any, error) {
	switch info.Type {
	case schema.String:
		s, ok := val.(string)
		if !ok {
			return nil, typeErr(name, "string", val)
		}
		if len(info.Enum) > 0 && !containsString(info.Enum, s) {
			return nil, fmt.Errorf("%w: argument %q must be one of %s", contractx.ErrValidation, name, strings.Join(info.Enum, ", "))
		}
		return s, nil
	case schema.Number:
		f, ok := toFloat(val)
		if !ok {
			return nil, typeErr(name, "number", val)
		}
		return f, nil
	case schema.Integer:
		f, ok := toFloat(val)
		if !ok || f != math.Trunc(f) {
			return nil, typeErr(name, "integer", val)
		}
		return int64(f), nil
	case schema.Boolean:
		b, ok := val.(bool)
		if !ok {
			return nil, typeErr(name, "boolean", val)
		}
		return b, nil
	case schema.Object:
		m, ok := val.(map[string]any)
		if !ok {
			return nil, typeErr(name, "object", val)
		}
		for sub, subInfo := range info.SubParams {
			subVal, present := m[sub]
			if !present {
				if subInfo.Required {
					return nil, fmt.Errorf("%w: argument %q requires field %q", contractx.ErrValidation, name, sub)
				}
				continue
			}
			coerced, err := coerce(name+"."+sub, subInfo, subVal)
			if err != nil {
				return nil, err
			}
			m[sub] = coerced
		}
		return m, nil
	case schema.Array:
		items, ok := val.([]any)
		if !ok {
			return nil, typeErr(name, "array", val)
		}
		if info.ElemInfo != nil {
			for i, item := range items {
				coerced, err := coerce(fmt.Sprintf("%s[%d]", name, i), info.ElemInfo, item)
				if err != nil {
					return nil, err
				}
				items[i] = coerced
			}
		}
		return items, nil
	default:
		return val, nil
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeErr(name, want string, got any) error {
	return fmt.Errorf("%w: argument %q must be a %s, got %T", contractx.ErrValidation, name, want, got)
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func sortedParamNames(params map[string]*schema.ParameterInfo) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
