package normalizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	reDecimal = regexp.MustCompile(`^-?\d+(\.\d{1,2})?$`)
	optMoney  = []string{"subtotal", "tax", "tip", "total"} // optional only
)

// SanitizeOptionalFields removes or normalizes optional fields that don't
// meet the stricter schema, so a recoverable document can still validate.
// We only touch OPTIONALS.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	// currency: required overall; still normalize casing if present
	if v, ok := m["currency"].(string); ok {
		m["currency"] = strings.ToUpper(strings.TrimSpace(v))
	}

	for _, k := range optMoney {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k)
		case float64:
			m[k] = fmt.Sprintf("%.2f", t)
		case string:
			s := strings.TrimSpace(t)
			if s == "" || strings.EqualFold(s, "null") {
				delete(m, k)
				dropped = append(dropped, k)
				continue
			}
			if !reDecimal.MatchString(s) {
				// try parse and reformat
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					m[k] = fmt.Sprintf("%.2f", f)
				} else {
					delete(m, k)
					dropped = append(dropped, k)
				}
			} else {
				if f, err := strconv.ParseFloat(s, 64); err == nil {
					m[k] = fmt.Sprintf("%.2f", f)
				}
			}
		default:
			// unknown type -> drop
			delete(m, k)
			dropped = append(dropped, k)
		}
	}

	// item money fields arrive as raw numbers from sloppier models; coerce
	// them to the string shape the schema wants
	if items, ok := m["items"].([]any); ok {
		for _, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range []string{"quantity", "unit_price", "line_total"} {
				if f, ok := obj[k].(float64); ok {
					if k == "quantity" && f == float64(int64(f)) {
						obj[k] = strconv.FormatInt(int64(f), 10)
					} else {
						obj[k] = fmt.Sprintf("%.2f", f)
					}
				}
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}
