package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/metashare/internal/record"
	"github.com/roach88/metashare/internal/schema"
)

// encodeScalar converts a non-reference field value to its column value.
// Null and absent values encode as SQL NULL; required-ness is checked by
// the caller.
func encodeScalar(f schema.Field, v record.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	if _, ok := v.(record.Null); ok {
		return nil, nil
	}

	switch f.Kind {
	case schema.KindString:
		if s, ok := v.(record.String); ok {
			return string(s), nil
		}
	case schema.KindEnum:
		if s, ok := v.(record.String); ok {
			if !f.Allows(string(s)) {
				return nil, fmt.Errorf("value %q is not one of %v", s, f.Values)
			}
			return string(s), nil
		}
	case schema.KindInt:
		if n, ok := v.(record.Int); ok {
			return int64(n), nil
		}
	case schema.KindFloat:
		switch n := v.(type) {
		case record.Float:
			return float64(n), nil
		case record.Int:
			return float64(n), nil
		}
	case schema.KindTime:
		if t, ok := v.(record.Time); ok {
			return time.Time(t).UnixMilli(), nil
		}
	}
	return nil, fmt.Errorf("%T is not a valid %s value", v, f.Kind)
}

// decodeScalar converts a scanned column value back to a field value.
// SQL NULL decodes to nil so that the caller can omit the field.
func decodeScalar(f schema.Field, raw any) (record.Value, error) {
	if raw == nil {
		return nil, nil
	}

	switch f.Kind {
	case schema.KindString, schema.KindEnum:
		switch s := raw.(type) {
		case string:
			return record.String(s), nil
		case []byte:
			return record.String(s), nil
		}
	case schema.KindInt:
		if n, ok := raw.(int64); ok {
			return record.Int(n), nil
		}
	case schema.KindFloat:
		switch n := raw.(type) {
		case float64:
			return record.Float(n), nil
		case int64:
			return record.Float(n), nil
		}
	case schema.KindTime:
		if n, ok := raw.(int64); ok {
			return record.T(time.UnixMilli(n)), nil
		}
	}
	return nil, fmt.Errorf("column %s: unexpected %T for %s", f.Name, raw, f.Kind)
}

// marshalCust converts the custom blob to canonical JSON TEXT.
func marshalCust(cust record.Object) (string, error) {
	data, err := record.Marshal(cust)
	if err != nil {
		return "", fmt.Errorf("marshal cust: %w", err)
	}
	return string(data), nil
}

// unmarshalCust parses a stored custom blob.
func unmarshalCust(data string) (record.Object, error) {
	if data == "" {
		return record.Object{}, nil
	}
	obj, err := record.UnmarshalObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal cust: %w", err)
	}
	return obj, nil
}

// custFrom extracts the optional "cust" entry of an input object.
func custFrom(obj record.Object) (record.Object, bool, error) {
	v, ok := obj["cust"]
	if !ok {
		return nil, false, nil
	}
	switch c := v.(type) {
	case record.Object:
		return c, true, nil
	case record.Null:
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("cust must be an object, got %T", v)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
