package codec

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrZonedTime is returned when encoding a time of day that carries a zone:
// ISO-8601 has no unambiguous form for it without a date.
var ErrZonedTime = errors.New("cannot encode a zone-aware time of day")

// OffsetTime is a wall-clock time of day bound to a location but not to a date.
// It exists so callers can express the value; encoding it always fails.
type OffsetTime struct {
	Time     civil.Time
	Location *time.Location
}

// FormatDateTime renders t as extended ISO-8601 with millisecond precision.
// A zero fraction is omitted and a zero UTC offset is written as "Z".
func FormatDateTime(t time.Time) string {
	s := t.Format("2006-01-02T15:04:05") + millis(t.Nanosecond())
	if _, offset := t.Zone(); offset == 0 {
		return s + "Z"
	}
	return s + t.Format("-07:00")
}

// FormatTime renders a naive time of day as HH:MM:SS[.mmm].
func FormatTime(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second) + millis(t.Nanosecond)
}

func millis(nanos int) string {
	if nanos == 0 {
		return ""
	}
	return fmt.Sprintf(".%03d", nanos/int(time.Millisecond))
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// normalize converts extended values into JSON-native ones, descending into
// maps, slices, pointers and struct fields.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return FormatDateTime(val), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return FormatDateTime(*val), nil
	case civil.DateTime:
		return val.Date.String() + "T" + FormatTime(val.Time), nil
	case civil.Date:
		return val.String(), nil
	case civil.Time:
		return FormatTime(val), nil
	case OffsetTime, *OffsetTime:
		return nil, ErrZonedTime
	case decimal.Decimal:
		return val.String(), nil
	case *decimal.Decimal:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case *big.Int:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case uuid.UUID:
		return val.String(), nil
	case *uuid.UUID:
		if val == nil {
			return nil, nil
		}
		return val.String(), nil
	case map[string]any:
		return normalizeMap(val)
	case []any:
		return normalizeSlice(reflect.ValueOf(val))
	case []byte, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return val, nil
	}

	// Types with their own JSON form keep it.
	switch v.(type) {
	case json.Marshaler, encoding.TextMarshaler:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem().Interface())
	case reflect.Struct:
		return normalizeStruct(rv)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nv, err := normalize(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = nv
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		return normalizeSlice(rv)
	}

	return v, nil
}

func normalizeSlice(rv reflect.Value) ([]any, error) {
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		nv, err := normalize(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = nv
	}
	return out, nil
}

// normalizeStruct renders exported fields under their json tag names,
// honoring "-" and omitempty. Embedded structs without a tag are flattened
// and their fields lose to same-named outer fields.
func normalizeStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	promoted := map[string]any{}

	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		embeddedStruct := f.Anonymous && f.Type.Kind() == reflect.Struct
		if !f.IsExported() && !embeddedStruct {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)

		if f.Anonymous && name == "" {
			inner := fv
			if inner.Kind() == reflect.Pointer {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && !hasOwnJSON(inner.Type()) {
				embedded, err := normalizeStruct(inner)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", f.Name, err)
				}
				for k, v := range embedded {
					if _, ok := promoted[k]; !ok {
						promoted[k] = v
					}
				}
				continue
			}
		}

		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		if strings.Contains(","+opts+",", ",omitempty,") && isEmptyValue(fv) {
			continue
		}
		nv, err := normalize(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out[name] = nv
	}

	for k, v := range promoted {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out, nil
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

func hasOwnJSON(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType)
}

// isEmptyValue mirrors encoding/json's omitempty rule.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}
