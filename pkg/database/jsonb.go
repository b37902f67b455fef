package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// JSONB writes any JSON-able value to a jsonb column.
type JSONB[T any] struct {
	Data T
}

func (p JSONB[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *JSONB[T]) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, &p.Data)
	case string:
		return json.Unmarshal([]byte(v), &p.Data)
	case nil:
		var zero T
		p.Data = zero
		return nil
	}
	return fmt.Errorf("JSONB.Scan: expected []byte, got %T", src)
}

type stringer interface {
	String() string
}

// ColumnValue converts a record value into something the driver accepts:
// maps and slices become jsonb and named string types plain strings.
func ColumnValue(v any) any {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case driver.Valuer, []byte, string, bool, int, int64, float64, time.Time:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return JSONB[any]{Data: v}
	case reflect.String:
		return rv.String()
	}
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return v
}

// ScanValue converts a scanned column back into a JSON-friendly value.
// jsonb arrives as bytes and is decoded; other byte values become text.
func ScanValue(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	s := string(b)
	if trimmed := strings.TrimSpace(s); strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
	}
	return s
}
