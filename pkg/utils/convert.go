package utils

import (
	"fmt"
	"reflect"
)

// AnyToType converts input to T by assertion or, for numeric kinds, by
// reflection. It never converts between strings and numbers.
func AnyToType[T any](input any) (T, error) {
	var zero T
	if input == nil {
		return zero, nil
	}

	if result, ok := input.(T); ok {
		return result, nil
	}

	targetType := reflect.TypeOf(zero)
	if targetType == nil {
		return zero, fmt.Errorf("type mismatch: expected %T, got %T", zero, input)
	}

	inputValue := reflect.ValueOf(input)
	if isNumericKind(inputValue.Kind()) && isNumericKind(targetType.Kind()) && inputValue.Type().ConvertibleTo(targetType) {
		if result, ok := inputValue.Convert(targetType).Interface().(T); ok {
			return result, nil
		}
	}

	return zero, fmt.Errorf("type mismatch: expected %T, got %T", zero, input)
}

// IsNumeric reports whether v holds a Go numeric kind.
func IsNumeric(v any) bool {
	if v == nil {
		return false
	}
	return isNumericKind(reflect.ValueOf(v).Kind())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
