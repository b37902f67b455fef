package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnyToType(t *testing.T) {
	type testCase struct {
		name     string
		input    any
		expected float64
		err      bool
	}

	testCases := []testCase{
		{name: "float", input: 1.5, expected: 1.5},
		{name: "int", input: 3, expected: 3},
		{name: "int64", input: int64(45658), expected: 45658},
		{name: "float32", input: float32(2), expected: 2},
		{name: "nil", input: nil, expected: 0},
		{name: "string", input: "1", err: true},
		{name: "bool", input: true, err: true},
		{name: "time", input: time.Now(), err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := AnyToType[float64](tc.input)
			if tc.err {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric(1))
	assert.True(t, IsNumeric(uint8(1)))
	assert.True(t, IsNumeric(2.5))
	assert.False(t, IsNumeric("2.5"))
	assert.False(t, IsNumeric(nil))
}

func TestValidate(t *testing.T) {
	type sample struct {
		Driver string `validate:"oneof=postgres rest memory"`
		Size   int    `validate:"min=1"`
	}

	_, err := Validate(sample{Driver: "rest", Size: 50})
	assert.NoError(t, err)

	_, err = Validate(sample{Driver: "mysql", Size: 0})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
	assert.Contains(t, err.Error(), "Size")
}
