package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "full",
			err:  &Error{Kind: KindUnknownVariable, Op: "row.get", Name: "sal", Row: 3},
			want: `row.get: UnknownVariable "sal" (row 3)`,
		},
		{
			name: "message",
			err:  Errorf(KindDimensionMismatch, "array.declare", "a", "want %d elements, got %d", 4, 3),
			want: `array.declare: DimensionMismatch "a": want 4 elements, got 3`,
		},
		{
			name: "row annotation of a foreign error",
			err:  &Error{Row: 2, Err: errors.New("boom")},
			want: "boom (row 2)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKinds(t *testing.T) {
	inner := Errorf(KindIndexOutOfBounds, "array.resolve", "a", "index 5")
	wrapped := fmt.Errorf("step s: %w", &Error{Row: 4, Err: inner})

	assert.True(t, IsKind(wrapped, KindIndexOutOfBounds))
	assert.False(t, IsKind(wrapped, KindTypeError))
	assert.Equal(t, KindIndexOutOfBounds, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.ErrorIs(t, wrapped, ErrIndexOutOfBounds)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestWarning(t *testing.T) {
	w := Warnf(KindFormatError, "%d surplus initial values", 2)
	assert.Equal(t, "warning: FormatError: 2 surplus initial values", w.Error())
	assert.True(t, IsWarning(fmt.Errorf("retain: %w", w)))
	assert.False(t, IsWarning(Errorf(KindFormatError, "", "", "x")))
}
