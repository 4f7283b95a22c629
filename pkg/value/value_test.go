package value

import (
	"math"
	"testing"
	"time"

	"github.com/leapstack-labs/leapstep/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNum_NaNIsMissing(t *testing.T) {
	assert.True(t, Num(math.NaN()).IsMissing())
	assert.True(t, Num(math.Inf(1)).IsMissing())
	assert.False(t, Num(0).IsMissing())
}

func TestChar_EmptyIsNotMissing(t *testing.T) {
	empty := Char("")
	missing := MissingOf(Character)

	assert.False(t, empty.IsMissing())
	assert.True(t, missing.IsMissing())
	assert.Equal(t, Character, missing.Kind())
	assert.Equal(t, "", missing.Str())
	assert.Equal(t, ".", missing.String())
	assert.Equal(t, "", empty.String())
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"missing before negative", Missing(), Num(-1e9), -1},
		{"missing equals missing", Missing(), MissingOf(Character), 0},
		{"numbers", Num(1), Num(2), -1},
		{"equal numbers", Num(2.5), Num(2.5), 0},
		{"strings bytewise", Char("B"), Char("a"), -1},
		{"number before string", Num(100), Char("0"), -1},
		{"string after missing", Char(""), Missing(), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func(a, b Value) (Value, error)
		a, b Value
		want Value
	}{
		{"add", Add, Num(1), Num(2), Num(3)},
		{"sub", Sub, Num(1), Num(2), Num(-1)},
		{"mul", Mul, Num(3), Num(4), Num(12)},
		{"div", Div, Num(1), Num(4), Num(0.25)},
		{"div by zero", Div, Num(1), Num(0), Missing()},
		{"missing left", Add, Missing(), Num(2), Missing()},
		{"missing right", Mul, Num(2), Missing(), Missing()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "want %v got %v", tt.want, got)
			assert.Equal(t, tt.want.IsMissing(), got.IsMissing())
		})
	}
}

func TestArithmetic_CharacterIsTypeError(t *testing.T) {
	_, err := Add(Char("1"), Num(2))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTypeError))
	assert.ErrorIs(t, err, core.ErrTypeError)

	_, err = Neg(Char("x"))
	assert.True(t, core.IsKind(err, core.KindTypeError))
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		opts DisplayOptions
		want string
	}{
		{"integer trims", Num(150), DefaultDisplay, "150"},
		{"third rounds", Num(1.0 / 3), DefaultDisplay, "0.33"},
		{"keep zeros", Num(150), DisplayOptions{Decimals: 2}, "150.00"},
		{"zero decimals", Num(2.5), DisplayOptions{Decimals: 0}, "2"},
		{"negative zero", Num(-0.001), DefaultDisplay, "0"},
		{"negative", Num(-12.5), DefaultDisplay, "-12.5"},
		{"missing", Missing(), DefaultDisplay, "."},
		{"string raw", Char("  HR "), DefaultDisplay, "  HR "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Display(tt.opts))
		})
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name    string
		in      Value
		want    Value
		wantErr bool
	}{
		{"numeric passthrough", Num(4), Num(4), false},
		{"numeric string", Char(" 42.5 "), Num(42.5), false},
		{"empty string", Char(""), Missing(), false},
		{"dot", Char("."), Missing(), false},
		{"missing", MissingOf(Character), Missing(), false},
		{"garbage", Char("abc"), Missing(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsKind(err, core.KindTypeError))
				return
			}
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got))
			assert.Equal(t, Numeric, got.Kind())
		})
	}
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(int64(7))
	require.NoError(t, err)
	assert.True(t, Equal(Num(7), v))

	v, err = FromAny([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", v.Str())

	v, err = FromAny(nil)
	require.NoError(t, err)
	assert.True(t, v.IsMissing())

	_, err = FromAny(struct{}{})
	assert.True(t, core.IsKind(err, core.KindTypeError))
}

func TestTimeRoundTrip(t *testing.T) {
	d := time.Date(2024, time.March, 15, 13, 45, 0, 0, time.UTC)
	v := FromTime(d)

	f, ok := v.Float()
	require.True(t, ok)
	assert.Equal(t, 23450.0, f)

	back, ok := v.Time()
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", back.Format("2006-01-02"))
}

func TestIsTrueAndSameKind(t *testing.T) {
	assert.True(t, Num(2).IsTrue())
	assert.False(t, Num(0).IsTrue())
	assert.True(t, Char("y").IsTrue())
	assert.False(t, Char("").IsTrue())
	assert.False(t, Missing().IsTrue())

	assert.True(t, SameKind(Num(1), Num(2)))
	assert.True(t, SameKind(Missing(), Char("a")))
	assert.False(t, SameKind(Num(1), Char("1")))
}
