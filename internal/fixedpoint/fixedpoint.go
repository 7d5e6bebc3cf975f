// Package fixedpoint implements the Q16.16 signed fixed-point numeric type
// used throughout the deterministic simulation. Every physics constant and
// every entity coordinate is stored in this representation so that the
// same arithmetic produces the same bits on every platform.
package fixedpoint

import "errors"

// ErrDivideByZero is returned by Div when the divisor is zero.
var ErrDivideByZero = errors.New("fixedpoint: division by zero")

// FractionalBits is the number of bits reserved for the fractional part.
const FractionalBits = 16

// One is the fixed-point encoding of 1.0.
const One Fixed = 1 << FractionalBits

// Fixed is a Q16.16 fixed-point number: a signed 32-bit integer whose value
// is Raw/2^16. Arithmetic uses explicit two's-complement 32-bit semantics so
// that overflow wraps identically across platforms; saturation is not
// performed.
type Fixed int32

// FromRaw wraps a raw Q16.16 integer without conversion.
func FromRaw(raw int32) Fixed {
	return Fixed(raw)
}

// FromInt converts a whole integer to fixed-point.
func FromInt(v int32) Fixed {
	return Fixed(v << FractionalBits)
}

// FromFloat converts a floating value to fixed-point, truncating toward zero.
func FromFloat(v float64) Fixed {
	return Fixed(int32(v * float64(One)))
}

// Raw returns the underlying Q16.16 integer.
func (f Fixed) Raw() int32 {
	return int32(f)
}

// ToFloat converts back to a float64.
func (f Fixed) ToFloat() float64 {
	return float64(f) / float64(One)
}

// ToInt truncates toward zero and returns the integer part.
func (f Fixed) ToInt() int32 {
	return int32(f) / int32(One)
}

// Add returns f+other using wrapping 32-bit addition.
func (f Fixed) Add(other Fixed) Fixed {
	return Fixed(int32(f) + int32(other))
}

// Sub returns f-other using wrapping 32-bit subtraction.
func (f Fixed) Sub(other Fixed) Fixed {
	return Fixed(int32(f) - int32(other))
}

// Mul returns f*other with the standard Q16.16 renormalization (a*b)>>16.
func (f Fixed) Mul(other Fixed) Fixed {
	return Fixed((int64(f) * int64(other)) >> FractionalBits)
}

// MulInt multiplies by a raw scalar integer (raw*k, no shift).
func (f Fixed) MulInt(k int32) Fixed {
	return Fixed(int32(f) * k)
}

// Div returns f/other using the standard Q16.16 renormalization
// (a<<16)/b. Returns ErrDivideByZero if other is zero.
func (f Fixed) Div(other Fixed) (Fixed, error) {
	if other == 0 {
		return 0, ErrDivideByZero
	}
	return Fixed((int64(f) << FractionalBits) / int64(other)), nil
}

// Neg returns -f.
func (f Fixed) Neg() Fixed {
	return Fixed(-int32(f))
}

// Abs returns the absolute value of f.
func (f Fixed) Abs() Fixed {
	if f < 0 {
		return f.Neg()
	}
	return f
}

// Cmp returns -1, 0, or 1 as f is less than, equal to, or greater than other.
func (f Fixed) Cmp(other Fixed) int {
	switch {
	case f < other:
		return -1
	case f > other:
		return 1
	default:
		return 0
	}
}

// Less reports whether f < other.
func (f Fixed) Less(other Fixed) bool { return f < other }

// LessOrEqual reports whether f <= other.
func (f Fixed) LessOrEqual(other Fixed) bool { return f <= other }

// Greater reports whether f > other.
func (f Fixed) Greater(other Fixed) bool { return f > other }

// GreaterOrEqual reports whether f >= other.
func (f Fixed) GreaterOrEqual(other Fixed) bool { return f >= other }

// Clamp restricts f to the inclusive range [lo, hi].
func Clamp(f, lo, hi Fixed) Fixed {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Min returns the smaller of a and b.
func Min(a, b Fixed) Fixed {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Fixed) Fixed {
	if a > b {
		return a
	}
	return b
}
