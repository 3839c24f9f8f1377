package comm

import "math"

const (
	floatBias       = 1023
	floatMaxBiased  = 2046 // 2047 is reserved for Inf/NaN
	floatFracBits   = 52
	floatSubnormExp = floatBias + floatFracBits - 1 // 2^-1074 is the smallest step
)

// EncodeFloat64 encodes x into the 8-byte IEEE-754 binary64 layout
// used by the firmware (little-endian: significand first, sign last).
// The fields are computed arithmetically so the result doesn't depend
// on how the host stores floats.
func EncodeFloat64(x float64) (b [8]byte, err error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return b, ErrNotFinite
	}

	var sign uint64
	if math.Signbit(x) {
		sign = 1
	}
	a := math.Abs(x)

	var exp, frac uint64
	switch {
	case a == 0:
	case a < math.Ldexp(1, 1-floatBias):
		// subnormal: a = frac * 2^-1074
		frac = uint64(math.Ldexp(a, floatSubnormExp))
	default:
		exp = uint64(searchExponent(a))
		term := math.Ldexp(a, floatBias-int(exp)) // in [1, 2)
		frac = uint64(math.Ldexp(term-1, floatFracBits))
	}

	for i := 0; i < 6; i++ {
		b[i] = byte(frac)
		frac >>= 8
	}
	b[6] = byte(frac&0x0f) | byte(exp&0x0f)<<4
	b[7] = byte((exp>>4)&0x7f) | byte(sign<<7)
	return b, nil
}

// searchExponent finds the largest biased exponent e in [1, 2046]
// such that 2^(e-1023) <= a. a must be a normal positive number.
func searchExponent(a float64) int {
	lo, hi := 1, floatMaxBiased
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if math.Ldexp(1, mid-floatBias) <= a {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// DecodeFloat64 is the inverse of EncodeFloat64.
func DecodeFloat64(b [8]byte) float64 {
	var frac uint64
	for i := 5; i >= 0; i-- {
		frac = frac<<8 | uint64(b[i])
	}
	frac |= uint64(b[6]&0x0f) << 48
	exp := int(b[6]>>4) | int(b[7]&0x7f)<<4
	neg := b[7]&0x80 != 0

	var v float64
	switch exp {
	case 0:
		v = math.Ldexp(float64(frac), -floatSubnormExp)
	case floatMaxBiased + 1:
		if frac != 0 {
			return math.NaN()
		}
		v = math.Inf(1)
	default:
		v = math.Ldexp(1+math.Ldexp(float64(frac), -floatFracBits), exp-floatBias)
	}
	if neg {
		v = -v
	}
	return v
}

// AppendFloat64 appends the encoded form of x to dst.
func AppendFloat64(dst []byte, x float64) ([]byte, error) {
	b, err := EncodeFloat64(x)
	if err != nil {
		return dst, err
	}
	return append(dst, b[:]...), nil
}
