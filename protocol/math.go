package protocol

import "math/bits"

// BasisPoints is the denominator for fee and penalty rates.
const BasisPoints = 10000

// Add returns a+b or ErrOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b or ErrUnderflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrUnderflow
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow if the product does not fit in 64 bits.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// MulDiv returns floor(a*b/d). The product is held in 128 bits and the
// quotient must fit back into 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// ApplyBps returns amount*bps/10000, truncating.
func ApplyBps(amount uint64, bps uint16) (uint64, error) {
	return MulDiv(amount, uint64(bps), BasisPoints)
}

// AddUnits returns a+b for 16-bit unit counts or ErrOverflow.
func AddUnits(a, b uint16) (uint16, error) {
	sum := uint32(a) + uint32(b)
	if sum > 0xFFFF {
		return 0, ErrOverflow
	}
	return uint16(sum), nil
}
