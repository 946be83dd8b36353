package tds

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// decodeDecimal reads a DECIMAL/NUMERIC value: one sign byte (0 =
// negative, 1 = positive) followed by up to four little-endian uint32
// limbs, least-significant limb first, forming the unscaled integer
// (MS-TDS 2.2.5.4.3/2.2.5.4.4).
func decodeDecimal(r *byteReader, length int, precision, scale byte) (decimal.Decimal, error) {
	signByte, err := r.byte()
	if err != nil {
		return decimal.Decimal{}, err
	}

	limbBytes := length - 1
	if limbBytes <= 0 || limbBytes%4 != 0 {
		return decimal.Decimal{}, &CodecError{Message: "tds: invalid DECIMAL/NUMERIC length"}
	}

	limbs, err := r.take(limbBytes)
	if err != nil {
		return decimal.Decimal{}, err
	}

	mag := new(big.Int)
	tmp := new(big.Int)
	for i := limbBytes/4 - 1; i >= 0; i-- {
		limb := uint32(limbs[i*4]) | uint32(limbs[i*4+1])<<8 | uint32(limbs[i*4+2])<<16 | uint32(limbs[i*4+3])<<24
		mag.Lsh(mag, 32)
		tmp.SetUint64(uint64(limb))
		mag.Or(mag, tmp)
	}

	if signByte == 0 {
		mag.Neg(mag)
	}

	return decimal.NewFromBigInt(mag, -int32(scale)), nil
}

// encodeDecimal encodes v as DECIMAL/NUMERIC at the given precision and
// scale, sizing the magnitude from the precision (4/8/12/16 bytes,
// MS-TDS 2.2.5.4.3) rather than from the value itself.
func encodeDecimal(w *byteWriter, v decimal.Decimal, precision, scale byte) {
	scaled := rescaleDecimal(v, -int32(scale))
	mag := new(big.Int).Set(scaled.Coefficient())
	neg := mag.Sign() < 0
	if neg {
		mag.Neg(mag)
	}

	limbBytes := decimalLimbBytes(precision)

	if neg {
		w.writeByte(0)
	} else {
		w.writeByte(1)
	}

	buf := make([]byte, limbBytes)
	bytes := mag.Bytes() // big-endian
	for i, b := range bytes {
		buf[len(bytes)-1-i] = b
	}
	w.writeBytes(buf)
}

// rescaleDecimal adjusts v's coefficient so its exponent equals exp,
// without rounding (the caller is expected to pass an exponent at
// least as precise as v's existing scale).
func rescaleDecimal(v decimal.Decimal, exp int32) decimal.Decimal {
	diff := exp - v.Exponent()
	coeff := new(big.Int).Set(v.Coefficient())
	switch {
	case diff > 0:
		coeff.Quo(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(diff)), nil))
	case diff < 0:
		coeff.Mul(coeff, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-diff)), nil))
	}
	return decimal.NewFromBigInt(coeff, exp)
}

func decimalLimbBytes(precision byte) int {
	switch {
	case precision <= 9:
		return 4
	case precision <= 19:
		return 8
	case precision <= 28:
		return 12
	default:
		return 16
	}
}
