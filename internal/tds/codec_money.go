package tds

import "github.com/shopspring/decimal"

// MONEY and SMALLMONEY are fixed-point values scaled by 10000 (MS-TDS
// 2.2.5.4.1). The core surfaces them as decimal.Decimal rather than
// float64 so arithmetic on currency never drifts.
var moneyScale = int32(4)

// decodeMoney8 reads an 8-byte MONEY: a big int64 assembled from a
// high uint32 then a low uint32, both big-endian-adjacent within the
// little-endian value (MS-TDS 2.2.5.4.1 MONEY8).
func decodeMoney8(r *byteReader) (decimal.Decimal, error) {
	hi, err := r.uint32()
	if err != nil {
		return decimal.Decimal{}, err
	}
	lo, err := r.uint32()
	if err != nil {
		return decimal.Decimal{}, err
	}
	v := int64(uint64(hi)<<32 | uint64(lo))
	return decimal.New(v, -moneyScale), nil
}

// decodeSmallMoney reads a 4-byte SMALLMONEY.
func decodeSmallMoney(r *byteReader) (decimal.Decimal, error) {
	v, err := r.int32()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.New(int64(v), -moneyScale), nil
}

// decodeMoneyN decodes the nullable money family (MONEYN): length 4
// selects SMALLMONEY, length 8 selects MONEY.
func decodeMoneyN(r *byteReader, length int) (any, error) {
	switch length {
	case 4:
		return decodeSmallMoney(r)
	case 8:
		return decodeMoney8(r)
	default:
		return nil, &CodecError{Message: "tds: invalid MONEYN length"}
	}
}

// encodeMoney8 encodes a decimal.Decimal as an 8-byte MONEY value,
// scaling to the fixed 4-decimal-place wire representation.
func encodeMoney8(w *byteWriter, v decimal.Decimal) {
	scaled := v.Mul(decimal.New(1, moneyScale)).Round(0).IntPart()
	w.writeUint32(uint32(scaled >> 32))
	w.writeUint32(uint32(scaled))
}
