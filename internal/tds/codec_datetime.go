package tds

import (
	"time"

	"github.com/golang-sql/civil"
)

// sqlEpoch1900 is the base date for legacy DATETIME/SMALLDATETIME day
// counts: 1900-01-01.
var sqlEpoch1900 = civil.Date{Year: 1900, Month: time.January, Day: 1}

// dateEpoch0001 is the base date for DATE/DATETIME2/DATETIMEOFFSET day
// counts: 0001-01-01 (MS-TDS 2.2.5.4.2).
var dateEpoch0001 = civil.Date{Year: 1, Month: time.January, Day: 1}

// decodeDateTime reads an 8-byte DATETIME: days since 1900-01-01
// (signed int32, may be negative for dates before 1900) followed by a
// tick count in 1/300ths of a second since midnight.
func decodeDateTime(r *byteReader) (time.Time, error) {
	days, err := r.int32()
	if err != nil {
		return time.Time{}, err
	}
	ticks, err := r.uint32()
	if err != nil {
		return time.Time{}, err
	}
	d := addDays(sqlEpoch1900, int(days))
	nanos := int64(ticks) * (1000000000 / 300)
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(nanos)), nil
}

// decodeSmallDateTime reads a 4-byte SMALLDATETIME: days since
// 1900-01-01 (unsigned uint16) and minutes since midnight.
func decodeSmallDateTime(r *byteReader) (time.Time, error) {
	days, err := r.uint16()
	if err != nil {
		return time.Time{}, err
	}
	mins, err := r.uint16()
	if err != nil {
		return time.Time{}, err
	}
	d := addDays(sqlEpoch1900, int(days))
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(mins) * time.Minute), nil
}

// decodeDateTimeN decodes the nullable legacy datetime family
// (DATETIMN): length 4 selects SMALLDATETIME, length 8 selects DATETIME.
func decodeDateTimeN(r *byteReader, length int) (any, error) {
	switch length {
	case 4:
		return decodeSmallDateTime(r)
	case 8:
		return decodeDateTime(r)
	default:
		return nil, &CodecError{Message: "tds: invalid DATETIMN length"}
	}
}

// decodeDate reads a 3-byte DATE: days since 0001-01-01, surfaced as a
// civil.Date so no spurious timezone is attached to a value that never
// had one on the wire.
func decodeDate(r *byteReader) (civil.Date, error) {
	b, err := r.take(3)
	if err != nil {
		return civil.Date{}, err
	}
	days := int(b[0]) | int(b[1])<<8 | int(b[2])<<16
	return addDays(dateEpoch0001, days), nil
}

// encodeDate writes a 3-byte DATE: days since 0001-01-01, LE.
func encodeDate(w *byteWriter, d civil.Date) {
	days := daysBetween(dateEpoch0001, d)
	w.writeByte(byte(days))
	w.writeByte(byte(days >> 8))
	w.writeByte(byte(days >> 16))
}

// daysBetween counts whole days from from to to using calendar
// arithmetic, matching addDays's inverse.
func daysBetween(from, to civil.Date) int {
	t1 := time.Date(from.Year, from.Month, from.Day, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(to.Year, to.Month, to.Day, 0, 0, 0, 0, time.UTC)
	return int((t2.Unix() - t1.Unix()) / 86400)
}

// decodeTimeN reads TIME(scale): 3-5 bytes encoding a fractional-second
// count since midnight, the byte count set by scaledTemporalSize.
func decodeTimeN(r *byteReader, scale byte) (civil.Time, error) {
	n := scaledTemporalSize(sqlTimeN, scale)
	ticks, err := readVarUint(r, n)
	if err != nil {
		return civil.Time{}, err
	}
	return ticksToTime(ticks, scale), nil
}

// decodeDateTime2N reads DATETIME2(scale): a TIME(scale) portion
// followed by a 3-byte DATE portion.
func decodeDateTime2N(r *byteReader, scale byte) (civil.DateTime, error) {
	timeBytes := scaledTemporalSize(sqlTimeN, scale)
	ticks, err := readVarUint(r, timeBytes)
	if err != nil {
		return civil.DateTime{}, err
	}
	date, err := decodeDate(r)
	if err != nil {
		return civil.DateTime{}, err
	}
	return civil.DateTime{Date: date, Time: ticksToTime(ticks, scale)}, nil
}

// decodeDateTimeOffsetN reads DATETIMEOFFSET(scale): a DATETIME2(scale)
// portion followed by a signed 2-byte offset in minutes from UTC. The
// result is a time.Time in the reported offset's fixed zone, since
// DATETIMEOFFSET is the one temporal type that does carry a real zone.
func decodeDateTimeOffsetN(r *byteReader, scale byte) (time.Time, error) {
	timeBytes := scaledTemporalSize(sqlTimeN, scale)
	ticks, err := readVarUint(r, timeBytes)
	if err != nil {
		return time.Time{}, err
	}
	date, err := decodeDate(r)
	if err != nil {
		return time.Time{}, err
	}
	offMin, err := r.int16()
	if err != nil {
		return time.Time{}, err
	}

	ct := ticksToTime(ticks, scale)
	loc := time.FixedZone("", int(offMin)*60)
	return time.Date(date.Year, date.Month, date.Day,
		ct.Hour, ct.Minute, ct.Second, ct.Nanosecond, loc), nil
}

// readVarUint reads an n-byte (3, 4, or 5) little-endian unsigned
// integer, the width scaledTemporalSize chose for this scale.
func readVarUint(r *byteReader, n int) (uint64, error) {
	b, err := r.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

// ticksToTime converts a fractional-second tick count (in units of
// 10^-scale seconds) since midnight into a civil.Time.
func ticksToTime(ticks uint64, scale byte) civil.Time {
	nanosPerTick := uint64(1)
	for i := byte(0); i < 9-scale; i++ {
		nanosPerTick *= 10
	}
	totalNanos := ticks * nanosPerTick
	const nanosPerSec = 1000000000
	secs := totalNanos / nanosPerSec
	nanos := totalNanos % nanosPerSec
	return civil.Time{
		Hour:       int(secs / 3600),
		Minute:     int((secs / 60) % 60),
		Second:     int(secs % 60),
		Nanosecond: int(nanos),
	}
}

// addDays adds n days to a civil.Date using time.Time's calendar
// arithmetic so month/year rollover is handled correctly.
func addDays(d civil.Date, n int) civil.Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return civil.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}
