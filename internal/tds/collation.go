package tds

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Collation is the 5-byte SQL_COLLATION structure attached to every
// character-typed column and parameter (MS-TDS 2.2.5.1.2).
type Collation struct {
	LCID          uint32 // low 20 bits of the first 4 bytes
	Flags         uint16 // next 12 bits of the first 4 bytes (ignoring case/width/kana/sensitivity split)
	SortID        byte   // 5th byte; non-zero selects a legacy sort order / code page directly
}

// decodeCollation reads a 5-byte SQL_COLLATION.
func decodeCollation(r *byteReader) (Collation, error) {
	b, err := r.take(5)
	if err != nil {
		return Collation{}, err
	}
	raw := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return Collation{
		LCID:   raw & 0x000FFFFF,
		Flags:  uint16((raw >> 20) & 0xFFF),
		SortID: b[4],
	}, nil
}

// Marshal serializes a Collation back to its 5-byte wire form.
func (c Collation) Marshal() []byte {
	raw := (c.LCID & 0x000FFFFF) | (uint32(c.Flags&0xFFF) << 20)
	return []byte{
		byte(raw), byte(raw >> 8), byte(raw >> 16), byte(raw >> 24), c.SortID,
	}
}

// sortIDCodePage maps legacy SortID values to a Windows code page
// (MS-TDS 2.2.5.1.2, collation.txt). Only the code pages actually
// reachable from the LCIDs in common use are listed. A non-zero SortID
// missing from this table decodes as code page 1252; the LCID table is
// consulted only when SortID is 0.
var sortIDCodePage = map[byte]int{
	30: 437, 31: 437, 32: 437, 33: 437, 34: 437,
	40: 850, 41: 850, 42: 850, 43: 850, 44: 850,
	50: 1252, 51: 1252, 52: 1252, 53: 1252, 54: 1252,
	55: 1250, 56: 1250, 57: 1250, 58: 1250, 59: 1250,
	60: 1251, 61: 1251, 62: 1251, 63: 1251, 64: 1251,
	80: 1253, 81: 1253, 82: 1253,
	90: 1254, 91: 1254, 92: 1254,
	105: 1255, 106: 1255,
	113: 1256, 114: 1256, 115: 1256,
	121: 1257, 122: 1257, 123: 1257,
}

// lcidCodePage maps the handful of LCIDs the core expects to encounter
// when no SortID is present (mirrors the scenario corpus's use of the
// default SQL Server collation, LCID 0x0409, English-US).
var lcidCodePage = map[uint32]int{
	0x0409: 1252, // en-US
	0x0809: 1252, // en-GB
	0x040C: 1252, // fr-FR
	0x0407: 1252, // de-DE
	0x0419: 1251, // ru-RU
	0x0411: 932,  // ja-JP (best-effort; CJK requires a DBCS decoder the core does not ship)
}

// charsetDecoder returns the narrow-charset decoder for this collation,
// defaulting to Windows-1252 (the SQL Server default) when the code
// page cannot be determined (spec Open Question: collation-to-charset
// mapping).
func (c Collation) charsetDecoder() *encoding.Decoder {
	cp := 1252
	if c.SortID != 0 {
		if v, ok := sortIDCodePage[c.SortID]; ok {
			cp = v
		}
	} else if v, ok := lcidCodePage[c.LCID]; ok {
		cp = v
	}

	cm := codePageCharmap(cp)
	if cm == nil {
		return nil
	}
	return cm.NewDecoder()
}

func codePageCharmap(cp int) *charmap.Charmap {
	switch cp {
	case 437:
		return charmap.CodePage437
	case 850:
		return charmap.CodePage850
	case 1250:
		return charmap.Windows1250
	case 1251:
		return charmap.Windows1251
	case 1252:
		return charmap.Windows1252
	case 1253:
		return charmap.Windows1253
	case 1254:
		return charmap.Windows1254
	case 1255:
		return charmap.Windows1255
	case 1256:
		return charmap.Windows1256
	case 1257:
		return charmap.Windows1257
	default:
		return nil
	}
}

// decodeNarrow decodes a narrow (single-byte, non-Unicode) character
// column's raw bytes using this collation's code page. If the code page
// is unmapped (e.g. a DBCS page this core does not ship), the bytes are
// returned as Latin-1, which is lossy but never errors.
func (c Collation) decodeNarrow(b []byte) string {
	dec := c.charsetDecoder()
	if dec == nil {
		runes := make([]rune, len(b))
		for i, v := range b {
			runes[i] = rune(v)
		}
		return string(runes)
	}
	out, err := dec.Bytes(b)
	if err != nil {
		runes := make([]rune, len(b))
		for i, v := range b {
			runes[i] = rune(v)
		}
		return string(runes)
	}
	return string(out)
}
