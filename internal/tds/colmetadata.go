package tds

// ── COLMETADATA (MS-TDS 2.2.7.4) ────────────────────────────────────────

// ColumnFlags bits (MS-TDS 2.2.7.4).
const (
	ColFlagNullable     uint16 = 0x0001
	ColFlagIdentity     uint16 = 0x0010
	ColFlagComputed     uint16 = 0x0020
	ColFlagHidden       uint16 = 0x2000
	ColFlagKey          uint16 = 0x4000
)

// Column describes one result-set column's metadata.
type Column struct {
	UserType uint32
	Flags    uint16
	Type     *TypeInformation
	Name     string

	// TableName is populated only when the server flags this column
	// with TEXTPTR/table-valued metadata (rare outside FOR BROWSE
	// queries); left empty otherwise.
	TableName string
}

// Nullable reports whether the column accepts NULL.
func (c *Column) Nullable() bool {
	return c.Flags&ColFlagNullable != 0
}

// ColMetadata is the full COLMETADATA token: the column count followed
// by that many Column descriptions, valid until superseded by the next
// COLMETADATA token in the same response stream.
type ColMetadata struct {
	Columns []*Column
}

func decodeColMetadataToken(r *byteReader) (*ColMetadata, error) {
	count, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if count == 0xFFFF {
		// NoMetaData sentinel: the server declares zero columns and no
		// ROW tokens will follow for this statement.
		return &ColMetadata{}, nil
	}

	cols := make([]*Column, count)
	for i := range cols {
		col, err := decodeColumn(r)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return &ColMetadata{Columns: cols}, nil
}

func decodeColumn(r *byteReader) (*Column, error) {
	userType, err := r.uint32()
	if err != nil {
		return nil, err
	}
	flags, err := r.uint16()
	if err != nil {
		return nil, err
	}
	ti, err := decodeTypeInfo(r)
	if err != nil {
		return nil, err
	}

	col := &Column{UserType: userType, Flags: flags, Type: ti}

	if isTableValuedType(ti.ServerType) {
		tableName, err := r.usVarcharParts()
		if err != nil {
			return nil, err
		}
		col.TableName = tableName
	}

	name, err := r.bVarchar()
	if err != nil {
		return nil, err
	}
	col.Name = name

	return col, nil
}

func isTableValuedType(serverType byte) bool {
	return serverType == sqlText || serverType == sqlNText || serverType == sqlImage
}

// usVarcharParts reads TABLE_NAME: a count of US_VARCHAR name parts
// (almost always 1, the base table name) followed by that many parts,
// joined with '.'.
func (r *byteReader) usVarcharParts() (string, error) {
	numParts, err := r.byte()
	if err != nil {
		return "", err
	}
	var out string
	for i := byte(0); i < numParts; i++ {
		part, err := r.usVarchar()
		if err != nil {
			return "", err
		}
		if i > 0 {
			out += "."
		}
		out += part
	}
	return out, nil
}
