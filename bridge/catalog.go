package bridge

import "github.com/tomyedwab/sqlbridge/engine"

var typeNames = map[int]string{
	engine.Character:         "CHARACTER",
	engine.CharacterVarying:  "CHARACTER VARYING",
	engine.Nchar:             "NCHAR",
	engine.NcharVarying:      "NCHAR VARYING",
	engine.UTF8:              "NVARCHAR",
	engine.Decimal:           "DECIMAL",
	engine.Numeric:           "NUMERIC",
	engine.Integer:           "INTEGER",
	engine.UnsignedInteger:   "INTEGER",
	engine.TInteger:          "INTEGER",
	engine.TUnsignedInteger:  "INTEGER",
	engine.TSmallint:         "SMALLINT",
	engine.TUnsignedSmallint: "SMALLINT",
	engine.TBigint:           "BIGINT",
	engine.TUnsignedBigint:   "BIGINT",
	engine.Float:             "FLOAT",
	engine.TFloat:            "FLOAT",
	engine.TReal:             "REAL",
	engine.TDouble:           "DOUBLE PRECISION",
	engine.Boolean:           "BOOLEAN",
	engine.Date:              "DATE",
	engine.Time:              "TIME",
	engine.Timestamp:         "TIMESTAMP",
	engine.Binary:            "BINARY",
	engine.BinaryVarying:     "BINARY VARYING",
	engine.Blob:              "BLOB",
	engine.Clob:              "CLOB",
	engine.Nclob:             "NCLOB",
	engine.BlobLocator:       "BLOB",
	engine.ClobLocator:       "CLOB",
	engine.NclobLocator:      "NCLOB",
	engine.UUID:              "UUID",

	engine.NativeSmallint:         "SMALLINT",
	engine.NativeSmallintNullable: "SMALLINT",
	engine.NativeInteger:          "INTEGER",
	engine.NativeIntegerNullable:  "INTEGER",
	engine.NativeBigint:           "BIGINT",
	engine.NativeBigintNullable:   "BIGINT",
	engine.NativeReal:             "REAL",
	engine.NativeRealNullable:     "REAL",
	engine.NativeDouble:           "DOUBLE PRECISION",
	engine.NativeDoubleNullable:   "DOUBLE PRECISION",
	engine.NativeBlob:             "BLOB",
	engine.NativeBlobLocator:      "BLOB",
	engine.NativeClob:             "CLOB",
	engine.NativeClobLocator:      "CLOB",
	engine.NativeNclob:            "NCLOB",
	engine.NativeNclobLocator:     "NCLOB",
}

// TypeName maps a raw engine type code to its SQL type name. The sign of the
// code is ignored.
func TypeName(code int) string {
	if code < 0 {
		code = -code
	}
	if name, ok := typeNames[code]; ok {
		return name
	}
	if code >= engine.IntervalYear && code <= engine.IntervalMinuteToSecond {
		return "INTERVAL"
	}
	return "UNKNOWN"
}

// Nullable applies the engine's nullability rule to a raw type code: negative
// generic codes are nullable, and native fixed-width types are nullable when
// they carry the NULLABLE member of their pair.
func Nullable(code int) bool {
	if code < 0 {
		return true
	}
	switch code {
	case engine.NativeSmallintNullable,
		engine.NativeIntegerNullable,
		engine.NativeBigintNullable,
		engine.NativeRealNullable,
		engine.NativeDoubleNullable:
		return true
	}
	return false
}

// ColumnMetadata describes one result column. It is captured once when a
// cursor is opened and never changes afterwards.
type ColumnMetadata struct {
	Name     string `json:"name"`
	TypeCode int    `json:"dataTypeCode"`
	TypeName string `json:"dataTypeName"`
	Nullable bool   `json:"nullable"`
}

func newColumnMetadata(name string, code int) ColumnMetadata {
	return ColumnMetadata{
		Name:     name,
		TypeCode: code,
		TypeName: TypeName(code),
		Nullable: Nullable(code),
	}
}

// describeColumns reads the name and type of every result column of stmt.
func describeColumns(sess engine.Session, stmt engine.Statement, count int) ([]ColumnMetadata, error) {
	cols := make([]ColumnMetadata, count)
	for col := 1; col <= count; col++ {
		name, err := stmt.ColumnName(col)
		if err != nil {
			return nil, engineError(KindEngine, "ColumnName", sess, err)
		}
		code, err := stmt.ColumnType(col)
		if err != nil {
			return nil, engineError(KindEngine, "ColumnType", sess, err)
		}
		cols[col-1] = newColumnMetadata(name, code)
	}
	return cols, nil
}
