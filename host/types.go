package host

import (
	"strings"

	"github.com/tomyedwab/sqlbridge/engine"
)

var declTypes = map[string]int{
	"INTEGER":   engine.NativeBigint,
	"INT":       engine.NativeBigint,
	"BIGINT":    engine.NativeBigint,
	"INT8":      engine.NativeBigint,
	"INT64":     engine.NativeBigint,
	"LONG":      engine.NativeBigint,
	"INT4":      engine.NativeInteger,
	"INT32":     engine.NativeInteger,
	"MEDIUMINT": engine.NativeInteger,
	"SMALLINT":  engine.NativeSmallint,
	"INT2":      engine.NativeSmallint,
	"TINYINT":   engine.NativeSmallint,
	"INT1":      engine.NativeSmallint,

	"UTINYINT":  engine.TUnsignedSmallint,
	"USMALLINT": engine.TUnsignedSmallint,
	"UINTEGER":  engine.TUnsignedInteger,
	"UBIGINT":   engine.TUnsignedBigint,
	"HUGEINT":   engine.Decimal,
	"UHUGEINT":  engine.Decimal,

	"REAL":             engine.NativeDouble,
	"DOUBLE":           engine.NativeDouble,
	"DOUBLE PRECISION": engine.NativeDouble,
	"FLOAT8":           engine.NativeDouble,
	"FLOAT":            engine.NativeReal,
	"FLOAT4":           engine.NativeReal,

	"DECIMAL": engine.Decimal,
	"NUMERIC": engine.Numeric,
	"BOOLEAN": engine.Boolean,
	"BOOL":    engine.Boolean,

	"CHAR":              engine.Character,
	"CHARACTER":         engine.Character,
	"VARCHAR":           engine.UTF8,
	"CHARACTER VARYING": engine.UTF8,
	"NCHAR":             engine.Nchar,
	"NVARCHAR":          engine.UTF8,
	"STRING":            engine.UTF8,
	"TEXT":              engine.UTF8,
	"CLOB":              engine.Clob,
	"NCLOB":             engine.Nclob,

	"BINARY":    engine.Binary,
	"VARBINARY": engine.BinaryVarying,
	"BYTEA":     engine.BinaryVarying,
	"BLOB":      engine.Blob,

	"DATE":                     engine.Date,
	"TIME":                     engine.Time,
	"DATETIME":                 engine.Timestamp,
	"TIMESTAMP":                engine.Timestamp,
	"TIMESTAMPTZ":              engine.Timestamp,
	"TIMESTAMP WITH TIME ZONE": engine.Timestamp,
	"UUID":                     engine.UUID,
}

// typeCode maps a declared column type to an engine type code carrying the
// column's nullability. Unknown and empty declarations read as text.
func typeCode(decl string, nullable bool) int {
	d := strings.ToUpper(strings.TrimSpace(decl))
	if i := strings.IndexByte(d, '('); i >= 0 {
		d = strings.TrimSpace(d[:i])
	}
	code, ok := declTypes[d]
	if !ok {
		code = engine.UTF8
	}
	return engine.WithNullability(code, nullable)
}
