package engine

// Generic type codes. A negative value of any of these marks the column or
// parameter as nullable.
const (
	Character         = 1
	CharacterVarying  = 2
	Nchar             = 3
	NcharVarying      = 4
	UTF8              = 5
	Decimal           = 6
	Numeric           = 7
	Integer           = 8
	UnsignedInteger   = 9
	TInteger          = 10
	TUnsignedInteger  = 11
	TSmallint         = 12
	TUnsignedSmallint = 13
	TBigint           = 14
	TUnsignedBigint   = 15
	Float             = 16
	TFloat            = 17
	TReal             = 18
	TDouble           = 19
	Boolean           = 20
	Date              = 21
	Time              = 22
	Timestamp         = 23
	Binary            = 24
	BinaryVarying     = 25
	Blob              = 26
	Clob              = 27
	Nclob             = 28
	BlobLocator       = 29
	ClobLocator       = 30
	NclobLocator      = 31
	UUID              = 32

	IntervalYear           = 40
	IntervalMonth          = 41
	IntervalYearToMonth    = 42
	IntervalDay            = 43
	IntervalHour           = 44
	IntervalMinute         = 45
	IntervalSecond         = 46
	IntervalDayToHour      = 47
	IntervalDayToMinute    = 48
	IntervalDayToSecond    = 49
	IntervalHourToMinute   = 50
	IntervalHourToSecond   = 51
	IntervalMinuteToSecond = 52
)

// Native type codes. The fixed-width ones come in NOT NULL (odd) and
// NULLABLE (even) pairs; they are never negative.
const (
	NativeSmallint         = 501
	NativeSmallintNullable = 502
	NativeInteger          = 503
	NativeIntegerNullable  = 504
	NativeBigint           = 505
	NativeBigintNullable   = 506
	NativeReal             = 507
	NativeRealNullable     = 508
	NativeDouble           = 509
	NativeDoubleNullable   = 510

	NativeBlob         = 511
	NativeClob         = 513
	NativeNclob        = 515
	NativeBlobLocator  = 517
	NativeClobLocator  = 519
	NativeNclobLocator = 521
)

func abs(code int) int {
	if code < 0 {
		return -code
	}
	return code
}

// IsNativeFixed reports whether code belongs to a fixed-width native pair.
func IsNativeFixed(code int) bool {
	c := abs(code)
	return c >= NativeSmallint && c <= NativeDoubleNullable
}

// WithNullability returns the code that declares base as nullable or not.
// base must be a generic code or the NOT NULL member of a native pair.
func WithNullability(base int, nullable bool) int {
	base = abs(base)
	if IsNativeFixed(base) {
		if base%2 == 0 {
			base--
		}
		if nullable {
			return base + 1
		}
		return base
	}
	if nullable && base < NativeSmallint {
		return -base
	}
	return base
}

func IsInt32(code int) bool {
	switch abs(code) {
	case TInteger, TSmallint, TUnsignedSmallint,
		NativeSmallint, NativeSmallintNullable,
		NativeInteger, NativeIntegerNullable:
		return true
	}
	return false
}

func IsInt64(code int) bool {
	switch abs(code) {
	case Integer, UnsignedInteger, TUnsignedInteger, TBigint,
		NativeBigint, NativeBigintNullable:
		return true
	}
	return false
}

func IsDouble(code int) bool {
	switch abs(code) {
	case Float, TFloat, TDouble, NativeDouble, NativeDoubleNullable:
		return true
	}
	return false
}

func IsFloat(code int) bool {
	switch abs(code) {
	case TReal, NativeReal, NativeRealNullable:
		return true
	}
	return false
}

func IsBoolean(code int) bool {
	return abs(code) == Boolean
}

func IsBlob(code int) bool {
	switch abs(code) {
	case Blob, BlobLocator, NativeBlob, NativeBlobLocator:
		return true
	}
	return false
}

// IsNclob reports whether code is any character large object type.
func IsNclob(code int) bool {
	switch abs(code) {
	case Clob, Nclob, ClobLocator, NclobLocator,
		NativeClob, NativeNclob, NativeClobLocator, NativeNclobLocator:
		return true
	}
	return false
}

// IsBinary reports whether code is a fixed or varying binary type that is
// read in one call.
func IsBinary(code int) bool {
	switch abs(code) {
	case Binary, BinaryVarying:
		return true
	}
	return false
}
