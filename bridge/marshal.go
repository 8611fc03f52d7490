package bridge

import "github.com/tomyedwab/sqlbridge/engine"

// marshaller turns the current cursor row into a Row.
type marshaller struct {
	lob          lobStreamer
	stringBuffer int
}

// columnNames extracts the names once so every Row of a cursor shares them.
func columnNames(cols []ColumnMetadata) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// readRow assumes a successful Fetch on stmt.
func (m marshaller) readRow(sess engine.Session, stmt engine.Statement, cols []ColumnMetadata, names []string) (Row, error) {
	values := make([]Value, len(cols))
	buf := make([]byte, m.stringBuffer)
	for i, c := range cols {
		col := i + 1
		null, err := stmt.IsNull(col)
		if err != nil {
			return Row{}, engineError(KindEngine, "IsNull", sess, err)
		}
		if null {
			continue
		}
		v, err := m.readValue(sess, stmt, col, c.TypeCode, buf)
		if err != nil {
			return Row{}, err
		}
		values[i] = v
	}
	return Row{columns: names, values: values}, nil
}

// readValue dispatches on the column type. The order of the cases matters:
// every code outside them is read as a string.
func (m marshaller) readValue(sess engine.Session, stmt engine.Statement, col, code int, buf []byte) (Value, error) {
	switch {
	case engine.IsInt32(code):
		i, err := stmt.GetInt32(col)
		if err != nil {
			return Value{}, engineError(KindEngine, "GetInt32", sess, err)
		}
		return Int32(i), nil
	case engine.IsInt64(code):
		i, err := stmt.GetInt64(col)
		if err != nil {
			return Value{}, engineError(KindEngine, "GetInt64", sess, err)
		}
		return Int64(i), nil
	case engine.IsDouble(code):
		f, err := stmt.GetDouble(col)
		if err != nil {
			return Value{}, engineError(KindEngine, "GetDouble", sess, err)
		}
		return Float64(f), nil
	case engine.IsFloat(code):
		f, err := stmt.GetFloat(col)
		if err != nil {
			return Value{}, engineError(KindEngine, "GetFloat", sess, err)
		}
		return Float64(float64(f)), nil
	case engine.IsBoolean(code):
		b, err := stmt.GetBoolean(col)
		if err != nil {
			return Value{}, engineError(KindEngine, "GetBoolean", sess, err)
		}
		return Bool(b), nil
	case engine.IsBlob(code):
		p, err := m.lob.readBlob(sess, stmt, col)
		if err != nil {
			return Value{}, err
		}
		return Bytes(p), nil
	case engine.IsNclob(code):
		s, err := m.lob.readNclob(sess, stmt, col)
		if err != nil {
			return Value{}, err
		}
		return Text(s), nil
	case engine.IsBinary(code):
		return m.readBinary(sess, stmt, col)
	}
	return m.readString(sess, stmt, col, buf)
}

func (m marshaller) readBinary(sess engine.Session, stmt engine.Statement, col int) (Value, error) {
	size, err := stmt.GetBinary(col, nil)
	if err != nil {
		return Value{}, engineError(KindEngine, "GetBinary", sess, err)
	}
	p := make([]byte, size)
	if size > 0 {
		if _, err := stmt.GetBinary(col, p); err != nil {
			return Value{}, engineError(KindEngine, "GetBinary", sess, err)
		}
	}
	return Bytes(p), nil
}

// readString tries buf first and re-reads with an exact buffer when the value
// did not fit.
func (m marshaller) readString(sess engine.Session, stmt engine.Statement, col int, buf []byte) (Value, error) {
	size, err := stmt.GetString(col, buf)
	if err != nil {
		return Value{}, engineError(KindEngine, "GetString", sess, err)
	}
	if size < len(buf) {
		return Text(string(buf[:size])), nil
	}
	full := make([]byte, size+1)
	if _, err := stmt.GetString(col, full); err != nil {
		return Value{}, engineError(KindEngine, "GetString", sess, err)
	}
	return Text(string(full[:size])), nil
}
