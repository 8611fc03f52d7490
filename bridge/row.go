package bridge

import (
	"bytes"
	"encoding/json"
)

// Row is one fetched row: column names in declared order with one Value each.
type Row struct {
	columns []string
	values  []Value
}

func (r Row) Len() int          { return len(r.values) }
func (r Row) Columns() []string { return r.columns }
func (r Row) Values() []Value   { return r.values }
func (r Row) At(i int) Value    { return r.values[i] }

// Get returns the value of the first column called name.
func (r Row) Get(name string) (Value, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Map returns the row as column name to Value.Interface().
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, c := range r.columns {
		m[c] = r.values[i].Interface()
	}
	return m
}

// MarshalJSON encodes the row as an object whose keys keep column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
