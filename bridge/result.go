package bridge

import "encoding/json"

// Result is the outcome of running a statement to completion. Fields is nil
// when the statement produced no result set; RowCount is then the number of
// affected rows. Otherwise RowCount equals len(Rows).
type Result struct {
	Fields   []ColumnMetadata
	Rows     []Row
	RowCount int64
}

func (r *Result) HasResultSet() bool { return r.Fields != nil }

// MarshalJSON writes rows and fields only for statements that produced a
// result set, even an empty one.
func (r *Result) MarshalJSON() ([]byte, error) {
	if !r.HasResultSet() {
		return json.Marshal(struct {
			RowCount int64 `json:"rowCount"`
		}{r.RowCount})
	}
	rows := r.Rows
	if rows == nil {
		rows = []Row{}
	}
	return json.Marshal(struct {
		Fields   []ColumnMetadata `json:"fields"`
		Rows     []Row            `json:"rows"`
		RowCount int64            `json:"rowCount"`
	}{r.Fields, rows, r.RowCount})
}
