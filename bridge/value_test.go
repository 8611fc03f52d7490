package bridge

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		kind Kind
	}{
		{"small integral", 42, KindInt32},
		{"negative integral", -7, KindInt32},
		{"int32 max", math.MaxInt32, KindInt32},
		{"int32 min", math.MinInt32, KindInt32},
		{"just above int32", math.MaxInt32 + 1, KindInt64},
		{"large integral", 1e15, KindInt64},
		{"fractional", 1.5, KindFloat64},
		{"beyond int64", 1e19, KindFloat64},
		{"nan", math.NaN(), KindFloat64},
		{"infinity", math.Inf(1), KindFloat64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Number(tt.in).Kind(); got != tt.kind {
				t.Errorf("Number(%v).Kind() = %v, want %v", tt.in, got, tt.kind)
			}
		})
	}

	if v := Number(math.MaxInt32 + 1); v.Int64() != math.MaxInt32+1 {
		t.Errorf("Number kept %d, want %d", v.Int64(), int64(math.MaxInt32+1))
	}
}

type color int

func (c color) String() string { return "red" }

func TestValueOf(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   interface{}
		kind Kind
		text string
	}{
		{"nil", nil, KindNull, "NULL"},
		{"bool", true, KindBool, "true"},
		{"int", 5, KindInt32, "5"},
		{"big int64", int64(1) << 40, KindInt64, "1099511627776"},
		{"uint64 overflow", uint64(math.MaxUint64), KindFloat64, "1.8446744073709552e+19"},
		{"integral float", 3.0, KindInt32, "3"},
		{"float", 2.5, KindFloat64, "2.5"},
		{"string", "héllo", KindText, "héllo"},
		{"bytes", []byte{0xde, 0xad}, KindBytes, "dead"},
		{"time", ts, KindText, "2024-05-01T12:30:00Z"},
		{"stringer", color(1), KindText, "red"},
		{"value passthrough", Int64(9), KindInt64, "9"},
		{"fallback", struct{ A int }{1}, KindText, "{1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValueOf(tt.in)
			if v.Kind() != tt.kind {
				t.Errorf("kind = %v, want %v", v.Kind(), tt.kind)
			}
			if v.String() != tt.text {
				t.Errorf("String() = %q, want %q", v.String(), tt.text)
			}
		})
	}
}

func TestValueJSON(t *testing.T) {
	row := Row{
		columns: []string{"id", "name", "data", "missing"},
		values:  []Value{Int32(1), Text("a"), Bytes([]byte("hi")), Null()},
	}
	got, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `{"id":1,"name":"a","data":"aGk=","missing":null}`
	if string(got) != want {
		t.Errorf("Marshal(row) = %s, want %s", got, want)
	}

	if v, ok := row.Get("name"); !ok || v.Text() != "a" {
		t.Errorf("Get(name) = %v, %v", v, ok)
	}
	if _, ok := row.Get("nope"); ok {
		t.Error("Get(nope) found a column")
	}
	if m := row.Map(); m["id"] != int64(1) || m["missing"] != nil {
		t.Errorf("Map() = %v", m)
	}
}
