package schedule

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEncode_FieldAndLabelOrder(t *testing.T) {
	rec := &Record{
		Line:        "L-111",
		ExtractedAt: "2025-09-16 08:00:00",
		Sentidos: []Sentido{{
			Table:    1,
			Horarios: []NormalizedRow{RowFromPairs("Salida", "08:00", "Almuñécar", "08:40", "A", "<b>")},
		}},
	}
	b, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"linea":"L-111","fecha_extraccion":"2025-09-16 08:00:00","sentidos":[{"tabla":1,"horarios":[{"Salida":"08:00","Almuñécar":"08:40","A":"<b>"}]}]}`
	if string(b) != want {
		t.Fatalf("unexpected JSON:\n got %s\nwant %s", b, want)
	}
}

func TestEncode_EmptySentidosIsArray(t *testing.T) {
	rec, err := Assemble("L-1", []RawTable{{{"A"}}}, time.Now())
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(b), `"sentidos":[]`) {
		t.Fatalf("expected empty array, got %s", b)
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	tables := []RawTable{
		{{"Hora", "Destino"}, {"08:00", "Centro"}},
		{{"x"}},
		{{"Salida", "Parada", "Llegada"}, {"10:00", "Motril", "10:45"}, {"11:00", "Salobreña", "11:40"}},
	}
	rec, err := Assemble("L-111", tables, time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, err := Encode(rec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Line != rec.Line || back.ExtractedAt != rec.ExtractedAt {
		t.Fatalf("header mismatch: %+v", back)
	}
	if len(back.Sentidos) != len(rec.Sentidos) {
		t.Fatalf("sentidos mismatch")
	}
	for i := range rec.Sentidos {
		if back.Sentidos[i].Table != rec.Sentidos[i].Table {
			t.Fatalf("tabla mismatch at %d", i)
		}
		for j := range rec.Sentidos[i].Horarios {
			a, b := rec.Sentidos[i].Horarios[j], back.Sentidos[i].Horarios[j]
			if !reflect.DeepEqual(a.Labels(), b.Labels()) || !reflect.DeepEqual(a.Map(), b.Map()) {
				t.Fatalf("row mismatch at %d/%d: %v vs %v", i, j, a.Map(), b.Map())
			}
		}
	}
}

func TestNormalizedRow_UnmarshalRejectsNonObject(t *testing.T) {
	var r NormalizedRow
	if err := r.UnmarshalJSON([]byte(`["a"]`)); err == nil {
		t.Fatalf("expected error for array input")
	}
	if err := r.UnmarshalJSON([]byte(`null`)); err != nil || r.Len() != 0 {
		t.Fatalf("expected empty row for null, err=%v", err)
	}
}
