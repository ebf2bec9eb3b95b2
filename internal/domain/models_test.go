package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

func TestTimeList_ValueScanRoundTrip(t *testing.T) {
	in := TimeList{"08:00", "12:30", "20:00"}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Value should produce a string, got %T", v)
	}

	var out TimeList
	if err := out.Scan(s); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(out) != 3 || out[0] != "08:00" || out[2] != "20:00" {
		t.Fatalf("round trip mismatch: %v", out)
	}
}

func TestTimeList_ScanNil(t *testing.T) {
	l := TimeList{"old"}
	if err := (&l).Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if l != nil {
		t.Fatalf("expected nil list after scanning NULL, got %v", l)
	}
}

func TestWeekMask_ValueScanRoundTrip(t *testing.T) {
	in := WeekMask{schedule.WeekMaskFromMap(map[string]bool{"mon": true, "fri": true})}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var out WeekMask
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out.WeekMask != in.WeekMask {
		t.Fatalf("round trip mismatch: %v vs %v", out, in)
	}
}

func TestWeekMask_JSONShape(t *testing.T) {
	m := WeekMask{schedule.WeekMaskFromMap(map[string]bool{"sun": true})}
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	keyed := map[string]bool{}
	if err := json.Unmarshal(b, &keyed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(keyed) != 7 || !keyed["sun"] || keyed["mon"] {
		t.Fatalf("unexpected JSON shape: %s", b)
	}
}

func TestMedication_Definition(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	mask := WeekMask{schedule.WeekMaskFromMap(map[string]bool{"tue": true})}
	med := &Medication{
		ID:         "m1",
		Name:       "Metformin",
		Times:      TimeList{"08:00"},
		Days:       &mask,
		StartDate:  &start,
		MealTiming: "with",
	}

	def := med.Definition()
	if def.ID != "m1" || def.Name != "Metformin" {
		t.Fatalf("identity fields lost: %+v", def)
	}
	if def.Meal != schedule.MealWith {
		t.Fatalf("meal timing lost: %+v", def)
	}
	if def.Days == nil || !def.Days[2] {
		t.Fatalf("week mask lost: %+v", def.Days)
	}
	if def.StartDate == nil || !def.StartDate.Equal(start) {
		t.Fatalf("start date lost: %+v", def.StartDate)
	}
}

func TestMedication_DefinitionWithoutMask(t *testing.T) {
	med := &Medication{ID: "m1", Times: TimeList{"08:00"}}
	if def := med.Definition(); def.Days != nil {
		t.Fatalf("nil column must map to nil mask, got %+v", def.Days)
	}
}

func TestValidateDateKey(t *testing.T) {
	if err := ValidateDateKey("2026-03-10"); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	for _, bad := range []string{"", "03/10/2026", "2026-3-10", "not-a-date"} {
		if err := ValidateDateKey(bad); err == nil {
			t.Errorf("expected rejection of %q", bad)
		}
	}
}
