package task

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "001-water-plants.md")
	in := &Task{
		ID:            1,
		Name:          "Water plants",
		Status:        Postponed,
		Priority:      2,
		Due:           today.Ptr(),
		AssignedTo:    "sam",
		Type:          "garden",
		LastCompleted: today.AddDays(-7).Ptr(),
		Created:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Updated:       time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC),
		Description:   "Balcony first.\n\nThen the kitchen.",
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in=%+v\nout=%+v", in, out)
	}
}

func TestUnmarshalRejectsMissingFrontmatter(t *testing.T) {
	for _, in := range []string{"name: x\n", "---\nname: x\n"} {
		if _, err := Unmarshal([]byte(in)); err == nil {
			t.Errorf("Unmarshal(%q) succeeded", in)
		}
	}
}

func TestUnmarshalFrontmatterOnly(t *testing.T) {
	tk, err := Unmarshal([]byte("---\nid: 4\nname: Mop\nstatus: active\npriority: 3\n---"))
	if err != nil {
		t.Fatal(err)
	}
	if tk.ID != 4 || tk.Name != "Mop" || tk.Description != "" {
		t.Errorf("got %+v", tk)
	}
}
