package task

import (
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/housekeep/internal/clierr"
	"github.com/twiced-technology-gmbh/housekeep/internal/date"
)

var today = date.New(2026, time.October, 19)

func TestIsAllowed(t *testing.T) {
	for _, cur := range Statuses {
		for _, next := range Statuses {
			if cur == next {
				continue
			}
			want := true
			if (cur == Cancelled && next == Completed) || (cur == Completed && next == Cancelled) {
				want = false
			}
			if got := IsAllowed(cur, next); got != want {
				t.Errorf("IsAllowed(%s, %s) = %v, want %v", cur, next, got, want)
			}
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	yesterday := today.AddDays(-1).Ptr()
	tomorrow := today.AddDays(1).Ptr()

	tests := []struct {
		name string
		cur  Status
		due  *date.Date
		want Status
	}{
		{"active past due", Active, yesterday, Overdue},
		{"postponed past due", Postponed, yesterday, Overdue},
		{"active due today", Active, today.Ptr(), Active},
		{"active due tomorrow", Active, tomorrow, Active},
		{"active without due", Active, nil, Active},
		{"completed past due", Completed, yesterday, Completed},
		{"cancelled past due", Cancelled, yesterday, Cancelled},
		{"overdue stays overdue", Overdue, yesterday, Overdue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.cur, tt.due, today)
			if got != tt.want {
				t.Fatalf("DeriveStatus = %s, want %s", got, tt.want)
			}
			if again := DeriveStatus(got, tt.due, today); again != got {
				t.Errorf("second derivation = %s, want %s", again, got)
			}
		})
	}
}

func TestIsOverdue(t *testing.T) {
	tk := Task{Status: Active, Due: today.AddDays(-2).Ptr()}
	if !tk.IsOverdue(today) {
		t.Error("expected active past-due task to be overdue")
	}
	tk.Status = Overdue
	if tk.IsOverdue(today) {
		t.Error("already overdue task needs no change")
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"active":    Active,
		"ACTIVE":    Active,
		" Overdue ": Overdue,
		"cancelled": Cancelled,
		"POSTPONED": Postponed,
		"completed": Completed,
	} {
		got, err := ParseStatus(in)
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}

	_, err := ParseStatus("done")
	if !clierr.HasCode(err, clierr.InvalidStatus) {
		t.Errorf("ParseStatus(done) err = %v, want INVALID_STATUS", err)
	}
}
