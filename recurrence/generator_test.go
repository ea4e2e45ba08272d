package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestGenerate_CustomMondayWednesday(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC) // Monday
	end := start.Add(60 * time.Minute)
	until := EndOfDay(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	got, err := Generate(start, end, Rule{Mode: ModeCustom, Weekdays: []int{1, 3}, Until: until})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantDays := []int{1, 3, 8, 10, 15}
	if len(got) != len(wantDays) {
		t.Fatalf("expected %d occurrences, got %d: %v", len(wantDays), len(got), got)
	}
	for i, occ := range got {
		want := time.Date(2024, 1, wantDays[i], 10, 0, 0, 0, time.UTC)
		if !occ.Start.Equal(want) {
			t.Errorf("occurrence %d: expected start %s, got %s", i, want, occ.Start)
		}
		if occ.End.Sub(occ.Start) != time.Hour {
			t.Errorf("occurrence %d: expected 60 minute duration, got %s", i, occ.End.Sub(occ.Start))
		}
	}
}

func TestGenerate_WeeklyFallsBackToTemplateWeekday(t *testing.T) {
	start := time.Date(2024, 3, 7, 18, 30, 0, 0, time.UTC) // Thursday
	end := start.Add(90 * time.Minute)
	until := EndOfDay(time.Date(2024, 4, 4, 0, 0, 0, 0, time.UTC))

	got, err := Generate(start, end, Rule{Mode: ModeWeekly, Until: until})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 weekly occurrences, got %d", len(got))
	}
	for i, occ := range got {
		if occ.Start.Weekday() != time.Thursday {
			t.Errorf("occurrence %d: expected Thursday, got %s", i, occ.Start.Weekday())
		}
		want := start.AddDate(0, 0, 7*i)
		if !occ.Start.Equal(want) {
			t.Errorf("occurrence %d: expected %s, got %s", i, want, occ.Start)
		}
	}
}

func TestGenerate_WeeklyMultipleWeekdaysSkipsDaysBeforeTemplate(t *testing.T) {
	start := time.Date(2024, 5, 8, 19, 0, 0, 0, time.UTC) // Wednesday
	until := EndOfDay(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))

	got, err := Generate(start, start.Add(time.Hour), Rule{Mode: ModeWeekly, Weekdays: []int{1, 5}, Until: until})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Fri 10th, Mon 13th, Fri 17th, Mon 20th. Monday the 6th precedes the template.
	want := []int{10, 13, 17, 20}
	if len(got) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(got))
	}
	for i, occ := range got {
		if occ.Start.Day() != want[i] {
			t.Errorf("occurrence %d: expected day %d, got %d", i, want[i], occ.Start.Day())
		}
	}
}

func TestGenerate_PropertiesHoldForVariousRules(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	tests := []struct {
		name     string
		start    time.Time
		rule     Rule
		weekdays map[time.Weekday]bool
	}{
		{
			name:     "custom across DST change",
			start:    time.Date(2024, 3, 20, 18, 0, 0, 0, berlin),
			rule:     Rule{Mode: ModeCustom, Weekdays: []int{0, 2, 4}, Until: EndOfDay(time.Date(2024, 4, 20, 0, 0, 0, 0, berlin))},
			weekdays: map[time.Weekday]bool{time.Sunday: true, time.Tuesday: true, time.Thursday: true},
		},
		{
			name:     "weekly every day",
			start:    time.Date(2024, 2, 26, 7, 15, 0, 0, time.UTC),
			rule:     Rule{Mode: ModeWeekly, Weekdays: []int{0, 1, 2, 3, 4, 5, 6}, Until: time.Date(2024, 3, 3, 7, 15, 0, 0, time.UTC)},
			weekdays: map[time.Weekday]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true, 6: true},
		},
		{
			name:     "weekly duplicate weekdays",
			start:    time.Date(2024, 2, 26, 7, 15, 0, 0, time.UTC),
			rule:     Rule{Mode: ModeWeekly, Weekdays: []int{6, 6, 6}, Until: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)},
			weekdays: map[time.Weekday]bool{time.Saturday: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Generate(tt.start, tt.start.Add(2*time.Hour), tt.rule)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) == 0 {
				t.Fatal("expected at least one occurrence")
			}
			seen := make(map[time.Time]bool)
			for i, occ := range got {
				if occ.Start.Before(tt.start) || occ.Start.After(tt.rule.Until) {
					t.Errorf("occurrence %s outside [%s, %s]", occ.Start, tt.start, tt.rule.Until)
				}
				if !tt.weekdays[occ.Start.Weekday()] {
					t.Errorf("occurrence %s has unselected weekday %s", occ.Start, occ.Start.Weekday())
				}
				if occ.Start.Hour() != tt.start.Hour() || occ.Start.Minute() != tt.start.Minute() {
					t.Errorf("occurrence %s lost the template time of day", occ.Start)
				}
				if i > 0 && !got[i-1].Start.Before(occ.Start) {
					t.Errorf("occurrences not strictly ascending at %d", i)
				}
				if seen[occ.Start] {
					t.Errorf("duplicate start %s", occ.Start)
				}
				seen[occ.Start] = true
			}
		})
	}
}

func TestGenerate_Errors(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	until := EndOfDay(start.AddDate(0, 1, 0))

	tests := []struct {
		name    string
		end     time.Time
		rule    Rule
		wantErr error
	}{
		{"custom without weekdays", start.Add(time.Hour), Rule{Mode: ModeCustom, Until: until}, ErrNoWeekdays},
		{"weekday out of range", start.Add(time.Hour), Rule{Mode: ModeCustom, Weekdays: []int{7}, Until: until}, ErrInvalidWeekday},
		{"until before start", start.Add(time.Hour), Rule{Mode: ModeWeekly, Until: start.AddDate(0, 0, -1)}, ErrUntilBeforeStart},
		{"end before start", start.Add(-time.Hour), Rule{Mode: ModeWeekly, Until: until}, ErrEndBeforeStart},
		{"unknown mode", start.Add(time.Hour), Rule{Mode: "monthly", Weekdays: []int{1}, Until: until}, ErrUnknownMode},
		{"too many", start.Add(time.Hour), Rule{Mode: ModeCustom, Weekdays: []int{0, 1, 2, 3, 4, 5, 6}, Until: start.AddDate(3, 0, 0)}, ErrTooManyOccurrences},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(start, tt.end, tt.rule)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseUntil(t *testing.T) {
	got, err := ParseUntil("2024-01-15", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 15, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	got, err = ParseUntil("2024-01-15T12:00:00Z", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("expected timestamp to be kept, got %s", got)
	}

	if _, err := ParseUntil("15.01.2024", time.UTC); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(" Weekly "); err != nil || m != ModeWeekly {
		t.Errorf("expected weekly, got %q (%v)", m, err)
	}
	if _, err := ParseMode("daily"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
}
