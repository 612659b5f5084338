package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func timeptr(t time.Time) *time.Time { return &t }

func TestNext_Transitions(t *testing.T) {
	base := day(2024, time.March, 10)

	tests := []struct {
		name        string
		current     int
		lastCorrect *time.Time
		day         time.Time
		expected    int
	}{
		{"first ever correct answer", 0, nil, base, 1},
		{"consecutive day increments", 1, timeptr(base.AddDate(0, 0, -1)), base, 2},
		{"third consecutive day", 2, timeptr(base.AddDate(0, 0, -1)), base, 3},
		{"two day gap resets", 5, timeptr(base.AddDate(0, 0, -2)), base, 1},
		{"week gap resets", 9, timeptr(base.AddDate(0, 0, -7)), base, 1},
		{"same day keeps value", 3, timeptr(base), base, 3},
		{"same day with zero starts at 1", 0, timeptr(base), base, 1},
		{"negative current treated as fresh", -2, nil, base, 1},
		{"last correct in the future resets", 4, timeptr(base.AddDate(0, 0, 3)), base, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Next(tt.current, tt.lastCorrect, tt.day))
		})
	}
}

// TestNext_ThreeConsecutiveDays walks three correct answers on
// consecutive days and expects streak values 1, 2, 3.
func TestNext_ThreeConsecutiveDays(t *testing.T) {
	start := day(2024, time.June, 1)

	streak := 0
	var lastCorrect *time.Time
	for i, want := range []int{1, 2, 3} {
		d := start.AddDate(0, 0, i)
		streak = Next(streak, lastCorrect, d)
		assert.Equal(t, want, streak, "day %d", i+1)
		lastCorrect = timeptr(d)
	}
}

// TestNext_GapAfterRun checks that a two-day gap after a run resets to 1.
func TestNext_GapAfterRun(t *testing.T) {
	start := day(2024, time.June, 1)

	streak := Next(0, nil, start)
	streak = Next(streak, timeptr(start), start.AddDate(0, 0, 1))
	assert.Equal(t, 2, streak)

	// Skip June 3rd entirely, answer again on the 4th.
	streak = Next(streak, timeptr(start.AddDate(0, 0, 1)), start.AddDate(0, 0, 3))
	assert.Equal(t, 1, streak)
}

// TestNext_ClockTimeIgnored confirms only the UTC calendar day
// matters, not the time of day.
func TestNext_ClockTimeIgnored(t *testing.T) {
	lateNight := time.Date(2024, time.March, 9, 23, 59, 59, 0, time.UTC)
	earlyMorning := time.Date(2024, time.March, 10, 0, 0, 1, 0, time.UTC)

	got := Next(1, timeptr(lateNight), earlyMorning)
	assert.Equal(t, 2, got, "23:59:59 then 00:00:01 next day is consecutive")
}

func TestBonus(t *testing.T) {
	tests := []struct {
		name     string
		streak   int
		perStep  int64
		limit    int64
		expected int64
	}{
		{"day one earns no bonus", 1, 10, 100, 0},
		{"zero streak earns no bonus", 0, 10, 100, 0},
		{"day two earns one step", 2, 10, 100, 10},
		{"day five earns four steps", 5, 10, 100, 40},
		{"cap applies", 20, 10, 100, 100},
		{"zero cap means uncapped", 20, 10, 0, 190},
		{"zero per step disables bonus", 5, 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Bonus(tt.streak, tt.perStep, tt.limit))
		})
	}
}

// TestNextAlwaysPositiveProperty verifies the streak after any correct
// answer is at least 1.
func TestNextAlwaysPositiveProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.IntRange(-3, 100).Draw(t, "current")
		dayOffset := rapid.IntRange(0, 1000).Draw(t, "dayOffset")
		today := day(2024, time.January, 1).AddDate(0, 0, dayOffset)

		var lastCorrect *time.Time
		if rapid.Bool().Draw(t, "hasLast") {
			gap := rapid.IntRange(0, 30).Draw(t, "gap")
			lastCorrect = timeptr(today.AddDate(0, 0, -gap))
		}

		got := Next(current, lastCorrect, today)
		if got < 1 {
			t.Fatalf("Next(%d, %v, %v) = %d, want >= 1", current, lastCorrect, today, got)
		}
	})
}

// TestNextIncrementOnlyByOneProperty verifies a streak never jumps by
// more than one step per answer.
func TestNextIncrementOnlyByOneProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		current := rapid.IntRange(0, 100).Draw(t, "current")
		gap := rapid.IntRange(1, 30).Draw(t, "gap")
		today := day(2024, time.July, 1).AddDate(0, 0, rapid.IntRange(0, 100).Draw(t, "offset"))
		last := today.AddDate(0, 0, -gap)

		got := Next(current, timeptr(last), today)

		if gap == 1 {
			if got != current+1 {
				t.Fatalf("consecutive day: Next(%d) = %d, want %d", current, got, current+1)
			}
		} else if got != 1 {
			t.Fatalf("gap of %d days: Next(%d) = %d, want 1", gap, current, got)
		}
	})
}

// TestBonusMonotonicProperty verifies the bonus never decreases as the
// streak grows.
func TestBonusMonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		perStep := rapid.Int64Range(1, 100).Draw(t, "perStep")
		limit := rapid.Int64Range(0, 1000).Draw(t, "limit")
		streak := rapid.IntRange(0, 50).Draw(t, "streak")

		if Bonus(streak+1, perStep, limit) < Bonus(streak, perStep, limit) {
			t.Fatalf("bonus decreased from streak %d to %d", streak, streak+1)
		}
	})
}
