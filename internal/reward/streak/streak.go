// Package streak computes consecutive-day trivia streak transitions
// and the bonus points they earn.
package streak

import (
	"time"

	"engage-rewards-service/internal/model"
)

// Next returns the streak value after a correct answer on day, given
// the prior streak and the UTC day of the last correct answer.
// Rules:
//   - Last correct answer on the immediately preceding UTC day:
//     streak + 1.
//   - Any longer gap, or no prior correct answer: back to 1.
//   - Same-day repeat keeps the current value. The daily trivia gate
//     makes this unreachable in practice, but the math stays total.
//
// Incorrect answers never reach this function; they leave the streak
// untouched.
func Next(current int, lastCorrect *time.Time, day time.Time) int {
	if current < 0 {
		current = 0
	}
	if lastCorrect == nil {
		return 1
	}

	today := model.UTCDayOf(day)
	last := model.UTCDayOf(*lastCorrect)

	switch {
	case last.Equal(today):
		if current == 0 {
			return 1
		}
		return current
	case last.Equal(today.AddDate(0, 0, -1)):
		return current + 1
	default:
		return 1
	}
}

// Bonus returns the streak bonus for an updated streak length: each
// consecutive day beyond the first adds perStep points, up to limit.
// Day one earns base points only. A limit of 0 means uncapped.
func Bonus(streak int, perStep, limit int64) int64 {
	if streak <= 1 || perStep <= 0 {
		return 0
	}
	bonus := perStep * int64(streak-1)
	if limit > 0 && bonus > limit {
		return limit
	}
	return bonus
}
