package availability

import (
	"fmt"
	"time"
)

const markLayout = "15:04"

// Grid returns the HH:MM marks from open (inclusive) to close
// (exclusive) at the given step, ascending. 09:00-19:00 at 30m yields
// the 20 canonical half-hour marks 09:00..18:30.
func Grid(open, close string, step time.Duration) ([]string, error) {
	if step <= 0 {
		return nil, fmt.Errorf("invalid step: %s", step)
	}

	openT, err := time.Parse(markLayout, open)
	if err != nil {
		return nil, fmt.Errorf("invalid open time %q: %w", open, err)
	}

	closeT, err := time.Parse(markLayout, close)
	if err != nil {
		return nil, fmt.Errorf("invalid close time %q: %w", close, err)
	}

	if !closeT.After(openT) {
		return nil, nil
	}

	var marks []string
	for t := openT; t.Before(closeT); t = t.Add(step) {
		marks = append(marks, t.Format(markLayout))
	}

	return marks, nil
}

// Filter drops the booked marks from grid, preserving order. When the
// requested date is the current day, cutoff is the wall-clock HH:MM
// and only marks strictly after it survive; an empty cutoff disables
// the check.
func Filter(grid []string, booked map[string]struct{}, cutoff string) []string {
	free := make([]string, 0, len(grid))
	for _, mark := range grid {
		if _, taken := booked[mark]; taken {
			continue
		}
		if cutoff != "" && mark <= cutoff {
			continue
		}
		free = append(free, mark)
	}

	return free
}
