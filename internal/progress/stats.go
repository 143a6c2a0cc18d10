package progress

import (
	"sort"
	"time"
)

// Stats is the profile summary of one user.
type Stats struct {
	Documents int
	PagesRead int
	Streak    int // consecutive days with activity, ending today or yesterday
	Recent    []Progress
}

// Summarize aggregates progress rows and activity days.
func Summarize(rows []Progress, activityDays []time.Time, now time.Time) Stats {
	st := Stats{Documents: len(rows), Recent: rows}
	for _, r := range rows {
		st.PagesRead += r.PagesRead
	}
	st.Streak = Streak(activityDays, now)
	return st
}

// Streak counts consecutive calendar days with activity up to now. A
// streak survives until the end of the day after the last activity.
func Streak(days []time.Time, now time.Time) int {
	if len(days) == 0 {
		return 0
	}

	seen := make(map[time.Time]bool, len(days))
	for _, d := range days {
		seen[truncateDay(d, now.Location())] = true
	}
	unique := make([]time.Time, 0, len(seen))
	for d := range seen {
		unique = append(unique, d)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].After(unique[j]) })

	today := truncateDay(now, now.Location())
	cursor := today
	if !seen[today] {
		cursor = today.AddDate(0, 0, -1)
		if !seen[cursor] {
			return 0
		}
	}

	streak := 0
	for seen[cursor] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
