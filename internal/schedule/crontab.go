package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/mezame/internal/config"
)

// ToCrontab renders a structured schedule as a canonical crontab string.
// Times sharing a minute offset collapse into one comma-separated hour list;
// groups with distinct minutes are joined with ";".
func ToCrontab(cfg config.ScheduleConfig) string {
	switch cfg.RepeatMode {
	case ModeDaily:
		return clocksToCrontab(cfg.DailyTimes, "*")
	case ModeWeekly:
		return clocksToCrontab(cfg.WeeklyTimes, weekdayField(cfg.WeeklyDays))
	case ModeInterval:
		return clocksToCrontab(intervalTimes(cfg.IntervalHours, cfg.IntervalStartTime, cfg.IntervalEndTime), "*")
	case ModeCron:
		return cfg.Crontab
	default:
		return ""
	}
}

func clocksToCrontab(times []string, dow string) string {
	clocks := parseClocks(times)
	if len(clocks) == 0 {
		return ""
	}

	hoursByMinute := make(map[int][]int)
	for _, c := range clocks {
		hoursByMinute[c.minute] = append(hoursByMinute[c.minute], c.hour)
	}

	minutes := make([]int, 0, len(hoursByMinute))
	for m := range hoursByMinute {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)

	groups := make([]string, 0, len(minutes))
	for _, m := range minutes {
		hours := hoursByMinute[m]
		sort.Ints(hours)
		hourStrs := make([]string, 0, len(hours))
		seen := make(map[int]struct{})
		for _, h := range hours {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			hourStrs = append(hourStrs, strconv.Itoa(h))
		}
		groups = append(groups, fmt.Sprintf("%d %s * * %s", m, strings.Join(hourStrs, ","), dow))
	}
	return strings.Join(groups, ";")
}

// intervalTimes expands an interval policy into the concrete HH:mm sequence it
// fires at within one day.
func intervalTimes(hours int, startTime, endTime string) []string {
	if hours <= 0 {
		return nil
	}
	start, ok := parseClock(startTime)
	if !ok {
		return nil
	}
	endMinutes := 24*60 - 1
	if end, ok := parseClock(endTime); ok {
		endMinutes = end.hour*60 + end.minute
	}

	var out []string
	for m := start.hour*60 + start.minute; m <= endMinutes; m += hours * 60 {
		out = append(out, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return out
}

func weekdayField(days []string) string {
	set := parseWeekdays(days)
	if len(set) == 0 {
		return "*"
	}
	nums := make([]int, 0, len(set))
	for wd := range set {
		nums = append(nums, int(wd))
	}
	sort.Ints(nums)
	strs := make([]string, len(nums))
	for i, n := range nums {
		strs[i] = strconv.Itoa(n)
	}
	return strings.Join(strs, ",")
}

var shortWeekdays = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Describe renders a semicolon-joined crontab as a human summary, e.g.
// "every day 07:00" or "Mon,Fri 09:30, 17:30".
func Describe(crontab string) string {
	var parts []string
	for _, expr := range strings.Split(crontab, ";") {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if desc, ok := describeExpr(expr); ok {
			parts = append(parts, desc)
		} else {
			parts = append(parts, expr)
		}
	}
	return strings.Join(parts, "; ")
}

func describeExpr(expr string) (string, bool) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return "", false
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil {
		return "", false
	}

	var times []string
	for _, h := range strings.Split(fields[1], ",") {
		hour, err := strconv.Atoi(h)
		if err != nil {
			return "", false
		}
		times = append(times, fmt.Sprintf("%02d:%02d", hour, minute))
	}

	if fields[2] != "*" || fields[3] != "*" {
		return "", false
	}

	when := "every day"
	if fields[4] != "*" {
		var names []string
		for _, d := range strings.Split(fields[4], ",") {
			n, err := strconv.Atoi(d)
			if err != nil || n < 0 || n > 6 {
				return "", false
			}
			names = append(names, shortWeekdays[n])
		}
		when = strings.Join(names, ",")
	}

	return when + " " + strings.Join(times, ", "), true
}

// DescribeConfig is the round-trip convenience: structured policy to crontab
// to description.
func DescribeConfig(cfg config.ScheduleConfig) string {
	return Describe(ToCrontab(cfg))
}

// NextFromCrontab is a convenience for previews in the CLI.
func NextFromCrontab(crontab string, now time.Time) (time.Time, bool) {
	return nextCron(crontab, now)
}
