package placeholder

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/botforge/scenario/pkg/value"
)

// timeLayouts are tried in order when parsing a time from its string form.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"15:04:05",
	"15:04",
}

// asTime interprets a value as a point in time: time.Time passes through,
// numbers are unix seconds, strings are parsed against the known layouts.
func asTime(v any) (time.Time, bool) {
	switch n := v.(type) {
	case time.Time:
		return n, true
	case *time.Time:
		if n == nil {
			return time.Time{}, false
		}
		return *n, true
	case string:
		s := strings.TrimSpace(n)
		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return t, true
			}
		}
		if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Unix(unix, 0).In(time.Local), true
		}
		return time.Time{}, false
	default:
		if f, ok := value.AsFloat(v); ok {
			return time.Unix(int64(f), 0).In(time.Local), true
		}
		return time.Time{}, false
	}
}

var printer = message.NewPrinter(language.English)

// formatValue implements format:type for both times and numbers.
func formatValue(v any, kind string) any {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "timestamp":
		if t, ok := asTime(v); ok {
			return t.Unix()
		}
		return nil
	case "date":
		return formatTime(v, "02.01.2006")
	case "time":
		return formatTime(v, "15:04")
	case "time_full":
		return formatTime(v, "15:04:05")
	case "datetime":
		return formatTime(v, "02.01.2006 15:04")
	case "datetime_full":
		return formatTime(v, "02.01.2006 15:04:05")
	case "pg_date":
		return formatTime(v, "2006-01-02")
	case "pg_datetime":
		return formatTime(v, "2006-01-02 15:04:05")
	case "currency":
		if f, ok := value.AsFloat(v); ok {
			return printer.Sprintf("%.2f", f)
		}
		return nil
	case "percent":
		if f, ok := value.AsFloat(v); ok {
			// Round away float noise from the ratio→percent multiply.
			pct := math.Round(f*100*1e9) / 1e9
			return value.Stringify(value.Normalize(pct)) + "%"
		}
		return nil
	case "number":
		if f, ok := value.AsFloat(v); ok {
			if f == float64(int64(f)) {
				return printer.Sprintf("%d", int64(f))
			}
			return printer.Sprintf("%v", f)
		}
		return nil
	default:
		return v
	}
}

func formatTime(v any, layout string) any {
	t, ok := asTime(v)
	if !ok {
		return nil
	}
	return t.Format(layout)
}

var shiftPattern = regexp.MustCompile(`^([+-]?)\s*(\d+)\s*([A-Za-z]+)$`)

// shiftTime applies a PostgreSQL-style interval ("1 day", "-2 hours") to a
// time value. Unparseable intervals resolve to nil.
func shiftTime(v any, interval string) any {
	t, ok := asTime(v)
	if !ok {
		return nil
	}
	m := shiftPattern.FindStringSubmatch(strings.TrimSpace(interval))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	if m[1] == "-" {
		n = -n
	}
	switch strings.ToLower(strings.TrimSuffix(m[3], "s")) {
	case "year":
		return t.AddDate(n, 0, 0)
	case "month":
		return t.AddDate(0, n, 0)
	case "week":
		return t.AddDate(0, 0, 7*n)
	case "day":
		return t.AddDate(0, 0, n)
	case "hour":
		return t.Add(time.Duration(n) * time.Hour)
	case "minute":
		return t.Add(time.Duration(n) * time.Minute)
	case "second":
		return t.Add(time.Duration(n) * time.Second)
	default:
		return nil
	}
}

var intervalPart = regexp.MustCompile(`(\d+)\s*([wdhms])`)

// intervalSeconds parses a compact interval like "1w 2d 3h 4m 5s" into the
// total number of seconds.
func intervalSeconds(s string) any {
	matches := intervalPart.FindAllStringSubmatch(strings.ToLower(s), -1)
	if matches == nil {
		return nil
	}
	var total int64
	for _, m := range matches {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil
		}
		switch m[2] {
		case "w":
			total += n * 7 * 24 * 3600
		case "d":
			total += n * 24 * 3600
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

// truncateTime rounds a time down to the named boundary. to_week lands on
// Monday 00:00.
func truncateTime(v any, kind string) any {
	t, ok := asTime(v)
	if !ok {
		return nil
	}
	switch kind {
	case "to_second":
		return t.Truncate(time.Second)
	case "to_minute":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	case "to_hour":
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case "to_date":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "to_week":
		days := (int(t.Weekday()) + 6) % 7
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return day.AddDate(0, 0, -days)
	case "to_month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case "to_year":
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	default:
		return nil
	}
}
