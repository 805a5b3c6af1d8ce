package interpreter

import (
	"regexp"
	"strconv"
	"strings"

	"tvvoice/internal/domain"
)

var (
	clockPattern = regexp.MustCompile(`(?i)^\s*(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?\s*$`)
	rangePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?\s*(?:to|until|till|through|-)\s*(\d{1,2})(?::(\d{2}))?\s*(a\.?m\.?|p\.?m\.?)?`)
)

// TimeTo24Hour converts "H[:MM] [AM|PM]" to a 24h hour. 12 AM is 0 and
// 12 PM stays 12. Without a meridiem the hour is taken as already 24h.
func TimeTo24Hour(text string) (int, bool) {
	match := clockPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	return toHour(match[1], match[2], match[3])
}

// ParseTimeRange extracts "H[:MM][AM|PM] (to|until|-) H[:MM][AM|PM]" from a
// command. An endpoint without a meridiem borrows the other endpoint's.
func ParseTimeRange(command string) (domain.TimeRange, bool) {
	match := rangePattern.FindStringSubmatch(command)
	if match == nil {
		return domain.TimeRange{}, false
	}

	startMeridiem, endMeridiem := match[3], match[6]
	if startMeridiem == "" {
		startMeridiem = endMeridiem
	}
	if endMeridiem == "" {
		endMeridiem = startMeridiem
	}

	start, ok := toHour(match[1], match[2], startMeridiem)
	if !ok {
		return domain.TimeRange{}, false
	}
	end, ok := toHour(match[4], match[5], endMeridiem)
	if !ok {
		return domain.TimeRange{}, false
	}
	return domain.TimeRange{StartHour: start, EndHour: end}, true
}

func toHour(hourText, minuteText, meridiem string) (int, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil {
		return 0, false
	}
	if minuteText != "" {
		minute, err := strconv.Atoi(minuteText)
		if err != nil || minute > 59 {
			return 0, false
		}
	}

	switch normalizeMeridiem(meridiem) {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour > 23 {
			return 0, false
		}
	}
	return hour, true
}

func normalizeMeridiem(value string) string {
	return strings.ToLower(strings.ReplaceAll(value, ".", ""))
}
