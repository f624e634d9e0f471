package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BusinessHours is the daily window used to anchor vague time references.
type BusinessHours struct {
	Start    int // inclusive hour, 24h clock
	End      int // exclusive hour, 24h clock
	Location *time.Location
}

// DefaultBusinessHours returns the standard 9-to-5 window in Eastern time.
func DefaultBusinessHours() BusinessHours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return BusinessHours{Start: 9, End: 17, Location: loc}
}

// Contains reports whether t's hour falls inside the window.
func (b BusinessHours) Contains(t time.Time) bool {
	h := t.In(b.Location).Hour()
	return h >= b.Start && h < b.End
}

// ParsedTime is the result of resolving a time phrase.
type ParsedTime struct {
	Due           time.Time
	Confidence    float64 // 0.0 to 1.0
	IsSpecific    bool    // a clock time was explicitly mentioned
	BusinessHours bool    // due falls inside the business window
	OriginalText  string
}

// Resolver resolves time phrases against a business-hours window.
type Resolver struct {
	hours BusinessHours
}

// NewResolver creates a resolver. Zero-value hours fall back to the default
// window.
func NewResolver(hours BusinessHours) *Resolver {
	if hours.Location == nil {
		hours = DefaultBusinessHours()
	}
	return &Resolver{hours: hours}
}

// Confidence levels reflect phrase specificity: an explicit clock time beats
// a named day-part beats a fuzzy promise.
const (
	confClockTime  = 0.9
	confBusinessAt = 0.9 // first thing, start of day, business-day phrases
	confEndOfDay   = 0.8
	confLunch      = 0.8
	confDayPart    = 0.7
	confTomorrow   = 0.9
	confToday      = 0.9
	confNextWeek   = 0.8
	confInN        = 0.8
	confWeekday    = 0.8
	confDate       = 0.9
	confSoon       = 0.4
	confWhenever   = 0.3
	confFallback   = 0.6
)

var (
	clockRe        = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)`)
	oclockRe       = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*o'?clock`)
	withinHoursRe  = regexp.MustCompile(`within (?:the next )?(\d+) hours?`)
	inMinutesRe    = regexp.MustCompile(`in (?:the next )?(\d+) minutes?`)
	inDaysRe       = regexp.MustCompile(`in (\d+) (day|week|month)s?`)
	businessDaysRe = regexp.MustCompile(`within (\d+) business days?`)
	dateRe         = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})(?:[/-](\d{2,4}))?`)
	weekdayRe      = regexp.MustCompile(`(?:this|next) (monday|tuesday|wednesday|thursday|friday)`)
)

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
}

// Resolve maps text to a ParsedTime relative to ref. A zero ref means now.
func (r *Resolver) Resolve(text string, ref time.Time) ParsedTime {
	if ref.IsZero() {
		ref = time.Now()
	}
	ref = ref.In(r.hours.Location)
	normalized := strings.ToLower(strings.TrimSpace(text))

	if due, conf, ok := r.exactTime(normalized, ref); ok {
		return r.finish(due, conf, true, text)
	}
	due, conf := r.relativeTime(normalized, ref)
	return r.finish(due, conf, false, text)
}

func (r *Resolver) finish(due time.Time, conf float64, specific bool, original string) ParsedTime {
	return ParsedTime{
		Due:           due,
		Confidence:    conf,
		IsSpecific:    specific,
		BusinessHours: r.hours.Contains(due),
		OriginalText:  original,
	}
}

// exactTime handles phrases that name a clock time or a fixed business
// moment. The day may still be shifted by a relative word in the same phrase
// ("3pm tomorrow").
func (r *Resolver) exactTime(text string, ref time.Time) (time.Time, float64, bool) {
	day := r.dayShift(text, ref)

	switch {
	case containsWord(text, "noon"):
		return r.at(day, 12, 0), confClockTime, true
	case strings.Contains(text, "midnight"):
		return r.at(day, 0, 0), confClockTime, true
	case strings.Contains(text, "first thing") || strings.Contains(text, "start of day") ||
		strings.Contains(text, "start of the day"):
		return r.at(day, r.hours.Start, 0), confBusinessAt, true
	case strings.Contains(text, "before lunch"):
		return r.at(day, 11, 30), confLunch, true
	case strings.Contains(text, "after lunch"):
		return r.at(day, 13, 0), confLunch, true
	case strings.Contains(text, "end of day") || strings.Contains(text, "end of the day") ||
		strings.Contains(text, "close of business") ||
		containsWord(text, "eod") || containsWord(text, "cob"):
		return r.at(day, r.hours.End, 0), confEndOfDay, true
	case strings.Contains(text, "within the hour"):
		return ref.Add(time.Hour), confClockTime, true
	}

	if m := withinHoursRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.Add(time.Duration(n) * time.Hour), confClockTime, true
	}
	if m := inMinutesRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return ref.Add(time.Duration(n) * time.Minute), confClockTime, true
	}

	if m := clockRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour > 12 {
			return time.Time{}, 0, false
		}
		if m[3] == "pm" && hour < 12 {
			hour += 12
		}
		if m[3] == "am" && hour == 12 {
			hour = 0
		}
		return r.at(day, hour, minute), confClockTime, true
	}

	if m := oclockRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour > 12 {
			return time.Time{}, 0, false
		}
		// Bare "3 o'clock" during a business call almost always means
		// afternoon.
		if hour < r.hours.Start {
			hour += 12
		}
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		return r.at(day, hour, minute), confClockTime, true
	}

	return time.Time{}, 0, false
}

// relativeTime handles day-level phrases. It always returns a usable
// timestamp; the default is end of the reference day.
func (r *Resolver) relativeTime(text string, ref time.Time) (time.Time, float64) {
	// Business-day arithmetic comes first: "2 business days" must not be
	// swallowed by the generic "in N days" rule.
	if m := businessDaysRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		due := addBusinessDays(ref, n)
		return r.at(due, r.hours.End, 0), confBusinessAt
	}
	if strings.Contains(text, "next business day") {
		due := addBusinessDays(ref, 1)
		return r.at(due, r.hours.Start, 0), confBusinessAt
	}

	// Policy-deadline phrases: without the actual policy dates on hand, the
	// safe reading is "as soon as practical".
	if strings.Contains(text, "before the policy expires") ||
		strings.Contains(text, "before policy expires") ||
		strings.Contains(text, "before coverage ends") ||
		strings.Contains(text, "before renewal") ||
		strings.Contains(text, "before the renewal") {
		return r.at(ref, r.hours.End, 0), confBusinessAt
	}
	if strings.Contains(text, "before the policy starts") ||
		strings.Contains(text, "before policy starts") ||
		strings.Contains(text, "before coverage begins") {
		due := addBusinessDays(ref, 1)
		return r.at(due, r.hours.Start, 0), confBusinessAt
	}

	if strings.Contains(text, "tomorrow") {
		due := ref.AddDate(0, 0, 1)
		if hour, minute, ok := dayPart(text); ok {
			return r.at(due, hour, minute), confTomorrow
		}
		return r.at(due, r.hours.Start, 0), confTomorrow
	}

	if strings.Contains(text, "end of week") || strings.Contains(text, "end of the week") {
		due := nextWeekday(ref, time.Friday)
		return r.at(due, r.hours.End, 0), confNextWeek
	}

	if strings.Contains(text, "next week") {
		due := ref.AddDate(0, 0, 7)
		return r.at(due, r.hours.Start, 0), confNextWeek
	}

	if m := weekdayRe.FindStringSubmatch(text); m != nil {
		due := nextWeekday(ref, weekdays[m[1]])
		return r.at(due, r.hours.Start, 0), confWeekday
	}

	if m := inDaysRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		var due time.Time
		switch m[2] {
		case "week":
			due = ref.AddDate(0, 0, 7*n)
		case "month":
			due = ref.AddDate(0, n, 0)
		default:
			due = ref.AddDate(0, 0, n)
		}
		return r.at(due, r.hours.Start, 0), confInN
	}

	if m := dateRe.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		dayOfMonth, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 && dayOfMonth >= 1 && dayOfMonth <= 31 {
			year := ref.Year()
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
				if year < 100 {
					year += 2000
				}
			}
			due := time.Date(year, time.Month(month), dayOfMonth,
				r.hours.Start, 0, 0, 0, r.hours.Location)
			if m[3] == "" && due.Before(ref) {
				due = due.AddDate(1, 0, 0)
			}
			return due, confDate
		}
	}

	if hour, minute, ok := dayPart(text); ok {
		return r.at(ref, hour, minute), confDayPart
	}

	if strings.Contains(text, "today") {
		return r.at(ref, r.hours.End, 0), confToday
	}

	if strings.Contains(text, "soon") {
		return ref.AddDate(0, 0, 3), confSoon
	}
	if strings.Contains(text, "when possible") || containsWord(text, "later") ||
		strings.Contains(text, "whenever") {
		return ref.AddDate(0, 0, 3), confWhenever
	}

	return r.at(ref, r.hours.End, 0), confFallback
}

// dayShift reads a relative day word embedded in an exact-time phrase.
func (r *Resolver) dayShift(text string, ref time.Time) time.Time {
	switch {
	case strings.Contains(text, "tomorrow"):
		return ref.AddDate(0, 0, 1)
	case strings.Contains(text, "next week"):
		return ref.AddDate(0, 0, 7)
	default:
		return ref
	}
}

// dayPart maps a named part of the day to a clock time.
func dayPart(text string) (hour, minute int, ok bool) {
	switch {
	case strings.Contains(text, "morning"):
		return 9, 0, true
	case strings.Contains(text, "afternoon"):
		return 14, 0, true
	case strings.Contains(text, "evening"):
		return 16, 0, true
	case strings.Contains(text, "tonight"):
		return 18, 0, true
	}
	return 0, 0, false
}

// at pins a clock time onto day, in the resolver's location.
func (r *Resolver) at(day time.Time, hour, minute int) time.Time {
	day = day.In(r.hours.Location)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, r.hours.Location)
}

// addBusinessDays advances n weekdays, skipping Saturday and Sunday.
func addBusinessDays(t time.Time, n int) time.Time {
	for n > 0 {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

// nextWeekday returns the next occurrence of wd strictly after t's day,
// or t's day itself if it already is wd.
func nextWeekday(t time.Time, wd time.Weekday) time.Time {
	for t.Weekday() != wd {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if f == word {
			return true
		}
	}
	return false
}
