package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTimezone is used for providers that never configured a zone,
// unless SetDefaultTimezone replaced it.
const DefaultTimezone = "America/Edmonton"

var fallbackZone atomic.Value

func init() {
	fallbackZone.Store(DefaultTimezone)
}

// SetDefaultTimezone changes the zone LoadLocation uses for an empty name.
func SetDefaultTimezone(tz string) error {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("default timezone %q: %w", tz, err)
	}
	fallbackZone.Store(tz)
	return nil
}

const DateLayout = "2006-01-02"

var (
	strictHM = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)
	looseHM  = regexp.MustCompile(`^\d{1,2}:\d{1,2}$`)
)

// HM is a wall-clock time of day.
type HM struct {
	Hour   int
	Minute int
}

// ParseHM reads "HH:MM". It never fails: out-of-range or non-numeric parts
// are clamped into [0,23] and [0,59].
func ParseHM(text string) HM {
	parts := strings.SplitN(strings.TrimSpace(text), ":", 2)
	h := atoiOrZero(parts[0])
	m := 0
	if len(parts) > 1 {
		m = atoiOrZero(parts[1])
	}
	return HM{Hour: clamp(h, 0, 23), Minute: clamp(m, 0, 59)}
}

// IsValidHM accepts strict zero-padded 24h times as well as the looser 1-2
// digit form ("9:5"). Use it before ParseHM to reject garbage input.
func IsValidHM(text string) bool {
	return strictHM.MatchString(text) || looseHM.MatchString(text)
}

func (hm HM) String() string {
	return pad2(hm.Hour) + ":" + pad2(hm.Minute)
}

// Minutes returns the minute of day.
func (hm HM) Minutes() int {
	return hm.Hour*60 + hm.Minute
}

func HMFromMinutes(mins int) HM {
	mins = clamp(mins, 0, 24*60-1)
	return HM{Hour: mins / 60, Minute: mins % 60}
}

// LoadLocation resolves an IANA zone name. An empty name resolves to
// DefaultTimezone.
func LoadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		tz = fallbackZone.Load().(string)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.New("invalid time_zone")
	}
	return loc, nil
}

// ParseDate parses a calendar date in YYYY-MM-DD form. The result is midnight
// UTC and only its year, month and day are meaningful.
func ParseDate(text string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, errors.New("invalid date")
	}
	return d, nil
}

// LocalToUTC interprets date+hm as wall-clock time in loc and returns the
// matching instant in UTC. The zone offset in effect on that date is used, so
// daylight-saving transitions are honoured.
func LocalToUTC(date time.Time, hm HM, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hm.Hour, hm.Minute, 0, 0, loc).UTC()
}

// LocalWeekday is the weekday of the calendar date in loc (Sunday=0).
func LocalWeekday(date time.Time, loc *time.Location) int {
	y, m, d := date.Date()
	return int(time.Date(y, m, d, 12, 0, 0, 0, loc).Weekday())
}

// LocalHM converts an instant back to the wall clock of loc.
func LocalHM(t time.Time, loc *time.Location) (time.Time, HM) {
	lt := t.In(loc)
	y, m, d := lt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), HM{Hour: lt.Hour(), Minute: lt.Minute()}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
