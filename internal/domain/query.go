package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the date format of query bounds and the date picker.
const DateLayout = "2006-01-02"

// DefaultLimit is the number of events requested when no limit is given.
const DefaultLimit = 10

// minYear is the earliest year the date picker offers.
const minYear = 1900

var (
	// ErrInvalidDate is returned for malformed or out-of-range date bounds.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidLimit is returned for a non-positive or non-numeric limit.
	ErrInvalidLimit = errors.New("invalid limit")
)

// Sources is the provider allow-list every event query is scoped to.
var Sources = []string{
	"AVO", "ABFIRE", "AU_BOM", "BYU_ICE", "BCWILDFIRE", "CALFIRE",
	"CEMS", "EO", "FEMA", "FloodList", "GDACS", "GLIDE", "InciWeb",
	"IDC", "JTWC", "MRR", "MBFIRE", "NASA_ESRS", "NASA_DISP",
	"NASA_HURR", "NOAA_NHC", "NOAA_CPC", "PDC", "ReliefWeb",
	"SIVolcano", "NATICE", "UNISYS", "USGS_EHP", "USGS_CMT",
	"HDDS", "DFES_WA",
}

// EventQuery holds the optional filters of an event-list request.
// Empty Start or End means unbounded on that side.
type EventQuery struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
	Limit int    `json:"limit"`
}

// ParseLimit reads a limit input. An empty string yields DefaultLimit.
func ParseLimit(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLimit, s)
	}
	return n, nil
}

// Normalize trims the date bounds and applies DefaultLimit to a zero limit.
func (q EventQuery) Normalize() EventQuery {
	q.Start = strings.TrimSpace(q.Start)
	q.End = strings.TrimSpace(q.End)
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// Validate checks the limit and both date bounds against the date picker's
// constraints: YYYY-MM-DD, years 1900 through the current year, start <= end.
func (q EventQuery) Validate() error {
	if q.Limit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, q.Limit)
	}

	start, err := parseBound("start", q.Start)
	if err != nil {
		return err
	}
	end, err := parseBound("end", q.End)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidDate, q.Start, q.End)
	}
	return nil
}

// Params encodes the query for a category's event-list link.
func (q EventQuery) Params() url.Values {
	params := url.Values{
		"source": {strings.Join(Sources, ",")},
		"limit":  {strconv.Itoa(q.Limit)},
	}
	if q.Start != "" {
		params.Set("start", q.Start)
	}
	if q.End != "" {
		params.Set("end", q.End)
	}
	return params
}

func parseBound(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q is not YYYY-MM-DD", ErrInvalidDate, name, s)
	}
	if y := t.Year(); y < minYear || y > clock.Now().Year() {
		return time.Time{}, fmt.Errorf("%w: %s year %d outside %d-%d", ErrInvalidDate, name, y, minYear, clock.Now().Year())
	}
	return t, nil
}
