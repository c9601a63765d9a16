package reservation

import (
	"crypto/sha1"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultURL is the Mt. St. Helens climbing permit page.
const DefaultURL = "https://www.recreation.gov/permits/4675309"

var (
	// ErrInvalidQuery is returned by Validate for malformed queries
	ErrInvalidQuery = errors.New("invalid reservation query")

	// ErrPastMonth is returned when the requested month is before the current month
	ErrPastMonth = errors.New("cannot reserve back in time")
)

// Query describes the permit date and group size to watch for
type Query struct {
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	Year      int    `json:"year"`
	GroupSize int    `json:"group_size"`
	URL       string `json:"url"`
}

// Date returns the requested day as a UTC midnight time
func (q Query) Date() time.Time {
	return time.Date(q.Year, time.Month(q.Month), q.Day, 0, 0, 0, 0, time.UTC)
}

// FormattedDate returns the calendar label for the requested day
func (q Query) FormattedDate() string {
	return FormatDate(q.Year, q.Month, q.Day)
}

// ID creates a deterministic identifier for the query based on its date and URL
func (q Query) ID() string {
	h := sha1.New()
	h.Write([]byte(fmt.Sprintf("%04d-%02d-%02d|%s", q.Year, q.Month, q.Day, q.URL)))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Validate checks that the query names a real calendar day, a positive group
// size and an http(s) URL.
func (q Query) Validate() error {
	if q.Month < 1 || q.Month > 12 {
		return fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidQuery, q.Month)
	}
	if q.Year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidQuery, q.Year)
	}
	if q.Day < 1 || q.Day > DaysIn(q.Year, q.Month) {
		return fmt.Errorf("%w: day %d does not exist in %s %d", ErrInvalidQuery, q.Day, time.Month(q.Month), q.Year)
	}
	if q.GroupSize < 1 {
		return fmt.Errorf("%w: group size must be at least 1", ErrInvalidQuery)
	}

	u, err := url.Parse(strings.TrimSpace(q.URL))
	if err != nil {
		return fmt.Errorf("%w: parsing url: %v", ErrInvalidQuery, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url must be http or https, got %q", ErrInvalidQuery, q.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no host", ErrInvalidQuery, q.URL)
	}

	return nil
}
