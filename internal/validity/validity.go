package validity

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	plainDaysRe = regexp.MustCompile(`^\d+$`)
	formatRe    = regexp.MustCompile(`^(\d+y)?(\d+m)?(\d+d)?$`)
	dayRe       = regexp.MustCompile(`(\d+)d`)
	monthRe     = regexp.MustCompile(`(\d+)m`)
	yearRe      = regexp.MustCompile(`(\d+)y`)
)

// Period is a calendar span such as 10y or 1y6m.
type Period struct {
	Years  int
	Months int
	Days   int
}

// Parse parses a period string: 30d, 6m, 1y, 1y6m, or a plain number of days.
func Parse(s string) (Period, error) {
	if s == "" {
		return Period{}, fmt.Errorf("validity period cannot be empty")
	}

	if plainDaysRe.MatchString(s) {
		days, err := strconv.Atoi(s)
		if err != nil {
			return Period{}, fmt.Errorf("invalid numeric validity value: %v", err)
		}
		return Period{Days: days}, nil
	}

	if !formatRe.MatchString(s) {
		return Period{}, fmt.Errorf("invalid validity format: %s (expected formats: 30d, 6m, 1y, 1y6m, or plain number for days)", s)
	}

	var p Period
	var err error
	if p.Years, err = component(yearRe, s); err != nil {
		return Period{}, err
	}
	if p.Months, err = component(monthRe, s); err != nil {
		return Period{}, err
	}
	if p.Days, err = component(dayRe, s); err != nil {
		return Period{}, err
	}

	if p.IsZero() {
		return Period{}, fmt.Errorf("invalid validity format: %s", s)
	}
	return p, nil
}

func component(re *regexp.Regexp, s string) (int, error) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("invalid validity value %q: %v", m[0], err)
	}
	return n, nil
}

func (p Period) IsZero() bool {
	return p.Years == 0 && p.Months == 0 && p.Days == 0
}

// AddTo returns t moved forward by the period.
func (p Period) AddTo(t time.Time) time.Time {
	return t.AddDate(p.Years, p.Months, p.Days)
}

func (p Period) String() string {
	s := ""
	if p.Years > 0 {
		s += fmt.Sprintf("%dy", p.Years)
	}
	if p.Months > 0 {
		s += fmt.Sprintf("%dm", p.Months)
	}
	if p.Days > 0 || s == "" {
		s += fmt.Sprintf("%dd", p.Days)
	}
	return s
}
