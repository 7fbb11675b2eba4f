/*
classifier.go - Raw status text to canonical lifecycle state

PURPOSE:
  The source listing describes each claim's status as free text
  ("Assigned to ALJ Smith", "Pending", "On March 14th Agenda", ...).
  Classify maps that text to Pending, Assigned or Closed, and for Closed
  claims extracts the agenda date used as the resolution date.

RULES (evaluated top to bottom, first match wins):
  1. word "Assigned"                              -> Assigned
  2. word "Pending", "Unassigned" or "Not"        -> Pending
  3. "On <MonthName> <Day><st|nd|rd|th> Agenda"   -> Closed on that day
  4. "On <MM>/<DD><st|nd|rd|th> Agenda"           -> Closed on that day
  5. anything else                                -> ValidationError

  The agenda text carries no year; the snapshot's year is used.
  Adding an agenda format is a new entry in statusRules.

SEE ALSO:
  - engine.go: Classifies every row before merging
  - errors.go: ValidationError
*/
package claims

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Classification is the classifier's verdict for one status text.
type Classification struct {
	Status         Status
	ResolutionDate *Date // set only when Status is Closed
}

// statusRule is one entry of the ordered rule table. match reports whether
// the rule applies; a matching rule may still fail (e.g. February 30th).
type statusRule struct {
	name  string
	match func(text string, reportYear int) (Classification, bool, error)
}

var (
	assignedWord = regexp.MustCompile(`(?i)\bassigned\b`)
	pendingWord  = regexp.MustCompile(`(?i)\b(pending|unassigned|not)\b`)

	agendaMonthName = regexp.MustCompile(`(?i)\bon\s+([a-z]+)\.?\s+(\d{1,2})\s*(?:st|nd|rd|th)\s+agenda\b`)
	agendaNumeric   = regexp.MustCompile(`(?i)\bon\s+(\d{1,2})\s*/\s*(\d{1,2})\s*(?:st|nd|rd|th)\s+agenda\b`)
)

var statusRules = []statusRule{
	{name: "assigned", match: keywordRule(assignedWord, StatusAssigned)},
	{name: "pending", match: keywordRule(pendingWord, StatusPending)},
	{name: "agenda-month-name", match: agendaRule(agendaMonthName, parseMonthName)},
	{name: "agenda-numeric", match: agendaRule(agendaNumeric, parseMonthNumber)},
}

// Classify maps raw status text to a canonical state. reportYear supplies
// the year for agenda dates. Unrecognized text returns a *ValidationError.
func Classify(raw string, reportYear int) (Classification, error) {
	text := strings.Join(strings.Fields(raw), " ")
	for _, rule := range statusRules {
		c, ok, err := rule.match(text, reportYear)
		if err != nil {
			return Classification{}, err
		}
		if ok {
			return c, nil
		}
	}
	return Classification{}, &ValidationError{Row: -1, Status: raw}
}

func keywordRule(re *regexp.Regexp, status Status) func(string, int) (Classification, bool, error) {
	return func(text string, _ int) (Classification, bool, error) {
		if !re.MatchString(text) {
			return Classification{}, false, nil
		}
		return Classification{Status: status}, true, nil
	}
}

func agendaRule(re *regexp.Regexp, month func(string) (time.Month, bool)) func(string, int) (Classification, bool, error) {
	return func(text string, reportYear int) (Classification, bool, error) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return Classification{}, false, nil
		}
		mon, ok := month(m[1])
		if !ok {
			return Classification{}, false, &ValidationError{Row: -1, Status: text, Reason: "unknown month " + m[1]}
		}
		day, _ := strconv.Atoi(m[2])
		d := NewDate(reportYear, mon, day)
		// time.Date normalizes overflow; February 30th is an error, not March 2nd.
		if d.Month() != mon || d.Day() != day {
			return Classification{}, false, &ValidationError{Row: -1, Status: text, Reason: "no such day"}
		}
		return Classification{Status: StatusClosed, ResolutionDate: &d}, true, nil
	}
}

func parseMonthName(s string) (time.Month, bool) {
	name := strings.ToLower(s)
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || (len(name) == 3 && name == full[:3]) || (name == "sept" && m == time.September) {
			return m, true
		}
	}
	return 0, false
}

func parseMonthNumber(s string) (time.Month, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return time.Month(n), true
}
