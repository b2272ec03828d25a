// Package cronast parses 5-field and 7-field (seconds + year) crontabs into
// a location-agnostic abstract syntax tree and computes the next matching
// naive (location-less) instant.
//
// This package deliberately does not depend on time.Location: the DST
// gap/ambiguity handling required by the scheduler (see internal/schedule)
// needs full control over the naive-time-to-zoned-instant step, which no
// third-party cron library in the example pack exposes as a seam. See
// DESIGN.md for the fuller justification.
package cronast

import (
	"fmt"
	"strconv"
	"strings"
)

// fieldSet is a bitset over small integer ranges (seconds, minutes, hours,
// day-of-month, month, day-of-week all fit in 64 bits).
type fieldSet struct {
	bits     uint64
	wildcard bool
}

func (f fieldSet) match(v int) bool {
	if f.wildcard {
		return true
	}
	if v < 0 || v >= 64 {
		return false
	}
	return f.bits&(1<<uint(v)) != 0
}

func (f *fieldSet) set(v int) { f.bits |= 1 << uint(v) }

// yearSet holds an optional explicit set of years; wildcard means "any year".
type yearSet struct {
	wildcard bool
	years    []int // sorted ascending, deduplicated
}

func (y yearSet) match(v int) bool {
	if y.wildcard {
		return true
	}
	for _, yy := range y.years {
		if yy == v {
			return true
		}
	}
	return false
}

// nextYearAtLeast returns the smallest configured year >= v, and whether one exists.
func (y yearSet) nextYearAtLeast(v int) (int, bool) {
	if y.wildcard {
		return v, true
	}
	for _, yy := range y.years {
		if yy >= v {
			return yy, true
		}
	}
	return 0, false
}

func (y yearSet) maxYear() (int, bool) {
	if y.wildcard || len(y.years) == 0 {
		return 0, false
	}
	return y.years[len(y.years)-1], true
}

// AST is a parsed crontab. A 5-field crontab leaves HasSeconds false and Year
// wildcard; a 7-field extended crontab sets both.
type AST struct {
	HasSeconds bool

	second fieldSet // only meaningful if HasSeconds
	minute fieldSet
	hour   fieldSet
	dom    fieldSet
	month  fieldSet
	dow    fieldSet
	year   yearSet

	domRestricted bool // dom field was not "*"
	dowRestricted bool // dow field was not "*"

	source string
}

func (a *AST) String() string { return a.source }

// Parse parses either a 5-field (minute hour dom month dow) or 7-field
// (second minute hour dom month dow year) crontab, chosen by field count.
func Parse(expr string) (*AST, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	switch len(fields) {
	case 5:
		return parseFields(expr, "", fields[0], fields[1], fields[2], fields[3], fields[4], "")
	case 7:
		return parseFields(expr, fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6])
	default:
		return nil, fmt.Errorf("cronast: expected 5 or 7 fields, got %d in %q", len(fields), expr)
	}
}

// Parse5 parses a standard 5-field crontab (minute hour dom month dow).
func Parse5(expr string) (*AST, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 {
		return nil, fmt.Errorf("cronast: expected 5 fields, got %d in %q", len(fields), expr)
	}
	return parseFields(expr, "", fields[0], fields[1], fields[2], fields[3], fields[4], "")
}

// Parse7 parses an extended 7-field crontab (second minute hour dom month dow year).
func Parse7(expr string) (*AST, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 7 {
		return nil, fmt.Errorf("cronast: expected 7 fields, got %d in %q", len(fields), expr)
	}
	return parseFields(expr, fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6])
}

func parseFields(source, secStr, minStr, hourStr, domStr, monStr, dowStr, yearStr string) (*AST, error) {
	a := &AST{source: source}

	if secStr != "" {
		a.HasSeconds = true
		fs, err := parseField(secStr, 0, 59)
		if err != nil {
			return nil, fmt.Errorf("cronast: second field: %w", err)
		}
		a.second = fs
	} else {
		a.second = fieldSet{wildcard: false}
		a.second.set(0)
	}

	var err error
	if a.minute, err = parseField(minStr, 0, 59); err != nil {
		return nil, fmt.Errorf("cronast: minute field: %w", err)
	}
	if a.hour, err = parseField(hourStr, 0, 23); err != nil {
		return nil, fmt.Errorf("cronast: hour field: %w", err)
	}
	if a.dom, err = parseField(domStr, 1, 31); err != nil {
		return nil, fmt.Errorf("cronast: day-of-month field: %w", err)
	}
	a.domRestricted = strings.TrimSpace(domStr) != "*"
	if a.month, err = parseField(applyAliases(monStr, monthAliases), 1, 12); err != nil {
		return nil, fmt.Errorf("cronast: month field: %w", err)
	}
	if a.dow, err = parseField(applyAliases(dowStr, dowAliases), 0, 7); err != nil {
		return nil, fmt.Errorf("cronast: day-of-week field: %w", err)
	}
	a.dowRestricted = strings.TrimSpace(dowStr) != "*"
	// 7 folds into 0 (both mean Sunday).
	if a.dow.match(7) {
		a.dow.set(0)
	}

	if strings.TrimSpace(yearStr) == "" || strings.TrimSpace(yearStr) == "*" {
		a.year = yearSet{wildcard: true}
	} else {
		ys, err := parseYearField(yearStr)
		if err != nil {
			return nil, fmt.Errorf("cronast: year field: %w", err)
		}
		a.year = ys
	}

	return a, nil
}

var monthAliases = map[string]string{
	"jan": "1", "feb": "2", "mar": "3", "apr": "4", "may": "5", "jun": "6",
	"jul": "7", "aug": "8", "sep": "9", "oct": "10", "nov": "11", "dec": "12",
}

var dowAliases = map[string]string{
	"sun": "0", "mon": "1", "tue": "2", "wed": "3", "thu": "4", "fri": "5", "sat": "6",
}

// applyAliases lowercases and substitutes any three-letter name tokens
// (jan..dec, sun..sat) inside a field expression with their numeric value,
// leaving separators (",", "-", "/", "*") untouched.
func applyAliases(raw string, aliases map[string]string) string {
	lower := strings.ToLower(raw)
	var b strings.Builder
	i := 0
	for i < len(lower) {
		if i+3 <= len(lower) {
			if num, ok := aliases[lower[i:i+3]]; ok {
				b.WriteString(num)
				i += 3
				continue
			}
		}
		b.WriteByte(lower[i])
		i++
	}
	return b.String()
}

// parseField parses a single cron field (list of ranges/steps/wildcards) into a bitset.
func parseField(raw string, lo, hi int) (fieldSet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fieldSet{}, fmt.Errorf("empty field")
	}
	var fs fieldSet
	for _, part := range strings.Split(raw, ",") {
		if err := parseFieldPart(part, lo, hi, &fs); err != nil {
			return fieldSet{}, err
		}
	}
	return fs, nil
}

func parseFieldPart(part string, lo, hi int, fs *fieldSet) error {
	step := 1
	rangePart := part
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		rangePart = part[:idx]
		s, err := strconv.Atoi(part[idx+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step in %q", part)
		}
		step = s
	}

	start, end := lo, hi
	switch {
	case rangePart == "*" || rangePart == "":
		if step == 1 {
			fs.wildcard = true
			return nil
		}
	case strings.Contains(rangePart, "-"):
		bounds := strings.SplitN(rangePart, "-", 2)
		if len(bounds) != 2 {
			return fmt.Errorf("invalid range %q", rangePart)
		}
		a, err := strconv.Atoi(bounds[0])
		if err != nil {
			return fmt.Errorf("invalid range start %q", bounds[0])
		}
		b, err := strconv.Atoi(bounds[1])
		if err != nil {
			return fmt.Errorf("invalid range end %q", bounds[1])
		}
		start, end = a, b
	default:
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return fmt.Errorf("invalid value %q", rangePart)
		}
		if step == 1 {
			if v < lo || v > hi {
				return fmt.Errorf("value %d out of range [%d,%d]", v, lo, hi)
			}
			fs.set(v)
			return nil
		}
		start, end = v, hi
	}

	if start < lo || end > hi || start > end {
		return fmt.Errorf("range %d-%d out of bounds [%d,%d]", start, end, lo, hi)
	}
	for v := start; v <= end; v += step {
		fs.set(v)
	}
	return nil
}

func parseYearField(raw string) (yearSet, error) {
	raw = strings.TrimSpace(raw)
	var ys yearSet
	seen := map[int]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		step := 1
		rangePart := part
		if idx := strings.IndexByte(part, '/'); idx >= 0 {
			rangePart = part[:idx]
			s, err := strconv.Atoi(part[idx+1:])
			if err != nil || s <= 0 {
				return yearSet{}, fmt.Errorf("invalid step in %q", part)
			}
			step = s
		}
		if strings.Contains(rangePart, "-") {
			bounds := strings.SplitN(rangePart, "-", 2)
			a, err := strconv.Atoi(bounds[0])
			if err != nil {
				return yearSet{}, fmt.Errorf("invalid year range start %q", bounds[0])
			}
			b, err := strconv.Atoi(bounds[1])
			if err != nil {
				return yearSet{}, fmt.Errorf("invalid year range end %q", bounds[1])
			}
			for v := a; v <= b; v += step {
				seen[v] = true
			}
			continue
		}
		v, err := strconv.Atoi(rangePart)
		if err != nil {
			return yearSet{}, fmt.Errorf("invalid year %q", rangePart)
		}
		seen[v] = true
	}
	for y := range seen {
		ys.years = append(ys.years, y)
	}
	sortInts(ys.years)
	return ys, nil
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// dayMatches implements the standard cron OR-rule: if both dom and dow are
// restricted (not "*"), a day matches if EITHER matches; if only one is
// restricted, that one alone governs; if neither is restricted, every day matches.
func (a *AST) dayMatches(dom, dow int) bool {
	switch {
	case a.domRestricted && a.dowRestricted:
		return a.dom.match(dom) || a.dow.match(dow)
	case a.domRestricted:
		return a.dom.match(dom)
	case a.dowRestricted:
		return a.dow.match(dow)
	default:
		return true
	}
}
