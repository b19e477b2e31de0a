// Package intent extracts list mutations from chat messages with a
// prioritised set of regular-expression rules.
package intent

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
)

// Detector evaluates rules grouped by priority, highest first. The first group
// with any match wins; lower groups are not evaluated.
type Detector struct {
	groups [][]Rule
}

// NewDetector groups rules by priority. Rule order within a group is kept.
func NewDetector(rules []Rule) *Detector {
	sorted := append([]Rule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	var groups [][]Rule
	for i, r := range sorted {
		if i == 0 || r.Priority != sorted[i-1].Priority {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], r)
	}
	return &Detector{groups: groups}
}

// Detect returns the intents found in message, in rule order.
func (d *Detector) Detect(message string) []domintent.Intent {
	for _, group := range d.groups {
		var found []domintent.Intent
		for i := range group {
			in, ok := group[i].apply(message)
			if !ok {
				continue
			}
			if group[i].Exclusive {
				return []domintent.Intent{in}
			}
			found = append(found, in)
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

func (r *Rule) apply(message string) (domintent.Intent, bool) {
	if r.Guard != nil && !r.Guard.MatchString(message) {
		return domintent.Intent{}, false
	}
	m := r.Pattern.FindStringSubmatch(message)
	if m == nil || r.TitleGroup >= len(m) {
		return domintent.Intent{}, false
	}

	ref := cleanTitle(m[r.TitleGroup])
	if ref == "" {
		return domintent.Intent{}, false
	}

	var arg *float64
	if r.ArgGroup > 0 && r.ArgGroup < len(m) && m[r.ArgGroup] != "" {
		// Overflow yields ±Inf with ErrRange; keep it so the rating clamps.
		v, err := strconv.ParseFloat(m[r.ArgGroup], 64)
		if err == nil || errors.Is(err, strconv.ErrRange) {
			arg = &v
		}
	}
	if r.ArgRequired && arg == nil {
		return domintent.Intent{}, false
	}

	return domintent.Intent{
		Operation:  r.Operation,
		Status:     r.Status,
		Kind:       r.Kind,
		TitleQuery: ref,
		NumericArg: arg,
		Rule:       r.Name,
	}, true
}

func cleanTitle(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'“”‘’`))
}
