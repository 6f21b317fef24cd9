// Package issue derives tracker issue numbers from branch names.
package issue

import (
	"regexp"
	"strconv"
)

type rule struct {
	name string
	re   *regexp.Regexp
}

// Order matters: the bare "<n>-" rule matches inside every prefixed form
// (feature/12-v2-x contains "2-"), so it must run last. bugfix/ and hotfix/
// come before fix/ because fix/ also matches inside them.
var rules = []rule{
	{"feature", regexp.MustCompile(`feature/(\d+)-`)},
	{"issue", regexp.MustCompile(`issue-(\d+)-`)},
	{"bugfix", regexp.MustCompile(`bugfix/(\d+)-`)},
	{"hotfix", regexp.MustCompile(`hotfix/(\d+)-`)},
	{"fix", regexp.MustCompile(`fix/(\d+)-`)},
	{"bare", regexp.MustCompile(`(\d+)-`)},
}

// Rules returns the rule names in evaluation order.
func Rules() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

// Extract returns the issue number encoded in branch. A capture that does
// not fit in a uint falls through to the next rule.
func Extract(branch string) (uint, bool) {
	n, _, ok := match(branch)
	return n, ok
}

// Match is Extract plus the name of the rule that fired.
func Match(branch string) (uint, string, bool) {
	return match(branch)
}

func match(branch string) (uint, string, bool) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(branch)
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, strconv.IntSize)
		if err != nil {
			continue
		}
		return uint(n), r.name, true
	}
	return 0, "", false
}
