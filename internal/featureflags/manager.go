// Package featureflags evaluates the FEATURE_FLAGS setting.
//
// The setting is a comma-separated list of name=value rules, e.g.
//
//	ranked_feed=25%,studio_map=on,quote_chat=users:4|17
//
// A value is on/off (true/false, 1/0 also accepted), a percentage rollout
// bucketed per user, or an explicit user allowlist.
package featureflags

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Mode is how a rule decides.
type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModePercent
	ModeUsers
)

// Rule is one parsed flag definition.
type Rule struct {
	Name    string
	Value   string
	Mode    Mode
	Percent int
	Users   map[uint]struct{}
}

// Manager holds the parsed rules. A nil Manager reports every flag off.
type Manager struct {
	rules map[string]Rule
}

// NewManager parses raw. Malformed entries are skipped.
func NewManager(raw string) *Manager {
	rules := make(map[string]Rule)
	for _, entry := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		rule, ok := parseRule(normalize(name), normalize(value))
		if !ok {
			continue
		}
		rules[rule.Name] = rule
	}
	return &Manager{rules: rules}
}

func parseRule(name, value string) (Rule, bool) {
	if name == "" || value == "" {
		return Rule{}, false
	}
	r := Rule{Name: name, Value: value}

	switch {
	case value == "on" || value == "true" || value == "1":
		r.Mode = ModeOn
	case value == "off" || value == "false" || value == "0":
		r.Mode = ModeOff
	case strings.HasSuffix(value, "%"):
		pct, err := strconv.Atoi(strings.TrimSuffix(value, "%"))
		if err != nil {
			return Rule{}, false
		}
		r.Mode = ModePercent
		r.Percent = max(0, min(pct, 100))
	case strings.HasPrefix(value, "users:"):
		r.Mode = ModeUsers
		r.Users = make(map[uint]struct{})
		for _, id := range strings.Split(strings.TrimPrefix(value, "users:"), "|") {
			n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
			if err != nil || n == 0 {
				continue
			}
			r.Users[uint(n)] = struct{}{}
		}
	default:
		return Rule{}, false
	}
	return r, true
}

// Enabled reports whether name is on for userID. Percentage and allowlist
// rules never match anonymous callers (userID 0) unless fully rolled out.
func (m *Manager) Enabled(name string, userID uint) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	if !ok {
		return false
	}

	switch r.Mode {
	case ModeOn:
		return true
	case ModePercent:
		if r.Percent >= 100 {
			return true
		}
		if r.Percent == 0 || userID == 0 {
			return false
		}
		return bucket(r.Name, userID) < uint64(r.Percent)
	case ModeUsers:
		_, ok := r.Users[userID]
		return ok
	}
	return false
}

// Raw returns the configured value of every flag.
func (m *Manager) Raw() map[string]string {
	if m == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(m.rules))
	for name, r := range m.rules {
		out[name] = r.Value
	}
	return out
}

// Snapshot evaluates every flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	out := make(map[string]bool, len(m.rules))
	for name := range m.rules {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bucket places a user in [0,100) for one flag. Different flags get
// independent buckets.
func bucket(name string, userID uint) uint64 {
	return xxhash.Sum64String(name+":"+strconv.FormatUint(uint64(userID), 10)) % 100
}
