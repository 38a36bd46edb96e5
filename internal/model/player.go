package model

import "strings"

// Level is the competitive level a player is tracked at.
type Level string

const (
	LevelPro  Level = "Pro"
	LevelNCAA Level = "NCAA"
)

// Known reports whether the level belongs to the supported set.
func (l Level) Known() bool {
	return l == LevelPro || l == LevelNCAA
}

// Role is the primary position bucket used for grading.
type Role string

const (
	RoleHitter  Role = "Hitter"
	RolePitcher Role = "Pitcher"
	RoleTwoWay  Role = "Two-Way"
)

// ParseRole maps a roster cell to a Role. Unknown or empty values are hitters.
func ParseRole(v string) Role {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pitcher", "p", "rhp", "lhp":
		return RolePitcher
	case "two-way", "two way", "twoway", "2-way":
		return RoleTwoWay
	default:
		return RoleHitter
	}
}

// Pitches reports whether the role is graded on its pitching line.
// Two-way players are graded on their hitting line.
func (r Role) Pitches() bool {
	return r == RolePitcher
}

// DefaultRosterPriority is used when the roster tier is missing or invalid.
const DefaultRosterPriority = 99

// Player is the roster identity consumed by the aggregation core.
type Player struct {
	Name           string
	Team           string
	Level          Level
	Role           Role
	Position       string
	RosterPriority int
	IsClient       bool
	DraftClass     string
}

// Key identifies a player across runs for baseline tracking.
func (p Player) Key() string {
	return p.Name + "|" + p.Team
}
