package models

// Scope is a data visibility level attached to a principal for a resource.
// Permission governs the operation; scope governs which rows.
type Scope int

// Scope ordering is total: global ⊇ tenant ⊇ department ⊇ team ⊇ own ⊇ none.
const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeTeam
	ScopeDepartment
	ScopeTenant
	ScopeGlobal
)

var scopeNames = map[Scope]string{
	ScopeNone:       "none",
	ScopeOwn:        "own",
	ScopeTeam:       "team",
	ScopeDepartment: "department",
	ScopeTenant:     "tenant",
	ScopeGlobal:     "global",
}

var scopesByName = map[string]Scope{
	"none":       ScopeNone,
	"own":        ScopeOwn,
	"team":       ScopeTeam,
	"department": ScopeDepartment,
	"tenant":     ScopeTenant,
	"global":     ScopeGlobal,
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "none"
}

// Covers reports whether this scope is at least as broad as other.
func (s Scope) Covers(other Scope) bool {
	return s >= other
}

// ParseScope maps a stored scope name to its level. Unknown names collapse
// to none, the deny-all default.
func ParseScope(name string) Scope {
	if s, ok := scopesByName[name]; ok {
		return s
	}
	return ScopeNone
}

func (s Scope) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Scope) UnmarshalJSON(b []byte) error {
	name := string(b)
	if len(name) >= 2 && name[0] == '"' {
		name = name[1 : len(name)-1]
	}
	*s = ParseScope(name)
	return nil
}

// RecordAttributes carries the ownership attributes of a single record for
// scope admission checks.
type RecordAttributes struct {
	OwnerID      string
	TeamID       string
	DepartmentID string
	TenantID     string
}
