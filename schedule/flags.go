package schedule

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// FLAG KINDS
// =============================================================================

// FlagKind is a closed set of per-shift boolean flags. Each kind carries
// its own editable-window predicate and accessors; adding a flag means
// adding one entry to flagDefs.
type FlagKind int

const (
	FlagStepOut FlagKind = iota + 1
	FlagMealTicket
)

type flagDef struct {
	name     string
	editable func(Classification) bool
	get      func(Shift) bool
	set      func(*Shift, bool)
}

var flagDefs = map[FlagKind]flagDef{
	FlagStepOut: {
		name: "step_out",
		// Today or inside the deadline window; locked once the day is over.
		editable: func(c Classification) bool {
			return !c.Past() && (c.NoDeadline() || c.RequiresApplication())
		},
		get: func(s Shift) bool { return s.StepOut },
		set: func(s *Shift, v bool) { s.StepOut = v },
	},
	FlagMealTicket: {
		name: "meal_ticket",
		// Frozen for today and tomorrow regardless of configuration.
		editable: func(c Classification) bool {
			return c.DaysUntil >= 2 && (c.NoDeadline() || c.RequiresApplication())
		},
		get: func(s Shift) bool { return s.MealTicket },
		set: func(s *Shift, v bool) { s.MealTicket = v },
	},
}

// ParseFlag resolves a flag name such as "step_out".
func ParseFlag(name string) (FlagKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, def := range flagDefs {
		if def.name == name {
			return kind, nil
		}
	}
	return 0, invalid("flag", "unknown flag %q (want one of %s)", name, strings.Join(FlagNames(), ", "))
}

// FlagNames lists every known flag name.
func FlagNames() []string {
	names := make([]string, 0, len(flagDefs))
	for _, def := range flagDefs {
		names = append(names, def.name)
	}
	sort.Strings(names)
	return names
}

func (f FlagKind) def() flagDef {
	def, ok := flagDefs[f]
	if !ok {
		panic(fmt.Sprintf("schedule: unknown FlagKind %d", int(f)))
	}
	return def
}

func (f FlagKind) String() string { return f.def().name }

// Editable reports whether the flag may change for a shift with the given
// classification.
func (f FlagKind) Editable(c Classification) bool { return f.def().editable(c) }

// Value reads the flag from a shift.
func (f FlagKind) Value(s Shift) bool { return f.def().get(s) }

func (f FlagKind) apply(s *Shift, v bool) { f.def().set(s, v) }
