package reconcile

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Flags configure one diff and sync run.
// The struct is embedded in the application config, hence the tags.
type Flags struct {
	// ContinueOnFailure logs a failed record and moves on instead of aborting the run.
	ContinueOnFailure bool `mapstructure:"continue_on_failure" default:"false" json:"continue_on_failure"`
	// SkipUnmatchedDst keeps target records that are absent from the source.
	SkipUnmatchedDst bool `mapstructure:"skip_unmatched_dst" default:"false" json:"skip_unmatched_dst"`
	// LogUnchanged logs records that need no change at info level.
	LogUnchanged bool `mapstructure:"log_unchanged" default:"false" json:"log_unchanged"`
	// DryRun computes and reports the diff without touching the target.
	DryRun bool `mapstructure:"dry_run" default:"false" json:"dry_run"`
}

// Action is what the Synchronizer must do with one record.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionNoChange Action = "no-change"
	ActionSkip     Action = "skip"
)

// Change holds the old (target) and new (source) value of one attribute.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Element is the diff of one record, with the diffs of its children.
type Element struct {
	Type        string            `json:"type"`
	UniqueID    string            `json:"unique_id"`
	Identifiers map[string]any    `json:"identifiers"`
	Action      Action            `json:"action"`
	Reason      string            `json:"reason,omitempty"`
	Source      map[string]any    `json:"source,omitempty"`
	Dest        map[string]any    `json:"dest,omitempty"`
	Changed     map[string]Change `json:"changed,omitempty"`
	Children    []*Element        `json:"children,omitempty"`
}

// Actionable reports whether the element requires a write.
func (e *Element) Actionable() bool {
	return e.Action == ActionCreate || e.Action == ActionUpdate || e.Action == ActionDelete
}

// Diff is the ordered result of comparing a source and a target store.
type Diff struct {
	// Types lists the top-level types in the order they were diffed.
	Types []string `json:"types"`
	// Elements are the top-level elements, grouped by type in Types order.
	Elements []*Element `json:"elements"`
}

// Summary counts elements by action.
type Summary struct {
	Create   int `json:"create"`
	Update   int `json:"update"`
	Delete   int `json:"delete"`
	NoChange int `json:"no_change"`
	Skip     int `json:"skip"`
}

// Walk visits every element depth-first, parents before children.
func (d *Diff) Walk(fn func(e *Element, depth int)) {
	var visit func(list []*Element, depth int)
	visit = func(list []*Element, depth int) {
		for _, e := range list {
			fn(e, depth)
			visit(e.Children, depth+1)
		}
	}
	visit(d.Elements, 0)
}

// Summary counts all elements, children included.
func (d *Diff) Summary() Summary {
	var s Summary
	d.Walk(func(e *Element, _ int) {
		switch e.Action {
		case ActionCreate:
			s.Create++
		case ActionUpdate:
			s.Update++
		case ActionDelete:
			s.Delete++
		case ActionNoChange:
			s.NoChange++
		case ActionSkip:
			s.Skip++
		}
	})
	return s
}

// HasDiffs reports whether any element requires a write.
func (d *Diff) HasDiffs() bool {
	found := false
	d.Walk(func(e *Element, _ int) {
		if e.Actionable() {
			found = true
		}
	})
	return found
}

// Dict renders the audit report: type -> unique id -> {"+": attrs, "-": attrs, "~": {attr: [old, new]}}.
// Only actionable elements appear; children are flattened into their own type.
func (d *Diff) Dict() map[string]map[string]map[string]any {
	out := make(map[string]map[string]map[string]any)
	d.Walk(func(e *Element, _ int) {
		if !e.Actionable() {
			return
		}
		entry := make(map[string]any, 1)
		switch e.Action {
		case ActionCreate:
			entry["+"] = copyAttrs(e.Source)
		case ActionDelete:
			entry["-"] = copyAttrs(e.Dest)
		case ActionUpdate:
			changed := make(map[string]any, len(e.Changed))
			for attr, c := range e.Changed {
				changed[attr] = []any{c.Old, c.New}
			}
			entry["~"] = changed
		}
		byID, ok := out[e.Type]
		if !ok {
			byID = make(map[string]map[string]any)
			out[e.Type] = byID
		}
		byID[e.UniqueID] = entry
	})
	return out
}

// JSON encodes Dict.
func (d *Diff) JSON() ([]byte, error) {
	return json.Marshal(d.Dict())
}

// String renders a human-readable tree of actionable elements.
func (d *Diff) String() string {
	var b strings.Builder
	d.Walk(func(e *Element, depth int) {
		if !e.Actionable() {
			return
		}
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(&b, "%s%s %s %s\n", indent, symbol(e.Action), e.Type, e.UniqueID)
		if e.Action == ActionUpdate {
			attrs := make([]string, 0, len(e.Changed))
			for a := range e.Changed {
				attrs = append(attrs, a)
			}
			sort.Strings(attrs)
			for _, a := range attrs {
				fmt.Fprintf(&b, "%s    %s: %v -> %v\n", indent, a, e.Changed[a].Old, e.Changed[a].New)
			}
		}
	})
	if b.Len() == 0 {
		return "(no changes)\n"
	}
	return b.String()
}

func symbol(a Action) string {
	switch a {
	case ActionCreate:
		return "+"
	case ActionDelete:
		return "-"
	default:
		return "~"
	}
}

func copyAttrs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Failure records one record that could not be applied.
type Failure struct {
	Type     string `json:"type"`
	UniqueID string `json:"unique_id"`
	Action   Action `json:"action"`
	Error    string `json:"error"`
}

// Result counts what the Synchronizer did.
type Result struct {
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Failures  []Failure     `json:"failures,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
}

// HasChanges reports whether any write was applied.
func (r *Result) HasChanges() bool {
	return r.Created > 0 || r.Updated > 0 || r.Deleted > 0
}
