package history

import "sort"

// Timeline actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionRestored = "restored"
)

// ChangeRecord is the display view of one history entry.
type ChangeRecord struct {
	Action    string         `json:"action"`
	Author    *Author        `json:"author,omitempty"`
	Date      int64          `json:"date,omitempty"`
	Deletions []string       `json:"deletions,omitempty"`
	Updates   map[string]any `json:"updates,omitempty"`
	User      string         `json:"user,omitempty"`
}

// Render classifies a history log, oldest first, into change records.
//
// The first entry is always "created" and never lists deletions. When it is
// the only entry it carries no updates either; consumers rely on that.
func Render(entries []Entry) []ChangeRecord {
	out := make([]ChangeRecord, 0, len(entries))
	for i, e := range entries {
		rec := ChangeRecord{
			Action: action(i, e.Diff),
			User:   e.User,
		}
		if e.Author != nil {
			name := *e.Author
			rec.Author = &name
		}
		if !e.Date.IsZero() {
			rec.Date = e.Date.UnixMilli()
		}
		if i > 0 {
			rec.Deletions = deletions(e.Diff)
		}
		if i > 0 || len(entries) > 1 {
			rec.Updates = updates(e.Diff)
		}
		out = append(out, rec)
	}
	return out
}

func action(i int, d Diff) string {
	if i == 0 {
		return ActionCreated
	}
	if state, ok := d[FieldDeleted].(bool); ok {
		if state {
			return ActionDeleted
		}
		return ActionRestored
	}
	return ActionUpdated
}

func deletions(d Diff) []string {
	var out []string
	for k, v := range d {
		if v == nil && k != FieldDeleted {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func updates(d Diff) map[string]any {
	var out map[string]any
	for k, v := range d {
		if v == nil || k == FieldDeleted {
			continue
		}
		if out == nil {
			out = map[string]any{}
		}
		out[k] = v
	}
	return out
}
