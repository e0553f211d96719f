package history

import (
	"fmt"
	"time"
)

// Field names managed by the store itself.
const (
	FieldID      = "_id"
	FieldDeleted = "deleted"
	FieldHistory = "history"
)

// ReservedFields are never carried by a field diff and can't be written by
// replace or update bodies.
var ReservedFields = []string{FieldID, FieldDeleted, FieldHistory}

// IsReserved reports whether field is one of ReservedFields.
func IsReserved(field string) bool {
	for _, f := range ReservedFields {
		if f == field {
			return true
		}
	}
	return false
}

// IDKey is a string form of a document id that keeps ids of different types
// apart, so "1" and 1 never share a key. Numbers of any Go type share one,
// matching how the store compares them.
func IDKey(id any) string {
	switch v := id.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("n:%v", v)
	}
	return fmt.Sprintf("%T:%v", id, id)
}

// Author is the display name attached to a history entry.
type Author struct {
	Firstname  string `bson:"firstname,omitempty" json:"firstname,omitempty"`
	Lastname   string `bson:"lastname,omitempty" json:"lastname,omitempty"`
	Middlename string `bson:"middlename,omitempty" json:"middlename,omitempty"`
}

// IsZero reports whether no name part is set.
func (a Author) IsZero() bool {
	return a.Firstname == "" && a.Lastname == "" && a.Middlename == ""
}

// Actor attributes a mutation. The zero Actor is anonymous and produces
// entries without author or user fields.
type Actor struct {
	Author *Author
	User   string
}

// Bind builds the Actor for a user id and display name. Empty parts are
// dropped rather than stored as empty values.
func Bind(user string, author Author) Actor {
	a := Actor{User: user}
	if !author.IsZero() {
		name := author
		a.Author = &name
	}
	return a
}

// Entry builds the history entry this actor leaves for diff at date.
func (a Actor) Entry(date time.Time, diff Diff) Entry {
	e := Entry{User: a.User, Date: date, Diff: diff}
	if a.Author != nil {
		name := *a.Author
		e.Author = &name
	}
	return e
}

// Diff maps a field name to its new value. A nil value marks the field as
// removed.
type Diff map[string]any

// Removed lists the fields the diff removes.
func (d Diff) Removed() []string {
	out := []string{}
	for k, v := range d {
		if v == nil {
			out = append(out, k)
		}
	}
	return out
}

// Entry is one immutable record of the history log.
type Entry struct {
	Author *Author   `bson:"author,omitempty" json:"author,omitempty"`
	User   string    `bson:"user,omitempty" json:"user,omitempty"`
	Date   time.Time `bson:"date" json:"date"`
	Diff   Diff      `bson:"diff" json:"diff"`
}

// Document is a mutation body: field names to values, optionally carrying
// the identifier under FieldID.
type Document map[string]any

// Split separates the identifier from the remaining fields.
func (d Document) Split() (any, map[string]any) {
	body := make(map[string]any, len(d))
	for k, v := range d {
		if k == FieldID {
			continue
		}
		body[k] = v
	}
	return d[FieldID], body
}

// Record is a stored document as read back from a repository.
type Record struct {
	ID      any            `bson:"_id" json:"_id"`
	Deleted bool           `bson:"deleted,omitempty" json:"deleted,omitempty"`
	History []Entry        `bson:"history,omitempty" json:"history,omitempty"`
	Fields  map[string]any `bson:",inline" json:"-"`
}
