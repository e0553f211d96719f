// Package response assembles the envelope returned to clients of the
// document store.
package response

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gogotex/gogotex/backend/go-history/internal/apperrors"
	"github.com/gogotex/gogotex/backend/go-history/internal/history"
	"github.com/gogotex/gogotex/backend/go-history/internal/misc"
)

// Response is the produced envelope. Unset parts are omitted from JSON.
type Response struct {
	AccessToken string                 `json:"accessToken,omitempty"`
	Allowed     []string               `json:"allowed,omitempty"`
	Doc         any                    `json:"doc,omitempty"`
	List        any                    `json:"list,omitempty"`
	Errors      map[string]any         `json:"errors,omitempty"`
	History     []history.ChangeRecord `json:"history,omitempty"`
	Message     string                 `json:"message,omitempty"`
	OK          *bool                  `json:"ok,omitempty"`
}

// Builder collects response parts. Methods chain and the zero value is not
// usable; call New.
type Builder struct {
	allowed   []string
	forbidden []string
	resp      Response
}

func New() *Builder {
	return &Builder{}
}

// Allow adds actions to the allowed set. Empty and repeated actions are
// ignored.
func (b *Builder) Allow(actions ...string) *Builder {
	b.allowed = addUnique(b.allowed, actions)
	return b
}

// Forbid marks actions that cancel the matching allowed ones in Produce.
func (b *Builder) Forbid(actions ...string) *Builder {
	b.forbidden = addUnique(b.forbidden, actions)
	return b
}

// Document sets "list" for slices and "doc" for anything else.
func (b *Builder) Document(doc any) *Builder {
	if doc != nil && reflect.TypeOf(doc).Kind() == reflect.Slice {
		b.resp.List = doc
	} else {
		b.resp.Doc = doc
	}
	return b
}

// Error sets the message from err. Validation details are expanded into the
// nested "errors" object. Messages of internal failures are replaced by the
// status text.
func (b *Builder) Error(err error) *Builder {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return b.Message(http.StatusText(http.StatusInternalServerError))
	}
	if !appErr.Expose() {
		return b.Message(http.StatusText(appErr.Status()))
	}
	var details []apperrors.Detail
	if appErr.Kind == apperrors.KindValidation {
		details = appErr.Details
	}
	return b.ErrorMessage(appErr.Message, details...)
}

// ErrorMessage sets msg and the "errors" object built from details.
func (b *Builder) ErrorMessage(msg string, details ...apperrors.Detail) *Builder {
	b.Message(msg)
	if len(details) > 0 {
		b.resp.Errors = map[string]any{}
		for _, d := range details {
			setPath(b.resp.Errors, d.Key, d.Message)
		}
	}
	return b
}

func (b *Builder) Fail() *Builder {
	ok := false
	b.resp.OK = &ok
	return b
}

func (b *Builder) Success() *Builder {
	ok := true
	b.resp.OK = &ok
	return b
}

// History renders the entries into the "history" timeline. An empty log
// leaves the response untouched.
func (b *Builder) History(entries []history.Entry) *Builder {
	if len(entries) > 0 {
		b.resp.History = history.Render(entries)
	}
	return b
}

// Timeline sets an already rendered timeline.
func (b *Builder) Timeline(records []history.ChangeRecord) *Builder {
	if len(records) > 0 {
		b.resp.History = records
	}
	return b
}

func (b *Builder) Message(msg string) *Builder {
	b.resp.Message = msg
	return b
}

func (b *Builder) Token(token string) *Builder {
	b.resp.AccessToken = token
	return b
}

// Produce returns the envelope. Actions that were both allowed and
// forbidden are dropped from both sets first.
func (b *Builder) Produce() Response {
	var allowed, forbidden []string
	for _, f := range b.forbidden {
		if !contains(b.allowed, f) {
			forbidden = append(forbidden, f)
		}
	}
	for _, a := range b.allowed {
		if !contains(b.forbidden, a) {
			allowed = append(allowed, a)
		}
	}
	b.allowed, b.forbidden = allowed, forbidden

	out := b.resp
	if len(allowed) > 0 {
		out.Allowed = append([]string(nil), allowed...)
	}
	return out
}

func addUnique(set, values []string) []string {
	for _, v := range values {
		if misc.IsEmpty(v) || contains(set, v) {
			continue
		}
		set = append(set, v)
	}
	return set
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// setPath stores value under a dotted key, creating intermediate objects.
func setPath(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}
