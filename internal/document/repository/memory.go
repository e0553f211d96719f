package repository

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

// MemoryRepo keeps documents in process. Mutations run under one lock, which
// gives the same per-document atomicity the engine expects from MongoDB.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*history.Record
	now   func() time.Time
	last  time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*history.Record), now: time.Now}
}

func keyOf(id any) string { return history.IDKey(id) }

// cloneValue deep-copies maps and slices so stored records share nothing
// with callers.
func cloneValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return cloneFields(t)
	case history.Diff:
		return history.Diff(cloneFields(t))
	case []any:
		return cloneSlice(t)
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: cloneValue(e.Value)}
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), reflectValue(cloneValue(iter.Value().Interface()), rv.Type().Elem()))
		}
		return out.Interface()
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out.Index(i).Set(reflectValue(cloneValue(rv.Index(i).Interface()), rv.Type().Elem()))
		}
		return out.Interface()
	}
	return v
}

// reflectValue wraps v for storing into a container of element type t.
func reflectValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}

func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneEntries(entries []history.Entry) []history.Entry {
	if entries == nil {
		return nil
	}
	out := make([]history.Entry, len(entries))
	for i, e := range entries {
		out[i] = e
		if e.Author != nil {
			name := *e.Author
			out[i].Author = &name
		}
		out[i].Diff = history.Diff(cloneFields(e.Diff))
	}
	return out
}

// stamp returns the write time, strictly after the previous one. Must be
// called with mu held.
func (m *MemoryRepo) stamp() time.Time {
	t := m.now().UTC().Truncate(time.Millisecond)
	if !t.After(m.last) {
		t = m.last.Add(time.Millisecond)
	}
	m.last = t
	return t
}

func (m *MemoryRepo) Replace(ctx context.Context, id any, body map[string]any, actor history.Actor) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	body = cloneFields(body)
	key := keyOf(id)
	res := WriteResult{Matched: 1}
	cur, ok := m.store[key]
	if !ok {
		cur = &history.Record{ID: cloneValue(id)}
		res = WriteResult{Upserted: 1}
	}
	next := &history.Record{
		ID:      cur.ID,
		Deleted: cur.Deleted,
		History: cur.History,
		Fields:  body,
	}
	if diff := history.ReplaceDiff(cur.Fields, body); len(diff) > 0 {
		next.History = append(slices.Clone(cur.History), actor.Entry(m.stamp(), diff))
	}
	m.store[key] = next
	return res, nil
}

func (m *MemoryRepo) Update(ctx context.Context, id any, set map[string]any, unset []string, actor history.Actor) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(id)
	cur, ok := m.store[key]
	if !ok {
		return WriteResult{}, nil
	}
	set = cloneFields(set)
	fields := maps.Clone(cur.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	diff := history.UpdateDiff(cur.Fields, set, unset)
	for k, v := range set {
		fields[k] = v
	}
	for _, k := range unset {
		delete(fields, k)
	}
	next := &history.Record{ID: cur.ID, Deleted: cur.Deleted, History: cur.History, Fields: fields}
	if len(diff) > 0 {
		next.History = append(slices.Clone(cur.History), actor.Entry(m.stamp(), diff))
	}
	m.store[key] = next
	return WriteResult{Matched: 1}, nil
}

func (m *MemoryRepo) SetDeleted(ctx context.Context, id any, state bool, actor history.Actor) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyOf(id)
	cur, ok := m.store[key]
	if !ok {
		return false, nil
	}
	if cur.Deleted == state {
		return true, nil
	}
	m.store[key] = &history.Record{
		ID:      cur.ID,
		Deleted: state,
		History: append(slices.Clone(cur.History), actor.Entry(m.stamp(), history.Diff{history.FieldDeleted: state})),
		Fields:  cur.Fields,
	}
	return true, nil
}

func (m *MemoryRepo) Get(ctx context.Context, id any) (*history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cur, ok := m.store[keyOf(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &history.Record{
		ID:      cloneValue(cur.ID),
		Deleted: cur.Deleted,
		History: cloneEntries(cur.History),
		Fields:  cloneFields(cur.Fields),
	}, nil
}
