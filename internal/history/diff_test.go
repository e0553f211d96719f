package history

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, Equal("x", "x"))
	assert.False(t, Equal("x", "y"))
	assert.True(t, Equal(int32(1), int64(1)))
	assert.True(t, Equal(1, 1.0))
	assert.False(t, Equal(1, "1"))
	assert.True(t, Equal(map[string]any{"a": []any{1, "b"}}, map[string]any{"a": []any{1, "b"}}))
	assert.False(t, Equal(map[string]any{"a": 1}, map[string]any{"a": 2}))
	assert.True(t, Equal(at, at.In(time.FixedZone("x", 3600))))
}

func TestEqualLargeIntegers(t *testing.T) {
	const big = int64(1) << 53
	assert.False(t, Equal(big, big+1))
	assert.False(t, Equal(uint64(big), uint64(big+1)))
	assert.True(t, Equal(int64(math.MaxInt64), uint64(math.MaxInt64)))
	assert.False(t, Equal(int64(-1), uint64(math.MaxUint64)))
	assert.True(t, Equal(int64(math.MinInt64), int64(math.MinInt64)))
	assert.False(t, Equal(big+1, float64(big)))
	assert.True(t, Equal(big, float64(big)))
	assert.True(t, Equal(-3, -3.0))
	assert.False(t, Equal(3, 3.5))
	assert.True(t, Equal(0, -0.0))
	assert.True(t, Equal(1.5, float32(1.5)))
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, IDKey(1), IDKey(int64(1)))
	assert.Equal(t, IDKey(1), IDKey(1.0))
	assert.NotEqual(t, IDKey(1), IDKey("1"))
	assert.Equal(t, "string:doc", IDKey("doc"))
}

func TestReplaceDiffCompleteness(t *testing.T) {
	tests := []struct {
		name string
		old  map[string]any
		next map[string]any
		want Diff
	}{
		{
			name: "identical",
			old:  map[string]any{"a": "x", "b": 1},
			next: map[string]any{"a": "x", "b": 1},
			want: Diff{},
		},
		{
			name: "creation",
			old:  map[string]any{"_id": 5},
			next: map[string]any{"a": "v"},
			want: Diff{"a": "v"},
		},
		{
			name: "removed changed and added",
			old:  map[string]any{"a": "x", "b": "y", "c": 1},
			next: map[string]any{"a": "z", "c": 1, "d": true},
			want: Diff{"a": "z", "b": nil, "d": true},
		},
		{
			name: "reserved fields ignored",
			old:  map[string]any{"_id": 1, "deleted": true, "history": []any{}, "a": 1},
			next: map[string]any{"a": 1},
			want: Diff{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceDiff(tt.old, tt.next))
		})
	}
}

func TestUpdateDiff(t *testing.T) {
	old := map[string]any{"_id": 1, "a": "x", "b": "y"}

	set, unset := SplitChanges(map[string]any{"a": "z", "b": nil})
	assert.Equal(t, map[string]any{"a": "z"}, set)
	assert.Equal(t, []string{"b"}, unset)
	assert.Equal(t, Diff{"a": "z", "b": nil}, UpdateDiff(old, set, unset))

	assert.Equal(t, Diff{}, UpdateDiff(old, map[string]any{"a": "x"}, []string{"missing"}))
	assert.Equal(t, Diff{"c": 3}, UpdateDiff(old, map[string]any{"c": 3}, nil))
}

func TestBind(t *testing.T) {
	anon := Bind("", Author{})
	assert.Nil(t, anon.Author)
	assert.Empty(t, anon.User)

	a := Bind("u1", Author{Firstname: "Ada"})
	e := a.Entry(time.Unix(10, 0), Diff{"a": 1})
	assert.Equal(t, "u1", e.User)
	assert.Equal(t, "Ada", e.Author.Firstname)
	assert.NotSame(t, a.Author, e.Author)
}

func TestDocumentSplit(t *testing.T) {
	id, body := Document{"_id": 1, "a": "x"}.Split()
	assert.Equal(t, 1, id)
	assert.Equal(t, map[string]any{"a": "x"}, body)
	assert.True(t, IsReserved("history"))
	assert.False(t, IsReserved("name"))
	assert.ElementsMatch(t, []string{"b"}, Diff{"a": 1, "b": nil}.Removed())
}
