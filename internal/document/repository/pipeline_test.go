package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

func stage(t *testing.T, d bson.D) (string, any) {
	t.Helper()
	require.Len(t, d, 1)
	return d[0].Key, d[0].Value
}

func TestReplacePipelineShape(t *testing.T) {
	p := replacePipeline(map[string]any{"b": "$notAPath", "a": 1}, history.Actor{})
	require.Len(t, p, 2)

	op, _ := stage(t, p[0])
	assert.Equal(t, "$set", op)

	op, v := stage(t, p[1])
	assert.Equal(t, "$replaceWith", op)
	merge := v.(bson.M)["$mergeObjects"].(bson.A)
	keep := merge[0].(bson.D)
	assert.Equal(t, bson.D{
		{Key: "_id", Value: "$_id"},
		{Key: "deleted", Value: "$deleted"},
		{Key: "history", Value: "$history"},
	}, keep)
	assert.Equal(t, literal(map[string]any{"b": "$notAPath", "a": 1}), merge[1])
}

func TestPairsAreSortedAndLiteral(t *testing.T) {
	got := pairs(map[string]any{"b": "$x", "a": 1})
	assert.Equal(t, bson.A{
		bson.A{"a", bson.M{"$literal": 1}},
		bson.A{"b", bson.M{"$literal": "$x"}},
	}, got)

	assert.NotNil(t, pairs(nil))
	assert.NotNil(t, markers(nil))
	assert.Equal(t, bson.A{bson.A{"x", nil}}, markers([]string{"x"}))
}

func TestUpdatePipelineStages(t *testing.T) {
	p := updatePipeline(map[string]any{"a": "z"}, []string{"b"}, history.Actor{})
	require.Len(t, p, 3)
	ops := []string{}
	for _, s := range p {
		op, _ := stage(t, s)
		ops = append(ops, op)
	}
	assert.Equal(t, []string{"$set", "$set", "$unset"}, ops)
	_, unset := stage(t, p[2])
	assert.Equal(t, []string{"b"}, unset)

	assert.Len(t, updatePipeline(map[string]any{"a": 1}, nil, history.Actor{}), 2)
	assert.Len(t, updatePipeline(nil, []string{"a"}, history.Actor{}), 2)
}

func TestHistoryEntryAttribution(t *testing.T) {
	anon := historyEntry(history.Actor{}, "$$diff")
	assert.Equal(t, bson.D{
		{Key: "date", Value: "$$NOW"},
		{Key: "diff", Value: "$$diff"},
	}, anon)

	actor := history.Bind("u1", history.Author{Firstname: "Ada", Lastname: "Lovelace"})
	full := historyEntry(actor, "$$diff")
	require.Len(t, full, 4)
	assert.Equal(t, "author", full[0].Key)
	assert.Equal(t, literal(history.Author{Firstname: "Ada", Lastname: "Lovelace"}), full[0].Value)
	assert.Equal(t, "user", full[1].Key)
}

func TestDeletedPipelineSetsFlagLast(t *testing.T) {
	p := deletedPipeline(true, history.Actor{})
	require.Len(t, p, 2)
	op, v := stage(t, p[1])
	assert.Equal(t, "$set", op)
	assert.Equal(t, bson.D{{Key: "deleted", Value: true}}, v)
}

func TestPipelinesMarshal(t *testing.T) {
	actor := history.Bind("u1", history.Author{Lastname: "L"})
	for name, p := range map[string]any{
		"replace": replacePipeline(map[string]any{"a": 1}, actor),
		"update":  updatePipeline(map[string]any{"a": 1}, []string{"b"}, actor),
		"deleted": deletedPipeline(false, actor),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := bson.MarshalExtJSON(bson.M{"pipeline": p}, false, false)
			assert.NoError(t, err)
		})
	}
}

func TestLiteralSortsNestedDocuments(t *testing.T) {
	v := map[string]any{
		"o": map[string]any{"e": 5, "d": 4, "c": 3, "b": 2, "a": bson.M{"y": 1, "x": 0}},
		"l": []any{map[string]any{"k2": 2, "k1": 1}, "s"},
		"b": []byte("raw"),
	}
	want := bson.D{
		{Key: "b", Value: []byte("raw")},
		{Key: "l", Value: bson.A{bson.D{{Key: "k1", Value: 1}, {Key: "k2", Value: 2}}, "s"}},
		{Key: "o", Value: bson.D{
			{Key: "a", Value: bson.D{{Key: "x", Value: 0}, {Key: "y", Value: 1}}},
			{Key: "b", Value: 2}, {Key: "c", Value: 3}, {Key: "d", Value: 4}, {Key: "e", Value: 5},
		}},
	}
	assert.Equal(t, bson.M{"$literal": want}, literal(v))

	ordered := bson.D{{Key: "z", Value: map[string]any{"b": 1, "a": 0}}, {Key: "y", Value: 1}}
	assert.Equal(t, bson.D{
		{Key: "z", Value: bson.D{{Key: "a", Value: 0}, {Key: "b", Value: 1}}},
		{Key: "y", Value: 1},
	}, canonical(ordered), "documents keep their own order")
	assert.Nil(t, canonical(nil))
}

func TestNestedBodyEncodingIsStable(t *testing.T) {
	body := map[string]any{"o": map[string]any{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}}
	first, err := bson.Marshal(bson.D{{Key: "p", Value: pairs(body)}})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := bson.Marshal(bson.D{{Key: "p", Value: pairs(body)}})
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	// the stored copy and the compared pair carry the same document
	p := replacePipeline(body, history.Actor{})
	_, v := stage(t, p[1])
	stored := v.(bson.M)["$mergeObjects"].(bson.A)[1]
	assert.Equal(t, literal(body), stored)
	assert.Equal(t, bson.A{bson.A{"o", literal(body["o"])}}, pairs(body))
}
