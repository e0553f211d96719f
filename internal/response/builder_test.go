package response

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogotex/gogotex/backend/go-history/internal/apperrors"
	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

func TestDocument(t *testing.T) {
	r := New().Document("document").Produce()
	assert.Equal(t, "document", r.Doc)
	assert.Nil(t, r.List)

	list := []string{"document1", "document2", "document3"}
	r = New().Document(list).Produce()
	assert.Equal(t, list, r.List)
	assert.Nil(t, r.Doc)
}

var details = []apperrors.Detail{
	{Key: "name.key1", Message: "message1"},
	{Key: "name.key2", Message: "message2"},
	{Key: "key1", Message: "message1"},
	{Key: "key2", Message: "message2"},
}

var nested = map[string]any{
	"key1": "message1",
	"key2": "message2",
	"name": map[string]any{"key1": "message1", "key2": "message2"},
}

func TestErrorMessage(t *testing.T) {
	r := New().ErrorMessage("error message", details...).Produce()
	assert.Equal(t, "error message", r.Message)
	assert.Equal(t, nested, r.Errors)
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
		errors  map[string]any
	}{
		{"validation", apperrors.NewValidation("error message", details...), "error message", nested},
		{"not found", apperrors.NewNotFound(""), "Not Found", nil},
		{"runtime hidden", apperrors.Wrap(errors.New("dial tcp"), "Fail to write document to the database"), "Internal Server Error", nil},
		{"foreign error", errors.New("boom"), "Internal Server Error", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New().Error(tt.err).Fail().Produce()
			assert.Equal(t, tt.message, r.Message)
			assert.Equal(t, tt.errors, r.Errors)
			require.NotNil(t, r.OK)
			assert.False(t, *r.OK)
		})
	}
}

func TestForbidCancelsAllowed(t *testing.T) {
	r := New().
		Forbid("update").
		Allow("create", "read").
		Allow("update", "delete", "", "read").
		Produce()
	assert.Equal(t, []string{"create", "read", "delete"}, r.Allowed)
}

func TestHistory(t *testing.T) {
	assert.Nil(t, New().History(nil).Produce().History)

	now := time.Now()
	r := New().History([]history.Entry{
		{User: "user", Date: now, Diff: history.Diff{"name": "name"}},
	}).Produce()
	require.Len(t, r.History, 1)
	assert.Equal(t, history.ActionCreated, r.History[0].Action)
	assert.Equal(t, now.UnixMilli(), r.History[0].Date)
	assert.Nil(t, r.History[0].Updates)
}

func TestProduce(t *testing.T) {
	r := New().
		Allow("update").
		Allow("delete").
		Document("document").
		Message("error").
		Forbid("delete").
		Success().
		Token("token").
		Produce()

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"token","allowed":["update"],"doc":"document","message":"error","ok":true}`, string(b))
}
