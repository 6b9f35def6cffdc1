package handler

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/renumber"
)

func TestResultBuilders(t *testing.T) {
	assert.True(t, Success().Success)
	assert.True(t, NoOp().IsOK())
	assert.False(t, Cancelled().IsOK())

	r := Errorf("boom %d", 1)
	assert.True(t, r.IsError())
	assert.False(t, r.Success)
	assert.Equal(t, "boom 1", r.ErrorText)

	r = Success().WithData("n", 3).WithMessage("done")
	assert.Equal(t, 3, r.GetDataInt("n"))
	assert.Equal(t, "done", r.Message)
	assert.Empty(t, r.GetDataString("missing"))
}

func TestResultResolve(t *testing.T) {
	a, b := doc.NewParagraph("a"), doc.NewParagraph("b")
	gone := doc.NewParagraph("gone")
	d := doc.New(doc.NewPage(a, b))
	renumber.Document(d)

	r := Success().
		WithAffected(b, a, b, gone, nil).
		WithChange(Change{Block: b, Start: 0, End: 1})
	r.Resolve(d)

	assert.Equal(t, []string{"p1-2", "p1-1"}, r.AffectedIDs)
	assert.Equal(t, "p1-2", r.Changes[0].BlockID)
}

func TestResultJSON(t *testing.T) {
	r := Error(errors.New("not found"))
	r.CommandID = "c1"
	r.Kind = command.KindDeleteParagraph

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "c1", out["commandId"])
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "not found", out["error"])
	assert.Equal(t, false, out["success"])
}

func TestKindHandler(t *testing.T) {
	h := NewKindHandler("test")
	h.Register(command.KindDeleteParagraph, func(command.Command, *execctx.ExecutionContext) Result {
		return Success().WithMessage("deleted")
	})

	assert.True(t, h.CanHandle(command.KindDeleteParagraph))
	assert.False(t, h.CanHandle(command.KindMoveParagraph))
	assert.Equal(t, []command.Kind{command.KindDeleteParagraph}, h.Kinds())

	r := h.Handle(command.Command{Kind: command.KindDeleteParagraph}, nil)
	assert.Equal(t, "deleted", r.Message)
	r = h.Handle(command.Command{Kind: command.KindMoveParagraph}, nil)
	assert.True(t, r.IsError())
}

func TestHandlerFunc(t *testing.T) {
	f := NewHandlerFuncWithPriority(func(command.Command, *execctx.ExecutionContext) Result {
		return NoOp()
	}, 5)

	assert.Equal(t, 5, f.Priority())
	assert.True(t, f.CanHandle(command.KindInsertText))
	assert.Equal(t, StatusNoOp, f.Handle(command.Command{}, nil).Status)
	assert.True(t, NewHandlerFunc(nil).Handle(command.Command{}, nil).IsError())
}
