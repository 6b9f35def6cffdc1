package dispatcher_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/dispatcher/hook"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/layout"
	"github.com/dshills/pagestorm/internal/logging"
)

func newSession(pages ...[]string) *engine.Session {
	var ps []*doc.Page
	for _, texts := range pages {
		p := doc.NewPage()
		for _, t := range texts {
			p.Blocks = append(p.Blocks, doc.NewParagraph(t))
		}
		ps = append(ps, p)
	}
	return engine.New(engine.WithDocument(doc.New(ps...)))
}

func texts(s *engine.Session) [][]string {
	var out [][]string
	s.View(func(d *doc.Document) {
		for _, p := range d.Pages {
			var page []string
			for _, b := range p.Blocks {
				page = append(page, b.Text())
			}
			out = append(out, page)
		}
	})
	return out
}

func insert(target command.Target, text string) command.Command {
	return command.Command{Kind: command.KindInsertParagraph, Target: target, Text: text}
}

func TestNextNewPageIsSharedWithinBatch(t *testing.T) {
	s := newSession([]string{"one"}, []string{"two"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		insert(command.Target{NewPage: true}, "first"),
		insert(command.Target{NewPage: true}, "second"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, br.Completed)
	assert.False(t, br.Aborted)
	assert.Zero(t, br.PlaceholdersRemoved)
	assert.Equal(t, [][]string{{"one"}, {"two"}, {"first", "second"}}, texts(s))
	assert.Equal(t, []string{"p3-1"}, br.Results[0].AffectedIDs)
	assert.Equal(t, []string{"p3-2"}, br.Results[1].AffectedIDs)
}

func TestUnusedPlaceholdersAreRemoved(t *testing.T) {
	s := newSession([]string{"one"}, []string{"two"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		insert(command.Target{Page: 4, Paragraph: 1}, "four"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, br.PlaceholdersRemoved, "page 3 was synthesized but never used")
	assert.Equal(t, [][]string{{"one"}, {"two"}, {"four"}}, texts(s))
	assert.Equal(t, []string{"p3-1"}, br.Results[0].AffectedIDs, "ids are reported after cleanup")
}

func TestPlaceholdersRemovedOnAbort(t *testing.T) {
	s := newSession([]string{"one"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindMoveParagraph, Target: command.Target{NewPage: true}, Source: command.Target{ID: "p7-7"}},
	})

	require.Error(t, err)
	assert.True(t, br.Aborted)
	assert.Equal(t, 1, br.PlaceholdersRemoved)
	assert.Equal(t, [][]string{{"one"}}, texts(s))
}

func TestMergeIntoNewPageKeepsContent(t *testing.T) {
	s := newSession([]string{"one", "keep me"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindMergeParagraph, Target: command.Target{NewPage: true}, Source: command.Target{ID: "p1-2"}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, br.Completed)
	assert.Zero(t, br.PlaceholdersRemoved, "a placeholder that received content is kept")
	assert.Equal(t, [][]string{{"one"}, {"keep me"}}, texts(s))
}

func TestTextIntoNewPageKeepsContent(t *testing.T) {
	s := newSession([]string{"one"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindInsertText, Target: command.Target{NewPage: true}, Text: "typed"},
		insert(command.Target{Page: 2}, "after"),
	})

	require.NoError(t, err)
	assert.Zero(t, br.PlaceholdersRemoved)
	assert.Equal(t, [][]string{{"one"}, {"typed", "after"}}, texts(s),
		"a consumed placeholder is an ordinary block for later commands")
}

func TestVirtualPagesCountFromBatchStart(t *testing.T) {
	cfg := layout.DefaultConfig()
	cfg.Width = 10
	cfg.Height = 5
	d := doc.New(doc.NewPage(doc.NewParagraph("hello world"), doc.NewParagraph("hello world")))
	s := engine.New(engine.WithDocument(d), engine.WithMeasurer(layout.NewMeasurer(cfg)))
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		insert(command.Target{ID: "p1-2"}, "hello there"),
		insert(command.Target{Page: 2}, "later"),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, br.Results[0].GetDataInt("pagesCreated"))
	// Page 2 created by reflow mid-batch is real, but the batch began with
	// one page, so page 2 still names the synthesized page.
	assert.Equal(t, [][]string{{"hello world", "hello world"}, {"hello there"}, {"later"}}, texts(s))
	assert.Equal(t, []string{"p3-1"}, br.Results[1].AffectedIDs)
	assert.Zero(t, br.PlaceholdersRemoved)
}

func TestReplaceAllThroughExecutor(t *testing.T) {
	s := newSession([]string{"intro", "cat cat cat"})
	e := dispatcher.NewWithDefaults(s)

	res := e.Execute(command.Command{
		Kind:    command.KindReplaceText,
		Target:  command.Target{Ordinal: 2},
		Search:  "cat",
		Replace: "dog",
		All:     true,
	})

	require.True(t, res.Success, res.ErrorText)
	assert.NotEmpty(t, res.CommandID)
	assert.Equal(t, command.KindReplaceText, res.Kind)
	assert.Equal(t, []string{"p1-2"}, res.AffectedIDs)
	require.Len(t, res.Changes, 3)
	for i, c := range res.Changes {
		assert.Equal(t, "p1-2", c.BlockID)
		assert.Equal(t, i*4, c.Start)
		assert.Equal(t, i*4+3, c.End)
	}
	assert.Equal(t, [][]string{{"intro", "dog dog dog"}}, texts(s))
}

func TestFailFastWithoutRollback(t *testing.T) {
	s := newSession([]string{"a"})
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{
		insert(command.Target{ID: "p1-1"}, "b"),
		{ID: "bad", Kind: command.KindDeleteParagraph, Target: command.Target{ID: "p9-9"}},
		insert(command.Target{ID: "p1-1"}, "never"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, doc.ErrNotFound)
	var cerr *dispatcher.CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "bad", cerr.CommandID)
	assert.Equal(t, 1, cerr.Index)

	assert.Equal(t, 1, br.Completed)
	require.Len(t, br.Results, 2)
	failed, ok := br.Failed()
	require.True(t, ok)
	assert.False(t, failed.Success)
	assert.Equal(t, handler.StatusError, failed.Status)
	assert.Equal(t, [][]string{{"a", "b"}}, texts(s), "the first insert stays applied")
}

func TestIDsPinnedAtBatchStart(t *testing.T) {
	s := newSession([]string{"a", "b", "c"})
	e := dispatcher.NewWithDefaults(s)

	_, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindDeleteParagraph, Target: command.Target{ID: "p1-1"}},
		{Kind: command.KindDeleteParagraph, Target: command.Target{ID: "p1-3"}},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b"}}, texts(s))
}

func TestTempIDsAddressLaterCommands(t *testing.T) {
	s := newSession([]string{"a"})
	e := dispatcher.NewWithDefaults(s)
	first := insert(command.Target{ID: "p1-1"}, "b")
	first.TempID = "new-b"

	_, err := e.ExecuteBatch([]command.Command{
		first,
		insert(command.Target{ID: "new-b"}, "c"),
	})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, texts(s))
	s.View(func(d *doc.Document) {
		assert.Nil(t, d.ResolveByTempID("new-b"), "temporary ids end with the batch")
	})
}

func TestSplitThenMergeRestoresText(t *testing.T) {
	s := newSession([]string{"hello world"})
	e := dispatcher.NewWithDefaults(s)

	_, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindSplitParagraph, Target: command.Target{ID: "p1-1"}, Before: "hello ", After: "world", TempID: "tail"},
		{Kind: command.KindMergeParagraph, Target: command.Target{ID: "p1-1"}, Source: command.Target{ID: "tail"}},
	})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"hello world"}}, texts(s))
}

func TestMoveAlreadyInPlaceIsNoOp(t *testing.T) {
	s := newSession([]string{"a", "b"})
	e := dispatcher.NewWithDefaults(s)
	rev := s.Revision()

	res := e.Execute(command.Command{
		Kind:   command.KindMoveParagraph,
		Target: command.Target{ID: "p1-1"},
		Source: command.Target{ID: "p1-2"},
	})

	assert.True(t, res.Success)
	assert.Equal(t, handler.StatusNoOp, res.Status)
	assert.Equal(t, [][]string{{"a", "b"}}, texts(s))
	assert.Equal(t, rev+1, s.Revision())
}

func TestCommandStateHistory(t *testing.T) {
	s := newSession([]string{"a"})
	e := dispatcher.NewWithDefaults(s)
	var states [][]execctx.State
	e.EnableHookManager().RegisterPost(hook.NewPostExecuteFunc("states", 0, func(_ *command.Command, ctx *execctx.ExecutionContext, _ *handler.Result) {
		states = append(states, ctx.History())
	}))

	e.Execute(insert(command.Target{ID: "p1-1"}, "b"))
	e.Execute(insert(command.Target{ID: "p9-1"}, "x"))

	require.Len(t, states, 2)
	assert.Equal(t, []execctx.State{execctx.StatePending, execctx.StateResolving, execctx.StateApplying, execctx.StateSucceeded}, states[0])
	assert.Equal(t, []execctx.State{execctx.StatePending, execctx.StateResolving, execctx.StateFailed}, states[1])
}

func TestPreHookCancelFailsCommand(t *testing.T) {
	s := newSession([]string{"a"})
	sys := dispatcher.NewSystem(s, dispatcher.SystemConfig{
		ExecutorConfig: dispatcher.DefaultConfig(),
		TextOnly:       true,
	})

	res := sys.Execute(insert(command.Target{ID: "p1-1"}, "b"))

	assert.Equal(t, handler.StatusCancelled, res.Status)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Error, dispatcher.ErrCancelled)
	assert.Contains(t, res.Message, "structural edits are disabled")
	assert.Equal(t, [][]string{{"a"}}, texts(s))

	res = sys.Execute(command.Command{Kind: command.KindInsertText, Target: command.Target{Ordinal: 1}, Offset: 1, Text: "!"})
	assert.True(t, res.Success, res.ErrorText)
}

func TestPreHookRewritesCommand(t *testing.T) {
	s := newSession([]string{"a"})
	e := dispatcher.NewWithDefaults(s)
	e.EnableHookManager().RegisterPre(hook.NewPreExecuteFunc("shout", 0, func(cmd *command.Command, _ *execctx.ExecutionContext) bool {
		cmd.Text = "B"
		return true
	}))

	res := e.Execute(insert(command.Target{ID: "p1-1"}, "b"))

	require.True(t, res.Success)
	assert.Equal(t, [][]string{{"a", "B"}}, texts(s))
}

func TestPanicRecovery(t *testing.T) {
	s := newSession([]string{"a"})
	e := dispatcher.New(s, dispatcher.DefaultConfig().WithMetrics())
	e.RegisterHandlerFunc(command.KindDeleteText, func(command.Command, *execctx.ExecutionContext) handler.Result {
		panic("boom")
	})

	res := e.Execute(command.Command{Kind: command.KindDeleteText, Target: command.Target{Ordinal: 1}, Length: 1})

	assert.ErrorIs(t, res.Error, dispatcher.ErrPanic)
	assert.Equal(t, uint64(1), e.Metrics().TotalPanics())
	assert.Equal(t, uint64(1), e.Metrics().TotalErrors())
}

func TestNoHandler(t *testing.T) {
	e := dispatcher.New(newSession([]string{"a"}), dispatcher.DefaultConfig())

	res := e.Execute(insert(command.Target{ID: "p1-1"}, "b"))

	assert.ErrorIs(t, res.Error, dispatcher.ErrNoHandler)
}

func TestInvalidCommand(t *testing.T) {
	e := dispatcher.NewWithDefaults(newSession([]string{"a"}))

	res := e.Execute(command.Command{Kind: "frobnicate", Target: command.Target{Ordinal: 1}})

	assert.ErrorIs(t, res.Error, dispatcher.ErrInvalidCommand)
	assert.Equal(t, command.Kind("frobnicate"), res.Kind)
}

func TestBatchTooLarge(t *testing.T) {
	e := dispatcher.New(newSession([]string{"a"}), dispatcher.DefaultConfig().WithMaxBatchSize(1))

	_, err := e.ExecuteBatch(make([]command.Command, 2))

	assert.ErrorIs(t, err, dispatcher.ErrBatchTooLarge)
}

func TestReadOnlySession(t *testing.T) {
	s := engine.New(engine.WithReadOnly())
	e := dispatcher.NewWithDefaults(s)

	br, err := e.ExecuteBatch([]command.Command{insert(command.Target{ID: "p1-1"}, "b")})

	assert.ErrorIs(t, err, engine.ErrReadOnly)
	assert.Empty(t, br.Results)
	assert.ErrorIs(t, e.Execute(insert(command.Target{ID: "p1-1"}, "b")).Error, engine.ErrReadOnly)
}

func TestSnapshotReceivesBlocksBeforeMutation(t *testing.T) {
	s := newSession([]string{"one", "two"})
	e := dispatcher.NewWithDefaults(s)
	var before []string
	e.SetSnapshot(func(cmd command.Command, b *doc.Block) {
		before = append(before, string(cmd.Kind)+":"+b.Text())
	})

	_, err := e.ExecuteBatch([]command.Command{
		{Kind: command.KindReplaceText, Target: command.Target{Ordinal: 1}, Search: "one", Replace: "1"},
		{Kind: command.KindMergeParagraph, Target: command.Target{ID: "p1-1"}, Source: command.Target{ID: "p1-2"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"replace_text:one", "merge_paragraph:1", "merge_paragraph:two"}, before)
}

func TestCommandsTriggerReflow(t *testing.T) {
	cfg := layout.DefaultConfig()
	cfg.Width = 10
	cfg.Height = 5
	d := doc.New(doc.NewPage(doc.NewParagraph("hello world"), doc.NewParagraph("hello world")))
	s := engine.New(engine.WithDocument(d), engine.WithMeasurer(layout.NewMeasurer(cfg)))
	e := dispatcher.NewWithDefaults(s)

	res := e.Execute(insert(command.Target{ID: "p1-2"}, "hello there"))

	require.True(t, res.Success, res.ErrorText)
	assert.Equal(t, []string{"p2-1"}, res.AffectedIDs, "the inserted block was pushed to a new page")
	assert.Equal(t, 1, res.GetDataInt("pagesCreated"))
}

func TestCheckDoesNotMutate(t *testing.T) {
	s := newSession([]string{"hello"})
	e := dispatcher.NewWithDefaults(s)
	rev := s.Revision()

	errs := e.Check([]command.Command{
		insert(command.Target{ID: "p1-1"}, "b"),
		{Kind: command.KindDeleteParagraph, Target: command.Target{ID: "p4-4"}},
		insert(command.Target{NewPage: true}, "c"),
		{Kind: command.KindSplitParagraph, Target: command.Target{ID: "p1-1"}, Before: "xyz"},
	})

	require.Len(t, errs, 4)
	assert.NoError(t, errs[0])
	assert.ErrorIs(t, errs[1], doc.ErrNotFound)
	assert.NoError(t, errs[2])
	assert.ErrorIs(t, errs[3], doc.ErrAmbiguousBoundary)
	assert.Equal(t, [][]string{{"hello"}}, texts(s))
	assert.Equal(t, rev, s.Revision())
}

func TestSystemJournalAndMetrics(t *testing.T) {
	s := newSession([]string{"cat"})
	sys := dispatcher.NewSystemWithDefaults(s)

	_, err := sys.ExecuteBatch([]command.Command{
		{Kind: command.KindReplaceText, Target: command.Target{Ordinal: 1}, Search: "cat", Replace: "dog"},
		{Kind: command.KindReplaceText, Target: command.Target{Ordinal: 1}, Search: "cat", Replace: "dog"},
		insert(command.Target{ID: "p1-1"}, "more"),
	})
	require.NoError(t, err)

	changes := sys.Journal().Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "dog", changes[0].NewText)
	assert.Equal(t, []string{"p1-2"}, changes[1].BlockIDs)

	m := sys.Metrics()
	require.NotNil(t, m)
	assert.Equal(t, uint64(3), m.TotalCommands())
	stats := m.KindStats(command.KindReplaceText)
	require.NotNil(t, stats)
	assert.Equal(t, uint64(2), stats.CommandCount)
	assert.Equal(t, uint64(1), stats.NoOpCount)
	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.TotalBatches)
	assert.Zero(t, snap.AbortedBatches)
}

func TestSystemTextLimitAndSlowCommands(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelWarn, Output: &buf, Format: logging.FormatJSON})
	s := newSession([]string{"cat"})
	sys := dispatcher.NewSystem(s, dispatcher.SystemConfig{
		ExecutorConfig: dispatcher.DefaultConfig(),
		Logger:         logger,
		MaxTextLength:  5,
		SlowCommand:    time.Nanosecond,
	})

	res := sys.Execute(command.Command{Kind: command.KindReplaceText, Target: command.Target{Ordinal: 1}, Search: "cat", Replace: "dog"})
	require.True(t, res.Success, res.ErrorText)
	assert.Contains(t, buf.String(), "slow replace_text command")

	res = sys.Execute(insert(command.Target{ID: "p1-1"}, "far too long"))
	assert.Equal(t, handler.StatusCancelled, res.Status)
	assert.ErrorIs(t, res.Error, dispatcher.ErrCancelled)
	assert.Contains(t, res.Error.Error(), "exceeds the limit of 5")
	assert.Equal(t, [][]string{{"dog"}}, texts(s))
}
