package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/engine/doc"
)

func newSession() *engine.Session {
	figure := &doc.Block{Tag: doc.TagParagraph, Inlines: []doc.Inline{doc.Image("fig.png", "a figure")}}
	d := doc.New(
		doc.NewPage(doc.NewParagraph("The colour of night"), doc.NewParagraph("second")),
		doc.NewPage(figure),
	)
	return engine.New(engine.WithDocument(d))
}

func run(t *testing.T, r *Runner, source string) (Result, error) {
	t.Helper()
	return r.Run(context.Background(), newSession(), "test.lua", source)
}

func TestDocQueries(t *testing.T) {
	res, err := run(t, NewRunner(), `
		print(doc.page_count(), doc.block_count())
		local b = doc.block("p1-2")
		print(b.text, b.ordinal, b.page, b.index)
		print(doc.block(1).id)
		print(#doc.page(1), doc.page(9))
		print(doc.block(3).images[1].src)
		print(#doc.find("colour"), #doc.find("^s.c", true))
		print(doc.media()[1].src, doc.media()[1].anchor)
	`)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"2\t3",
		"second\t2\t1\t2",
		"p1-1",
		"2\tnil",
		"fig.png",
		"1\t1",
		"fig.png\tp2-1",
	}, res.Output)
	assert.Empty(t, res.Commands)
}

func TestBuildersProduceCommands(t *testing.T) {
	res, err := run(t, NewRunner(), `
		local n = cmd.insert_paragraph{target = {page = 2}, text = "Intro", temp_id = "t1", tag = "h2"}
		assert(n == 1)
		cmd.replace_text{target = 1, search = "colour", replace = "color", all = true}
		cmd.move_paragraph{target = "t1", source = "p1-2"}
		cmd.emit{kind = "split_paragraph", target = "p1-1", after = "colour", tempId = "t2"}
		for _, b in ipairs(doc.find("second")) do
			cmd.delete_paragraph{target = b.id}
		end
	`)

	require.NoError(t, err)
	require.Len(t, res.Commands, 5)

	ins := res.Commands[0]
	assert.Equal(t, command.KindInsertParagraph, ins.Kind)
	assert.Equal(t, command.Target{Page: 2}, ins.Target)
	assert.Equal(t, "t1", ins.TempID)
	assert.Equal(t, doc.TagH2, ins.Tag)
	assert.NotEmpty(t, ins.ID)

	rep := res.Commands[1]
	assert.Equal(t, command.Target{Ordinal: 1}, rep.Target)
	assert.True(t, rep.All)

	mv := res.Commands[2]
	assert.Equal(t, command.Target{ID: "t1"}, mv.Target)
	assert.Equal(t, command.Target{ID: "p1-2"}, mv.Source)

	assert.Equal(t, command.KindSplitParagraph, res.Commands[3].Kind)
	assert.Equal(t, "t2", res.Commands[3].TempID)
	assert.Equal(t, command.Target{ID: "p1-2"}, res.Commands[4].Target)
}

func TestInvalidCommandFailsRun(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"text edit by id", `cmd.delete_text{target = "p1-1", search = "x"}`, "paragraph ordinal"},
		{"unknown field", `cmd.insert_paragraph{target = 1, txt = "x"}`, "unknown field"},
		{"no target", `cmd.delete_paragraph{}`, "needs a target"},
		{"unknown kind", `cmd.emit{kind = "explode", target = 1}`, "unknown kind"},
		{"kind mismatch", `cmd.insert_text{kind = "delete_text", target = 1}`, "given to insert_text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := run(t, NewRunner(), tt.source)

			require.Error(t, err)
			assert.ErrorIs(t, err, command.ErrInvalidCommand)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, res.Commands)

			var se *ScriptError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "test.lua", se.Name)
		})
	}
}

func TestCaughtBuilderErrorDoesNotFailRun(t *testing.T) {
	res, err := run(t, NewRunner(), `
		local ok = pcall(cmd.delete_paragraph, {})
		print(ok)
		cmd.delete_paragraph{target = 2}
	`)

	require.NoError(t, err)
	assert.Equal(t, []string{"false"}, res.Output)
	assert.Len(t, res.Commands, 1)
}

func TestMaxCommands(t *testing.T) {
	_, err := run(t, NewRunner(WithMaxCommands(2)), `
		for i = 1, 3 do
			cmd.delete_paragraph{target = 1}
		end
	`)

	assert.ErrorIs(t, err, ErrTooManyCommands)
}

func TestSandbox(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"os", `os.execute("ls")`},
		{"io", `io.open("/etc/passwd")`},
		{"require io", `require("io")`},
		{"load", `load("return 1")()`},
		{"dofile", `dofile("x.lua")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, NewRunner(), tt.source)
			assert.Error(t, err)
		})
	}

	res, err := run(t, NewRunner(), `print(require("string").upper("ok"), math.max(1, 2))`)
	require.NoError(t, err)
	assert.Equal(t, []string{"OK\t2"}, res.Output)
}

func TestTimeout(t *testing.T) {
	start := time.Now()
	_, err := run(t, NewRunner(WithTimeout(50*time.Millisecond)), `while true do end`)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Run(ctx, newSession(), "x.lua", `while true do end`)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSyntaxError(t *testing.T) {
	_, err := run(t, NewRunner(), `cmd.delete_paragraph{target = `)

	var se *ScriptError
	require.ErrorAs(t, err, &se)
	assert.NotErrorIs(t, err, command.ErrInvalidCommand)
}

func TestNoDocument(t *testing.T) {
	_, err := NewRunner().RunDocument(context.Background(), nil, "x.lua", "")
	assert.ErrorIs(t, err, ErrNoDocument)
}

func TestRunFileAndExecute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fix.lua")
	require.NoError(t, os.WriteFile(path, []byte(`
		for _, b in ipairs(doc.find("colour")) do
			cmd.replace_text{target = b.ordinal, search = "colour", replace = "color"}
		end
		cmd.insert_paragraph{target = {new_page = true}, text = "Appendix"}
	`), 0o644))
	s := newSession()

	res, err := NewRunner().RunFile(context.Background(), s, path)
	require.NoError(t, err)
	require.Len(t, res.Commands, 2)

	br, err := dispatcher.NewSystemWithDefaults(s).ExecuteBatch(res.Commands)
	require.NoError(t, err)
	assert.Equal(t, 2, br.Completed)
	s.View(func(d *doc.Document) {
		assert.Equal(t, "The color of night", d.ResolveByOrdinal(1).Text())
		assert.Equal(t, 3, d.PageCount())
		assert.Equal(t, "Appendix", d.Pages[2].Blocks[0].Text())
	})
}

func TestRunFileMissing(t *testing.T) {
	_, err := NewRunner().RunFile(context.Background(), newSession(), filepath.Join(t.TempDir(), "none.lua"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
