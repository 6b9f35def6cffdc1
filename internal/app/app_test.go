package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/pagestorm/internal/config"
	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/docio"
	"github.com/dshills/pagestorm/internal/engine"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/logging"
	"github.com/dshills/pagestorm/internal/script"
)

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newApp(t *testing.T, opts Options) *Application {
	t.Helper()
	if opts.LogOutput == nil {
		opts.LogOutput = &syncBuffer{}
	}
	app, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeDocument(t *testing.T, name string, d *doc.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, docio.SaveDocument(path, d))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func insertText(ordinal, offset int, text string) command.Command {
	return command.Command{
		Kind:   command.KindInsertText,
		Target: command.Target{Ordinal: ordinal},
		Offset: offset,
		Text:   text,
	}
}

func TestNewWithDefaults(t *testing.T) {
	app := newApp(t, Options{})

	assert.NotNil(t, app.Session())
	assert.NotNil(t, app.System())
	assert.NotNil(t, app.Runner())
	assert.NotNil(t, app.Server())
	assert.Equal(t, 1, app.Session().Snapshot().PageCount())
	assert.Empty(t, app.DocumentPath())
	assert.False(t, app.IsModified())
	assert.False(t, app.IsRunning())
	assert.Equal(t, config.Default().Page.Width, app.Config().Page.Width)
}

func TestOpensExistingDocument(t *testing.T) {
	path := writeDocument(t, "doc.yaml", doc.New(
		doc.NewPage(doc.NewParagraph("first")),
		doc.NewPage(doc.NewParagraph("second")),
	))

	app := newApp(t, Options{DocumentPath: path})

	assert.Equal(t, path, app.DocumentPath())
	app.Session().View(func(d *doc.Document) {
		assert.Equal(t, 2, d.PageCount())
		assert.Equal(t, "second", d.ResolveByID("p2-1").Text())
	})
}

func TestMissingDocumentStartsNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.json")
	app := newApp(t, Options{DocumentPath: path})

	_, err := app.ApplyBatch([]command.Command{insertText(1, 0, "hello")})
	require.NoError(t, err)
	assert.True(t, app.IsModified())

	require.NoError(t, app.Save(""))
	assert.False(t, app.IsModified())

	d, err := docio.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", d.ResolveByOrdinal(1).Text())
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().Saves)
}

func TestInitFailures(t *testing.T) {
	tests := []struct {
		name   string
		opts   func(t *testing.T) Options
		target error
	}{
		{
			name: "bad document",
			opts: func(t *testing.T) Options {
				return Options{DocumentPath: writeFile(t, "doc.yaml", "pages: [oops")}
			},
		},
		{
			name: "unknown document format",
			opts: func(t *testing.T) Options {
				return Options{DocumentPath: writeFile(t, "doc.txt", "text")}
			},
			target: docio.ErrUnknownFormat,
		},
		{
			name: "invalid config",
			opts: func(t *testing.T) Options {
				return Options{ConfigPath: writeFile(t, "config.toml", "[page]\nwidth = -5\n")}
			},
			target: config.ErrValidationFailed,
		},
		{
			name: "missing config",
			opts: func(t *testing.T) Options {
				return Options{ConfigPath: filepath.Join(t.TempDir(), "none.toml")}
			},
			target: config.ErrFileNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts(t)
			opts.LogOutput = &syncBuffer{}

			app, err := New(opts)

			assert.Nil(t, app)
			assert.ErrorIs(t, err, ErrInitialization)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			var ce *ComponentError
			require.True(t, errors.As(err, &ce))
		})
	}
}

func TestConfigShapesSession(t *testing.T) {
	path := writeFile(t, "config.toml", "[page]\nwidth = 10\nheight = 5\n\n[reflow]\nauto = true\n")
	app := newApp(t, Options{ConfigPath: path})

	_, err := app.ApplyBatch([]command.Command{
		insertText(1, 0, "hello world"),
		{Kind: command.KindInsertParagraph, Target: command.Target{Ordinal: 1}, Text: "hello world"},
		{Kind: command.KindInsertParagraph, Target: command.Target{Ordinal: 2}, Text: "hello there"},
	})
	require.NoError(t, err)

	app.Session().View(func(d *doc.Document) {
		assert.Greater(t, d.PageCount(), 1, "a 10x5 page cannot hold three wrapped paragraphs")
	})
}

func TestSaveWithoutPath(t *testing.T) {
	app := newApp(t, Options{})

	assert.ErrorIs(t, app.Save(""), ErrNoFilePath)

	path := filepath.Join(t.TempDir(), "out.cbor")
	require.NoError(t, app.Save(path))
	assert.Equal(t, path, app.DocumentPath())
}

func TestOpen(t *testing.T) {
	app := newApp(t, Options{})
	path := writeDocument(t, "doc.yaml", doc.New(doc.NewPage(doc.NewParagraph("loaded"))))

	require.NoError(t, app.Open(path))

	assert.Equal(t, path, app.DocumentPath())
	assert.False(t, app.IsModified())
	app.Session().View(func(d *doc.Document) {
		assert.Equal(t, "loaded", d.ResolveByOrdinal(1).Text())
	})

	err := app.Open(filepath.Join(t.TempDir(), "missing.yaml"))
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "load", oe.Op)
}

func TestOpenWhileApplying(t *testing.T) {
	app := newApp(t, Options{})
	path := writeDocument(t, "doc.yaml", doc.New(doc.NewPage(doc.NewParagraph("loaded"))))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _ = app.ApplyBatch([]command.Command{insertText(1, 0, "x")})
		}
	}()
	for i := 0; i < 5; i++ {
		require.NoError(t, app.Open(path))
	}
	wg.Wait()

	assert.Equal(t, path, app.DocumentPath())
}

func TestApplyBatchFile(t *testing.T) {
	docPath := writeDocument(t, "doc.yaml", doc.New(doc.NewPage(doc.NewParagraph("the cat sat"))))
	batch := writeFile(t, "fix.yaml", `
description: rename the cat
commands:
  - kind: replace_text
    target: {ordinal: 1}
    search: cat
    replace: dog
  - kind: insert_paragraph
    target: {newPage: true}
    text: appendix
`)
	app := newApp(t, Options{DocumentPath: docPath})

	res, err := app.ApplyBatchFile(batch)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Completed)
	app.Session().View(func(d *doc.Document) {
		assert.Equal(t, "the dog sat", d.ResolveByOrdinal(1).Text())
		assert.Equal(t, "appendix", d.ResolveByID("p2-1").Text())
	})

	m := app.Metrics().Snapshot()
	assert.Equal(t, uint64(1), m.Batches)
	assert.Equal(t, uint64(2), m.Commands)
	assert.Zero(t, m.FailedBatches)
}

func TestApplyBatchFailure(t *testing.T) {
	app := newApp(t, Options{})

	res, err := app.ApplyBatch([]command.Command{
		insertText(1, 0, "ok"),
		insertText(7, 0, "missing"),
	})

	var ce *dispatcher.CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, res.Aborted)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().FailedBatches)

	_, err = app.ApplyBatchFile(writeFile(t, "bad.json", `{"commands":[{"kind":"explode"}]}`))
	assert.ErrorIs(t, err, command.ErrInvalidCommand)
}

func TestRunScript(t *testing.T) {
	docPath := writeDocument(t, "doc.yaml", doc.New(doc.NewPage(doc.NewParagraph("The colour of night"))))
	lua := writeFile(t, "fix.lua", `
		print(doc.page_count())
		for _, b in ipairs(doc.find("colour")) do
			cmd.replace_text{target = b.ordinal, search = "colour", replace = "color"}
		end
	`)
	app := newApp(t, Options{DocumentPath: docPath})

	out, res, err := app.RunScript(context.Background(), lua)

	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out.Output)
	assert.Equal(t, 1, res.Completed)
	app.Session().View(func(d *doc.Document) {
		assert.Equal(t, "The color of night", d.ResolveByOrdinal(1).Text())
	})
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().Scripts)

	_, _, err = app.RunScript(context.Background(), writeFile(t, "bad.lua", "this is not lua"))
	var se *script.ScriptError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().FailedScripts)
}

func TestReadOnly(t *testing.T) {
	app := newApp(t, Options{ReadOnly: true})

	_, err := app.ApplyBatch([]command.Command{insertText(1, 0, "x")})

	assert.ErrorIs(t, err, engine.ErrReadOnly)
	assert.False(t, app.IsModified())
}

func TestConfigReloadSetsLogLevel(t *testing.T) {
	path := writeFile(t, "config.toml", "[logging]\nlevel = \"info\"\n")
	out := &syncBuffer{}
	app := newApp(t, Options{ConfigPath: path, LogOutput: out})
	require.Equal(t, logging.LogLevelInfo, app.Logger().Level())

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n\n[page]\nwidth = 40\n"), 0o644))
	require.NoError(t, app.ConfigManager().Reload())

	assert.Equal(t, logging.LogLevelDebug, app.Logger().Level())
	assert.Equal(t, 40, app.Config().Page.Width)
	assert.Contains(t, out.String(), "page.width")
	assert.Equal(t, uint64(1), app.Metrics().Snapshot().ConfigReloads)
}

func TestLogLevelOverrideIsPinned(t *testing.T) {
	path := writeFile(t, "config.toml", "[logging]\nlevel = \"info\"\n")
	app := newApp(t, Options{ConfigPath: path, LogLevel: "error"})
	require.Equal(t, logging.LogLevelError, app.Logger().Level())

	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644))
	require.NoError(t, app.ConfigManager().Reload())

	assert.Equal(t, logging.LogLevelError, app.Logger().Level())
}

func TestServeListener(t *testing.T) {
	app := newApp(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.ServeListener(ctx, ln) }()

	require.Eventually(t, app.IsRunning, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, app.Serve(ctx), ErrAlreadyRunning)

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, app.IsRunning())
}

func TestClose(t *testing.T) {
	app := newApp(t, Options{})

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
	assert.ErrorIs(t, app.Serve(context.Background()), ErrClosed)
}
