package app

import (
	"context"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/docio"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/script"
)

// DocumentPath returns the path the document is saved to, or "".
func (app *Application) DocumentPath() string {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.docPath
}

// IsModified reports whether the document changed since it was loaded or
// last saved.
func (app *Application) IsModified() bool {
	app.mu.RLock()
	saved := app.savedRevision
	app.mu.RUnlock()
	return app.session.Revision() != saved
}

// Open replaces the document with the one at path.
func (app *Application) Open(path string) error {
	d, err := docio.LoadDocument(path)
	if err != nil {
		return NewOperationError("load", path, err)
	}
	if err := app.session.Load(d); err != nil {
		return NewOperationError("load", path, err)
	}

	app.mu.Lock()
	app.docPath = path
	app.savedRevision = app.session.Revision()
	app.mu.Unlock()

	var pages int
	app.session.View(func(cur *doc.Document) { pages = cur.PageCount() })
	app.logger.Info("opened %s, %d pages", path, pages)
	return nil
}

// Save writes the document to path. An empty path means the path the
// document was opened from, which becomes path when none was set.
func (app *Application) Save(path string) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if path == "" {
		path = app.docPath
	}
	if path == "" {
		return ErrNoFilePath
	}

	rev := app.session.Revision()
	if err := docio.SaveDocument(path, app.session.Snapshot()); err != nil {
		return NewOperationError("save", path, err)
	}
	if app.docPath == "" {
		app.docPath = path
	}
	if path == app.docPath {
		app.savedRevision = rev
	}
	app.metrics.RecordSave()
	app.logger.Info("saved %s", path)
	return nil
}

// ApplyBatch executes cmds as one batch.
func (app *Application) ApplyBatch(cmds []command.Command) (dispatcher.BatchResult, error) {
	start := time.Now()
	res, err := app.system.ExecuteBatch(cmds)
	app.metrics.RecordBatch(res.Completed, err != nil, time.Since(start))
	return res, err
}

// ApplyBatchFile reads a batch file and executes it.
func (app *Application) ApplyBatchFile(path string) (dispatcher.BatchResult, error) {
	b, err := docio.LoadBatch(path)
	if err != nil {
		return dispatcher.BatchResult{}, NewOperationError("apply", path, err)
	}
	if b.Description != "" {
		app.logger.Info("applying %s: %s", path, b.Description)
	}
	res, err := app.ApplyBatch(b.Commands)
	if err != nil {
		return res, NewOperationError("apply", path, err)
	}
	return res, nil
}

// RunScript runs the script at path against the document and executes
// the batch it builds. A script that fails builds nothing and changes
// nothing.
func (app *Application) RunScript(ctx context.Context, path string) (script.Result, dispatcher.BatchResult, error) {
	out, err := app.runner.RunFile(ctx, app.session, path)
	app.metrics.RecordScript(err != nil)
	if err != nil {
		return out, dispatcher.BatchResult{}, err
	}
	if len(out.Commands) == 0 {
		return out, dispatcher.BatchResult{}, nil
	}
	res, err := app.ApplyBatch(out.Commands)
	if err != nil {
		return out, res, NewOperationError("run", path, err)
	}
	return out, res, nil
}
