package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dshills/pagestorm/internal/dispatcher"
	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/docio"
	"github.com/dshills/pagestorm/internal/engine/doc"
	"github.com/dshills/pagestorm/internal/engine/reflow"
)

type healthResponse struct {
	Status   string `json:"status"`
	Pages    int    `json:"pages"`
	Blocks   int    `json:"blocks"`
	Revision uint64 `json:"revision"`
	ReadOnly bool   `json:"readOnly"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Revision: s.session.Revision(),
		ReadOnly: s.session.IsReadOnly(),
		Uptime:   time.Since(s.started).Round(time.Second).String(),
	}
	s.session.View(func(d *doc.Document) {
		resp.Pages = d.PageCount()
		resp.Blocks = d.BlockCount()
	})
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	f, err := responseFormat(r)
	if err != nil {
		s.respondError(w, err)
		return
	}

	// Encode into a buffer so an encoding failure can still be reported.
	var buf bytes.Buffer
	if err := docio.WriteDocument(&buf, f, s.session.Snapshot()); err != nil {
		s.respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("X-Revision", strconv.FormatUint(s.session.Revision(), 10))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Err(err, "write document")
	}
}

type loadResponse struct {
	Pages    int    `json:"pages"`
	Blocks   int    `json:"blocks"`
	Revision uint64 `json:"revision"`
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	f, err := requestFormat(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	d, err := docio.ReadDocument(r.Body, f)
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := s.session.Load(d); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info("document replaced, %d pages", d.PageCount())

	resp := loadResponse{Revision: s.session.Revision()}
	s.session.View(func(d *doc.Document) {
		resp.Pages = d.PageCount()
		resp.Blocks = d.BlockCount()
	})
	s.respondJSON(w, http.StatusOK, resp)
}

// checkResult reports the dry-run outcome of one command.
type checkResult struct {
	Index     int          `json:"index"`
	CommandID string       `json:"commandId"`
	Kind      command.Kind `json:"kind"`
	OK        bool         `json:"ok"`
	Error     string       `json:"error,omitempty"`
}

type commandsResponse struct {
	DryRun   bool                    `json:"dryRun"`
	Revision uint64                  `json:"revision"`
	Batch    *dispatcher.BatchResult `json:"batch,omitempty"`
	Checks   []checkResult           `json:"checks,omitempty"`
	Error    string                  `json:"error,omitempty"`
	// Output holds the lines printed by a script.
	Output []string `json:"output,omitempty"`
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	dryRun, err := boolParam(r, "dryRun")
	if err != nil {
		s.respondError(w, err)
		return
	}
	f, err := requestFormat(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	batch, err := docio.ReadBatch(r.Body, f)
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	s.run(w, batch.Commands, dryRun, commandsResponse{})
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		s.respondError(w, fmt.Errorf("scripts: %w", ErrDisabled))
		return
	}
	dryRun, err := boolParam(r, "dryRun")
	if err != nil {
		s.respondError(w, err)
		return
	}
	source, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "request.lua"
	}

	res, err := s.runner.Run(r.Context(), s.session, name, string(source))
	if err != nil {
		s.respondJSON(w, statusFor(err), commandsResponse{
			DryRun: dryRun,
			Error:  err.Error(),
			Output: res.Output,
		})
		return
	}
	s.run(w, res.Commands, dryRun, commandsResponse{Output: res.Output})
}

// run checks or executes cmds and writes the response.
func (s *Server) run(w http.ResponseWriter, cmds []command.Command, dryRun bool, resp commandsResponse) {
	resp.DryRun = dryRun
	for i := range cmds {
		cmds[i] = cmds[i].WithDefaults()
	}
	if dryRun {
		status := http.StatusOK
		for i, err := range s.system.Check(cmds) {
			cr := checkResult{Index: i, CommandID: cmds[i].ID, Kind: cmds[i].Kind, OK: err == nil}
			if err != nil {
				cr.Error = err.Error()
				status = http.StatusUnprocessableEntity
			}
			resp.Checks = append(resp.Checks, cr)
		}
		resp.Revision = s.session.Revision()
		s.respondJSON(w, status, resp)
		return
	}

	br, err := s.system.ExecuteBatch(cmds)
	resp.Revision = s.session.Revision()
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
	}
	if br.Results != nil || err == nil {
		resp.Batch = &br
	}
	s.respondJSON(w, status, resp)
}

type renumberResponse struct {
	Pages             int    `json:"pages"`
	Blocks            int    `json:"blocks"`
	Images            int    `json:"images"`
	FilledPages       int    `json:"filledPages"`
	StrippedArtifacts int    `json:"strippedArtifacts"`
	ReusedMedia       int    `json:"reusedMedia"`
	Revision          uint64 `json:"revision"`
}

func (s *Server) handleRenumber(w http.ResponseWriter, r *http.Request) {
	rep, err := s.session.Renumber()
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, renumberResponse{
		Pages:             rep.Pages,
		Blocks:            rep.Blocks,
		Images:            rep.Images,
		FilledPages:       rep.FilledPages,
		StrippedArtifacts: rep.StrippedArtifacts,
		ReusedMedia:       rep.ReusedMedia,
		Revision:          s.session.Revision(),
	})
}

type reflowResponse struct {
	PagesChecked int    `json:"pagesChecked"`
	PagesCreated int    `json:"pagesCreated"`
	BlocksMoved  int    `json:"blocksMoved"`
	Unmeasurable int    `json:"unmeasurable"`
	Changed      bool   `json:"changed"`
	Overflowing  []int  `json:"overflowing"`
	Revision     uint64 `json:"revision"`
}

func (s *Server) handleReflow(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page")
	if err != nil {
		s.respondError(w, err)
		return
	}

	var rep reflow.Report
	if page > 0 {
		rep, err = s.session.CheckPageOverflow(page)
	} else {
		rep, err = s.session.CheckDocument()
	}
	if err != nil {
		s.respondError(w, err)
		return
	}

	overflowing := s.session.Overflowing()
	if overflowing == nil {
		overflowing = []int{}
	}
	s.respondJSON(w, http.StatusOK, reflowResponse{
		PagesChecked: rep.PagesChecked,
		PagesCreated: rep.PagesCreated,
		BlocksMoved:  rep.BlocksMoved,
		Unmeasurable: rep.Unmeasurable,
		Changed:      rep.Changed(),
		Overflowing:  overflowing,
		Revision:     s.session.Revision(),
	})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	var media []doc.MediaEntry
	s.session.View(func(d *doc.Document) {
		media = append([]doc.MediaEntry{}, d.Media...)
	})
	s.respondJSON(w, http.StatusOK, media)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := s.system.Metrics()
	if m == nil {
		s.respondError(w, fmt.Errorf("metrics: %w", ErrDisabled))
		return
	}
	s.respondJSON(w, http.StatusOK, m.Snapshot())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	j := s.system.Journal()
	if j == nil {
		s.respondError(w, fmt.Errorf("journal: %w", ErrDisabled))
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if limit <= 0 {
		limit = 100
	}
	s.respondJSON(w, http.StatusOK, j.RecentChanges(limit))
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadRequest, name, v)
	}
	return b, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadRequest, name, v)
	}
	return n, nil
}
