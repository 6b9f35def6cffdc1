package paragraph

import (
	"fmt"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/engine/doc"
)

// Handler handles structural paragraph commands.
type Handler struct{}

// NewHandler creates a new paragraph handler.
func NewHandler() *Handler {
	return &Handler{}
}

// CanHandle returns true if this handler can process the kind.
func (h *Handler) CanHandle(kind command.Kind) bool {
	switch kind {
	case command.KindInsertParagraph, command.KindDeleteParagraph,
		command.KindMoveParagraph, command.KindSplitParagraph,
		command.KindMergeParagraph:
		return true
	}
	return false
}

// Priority returns the handler priority.
func (h *Handler) Priority() int {
	return 0
}

// Handle processes a paragraph command.
func (h *Handler) Handle(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	if err := ctx.Validate(); err != nil {
		return handler.Error(err)
	}

	switch cmd.Kind {
	case command.KindInsertParagraph:
		return h.insert(cmd, ctx)
	case command.KindDeleteParagraph:
		return h.delete(cmd, ctx)
	case command.KindMoveParagraph:
		return h.move(cmd, ctx)
	case command.KindSplitParagraph:
		return h.split(cmd, ctx)
	case command.KindMergeParagraph:
		return h.merge(cmd, ctx)
	}
	return handler.Errorf("unknown paragraph command: %s", cmd.Kind)
}

// insert places a new block after the target, or replaces the target
// when it is a placeholder.
func (h *Handler) insert(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	target, err := ctx.Resolve(cmd.Target)
	if err != nil {
		return handler.Error(err)
	}
	if err := ctx.Mutate(target); err != nil {
		return handler.Error(err)
	}

	b := newBlock(cmd)
	d := ctx.Document
	if target.Placeholder {
		err = d.ReplaceBlock(target, b)
	} else {
		err = d.InsertAfter(target, b)
	}
	if err != nil {
		return handler.Error(err)
	}
	ctx.Batch.RegisterTemp(cmd.TempID, b)

	return handler.Success().WithAffected(b)
}

func (h *Handler) delete(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	b, err := ctx.Resolve(cmd.Target)
	if err != nil {
		return handler.Error(err)
	}
	if err := ctx.Mutate(b); err != nil {
		return handler.Error(err)
	}

	id := b.ID
	p, err := ctx.Document.RemoveBlock(b)
	if err != nil {
		return handler.Error(err)
	}
	dropIfEmpty(ctx.Document, p)

	return handler.SuccessWithMessage(fmt.Sprintf("deleted %s", id)).WithData("removedId", id)
}

// move removes the source and reinserts it just after the target. The
// target is located by identity after the removal, so a source that
// precedes the target on the same page does not shift the insertion
// point.
func (h *Handler) move(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	target, err := ctx.Resolve(cmd.Target)
	if err != nil {
		return handler.Error(err)
	}
	source, err := ctx.Resolve(cmd.Source)
	if err != nil {
		return handler.Error(err)
	}
	if source == target {
		return handler.Error(fmt.Errorf("%w: cannot move a paragraph after itself", command.ErrInvalidCommand))
	}

	d := ctx.Document
	if !target.Placeholder && following(d, target) == source {
		return handler.NoOpWithMessage("paragraph already in place").WithAffected(source)
	}
	if err := ctx.Mutate(source, target); err != nil {
		return handler.Error(err)
	}

	from, err := d.RemoveBlock(source)
	if err != nil {
		return handler.Error(err)
	}
	if target.Placeholder {
		err = d.ReplaceBlock(target, source)
	} else {
		err = d.InsertAfter(target, source)
	}
	if err != nil {
		return handler.Error(err)
	}
	dropIfEmpty(d, from)

	return handler.Success().WithAffected(source)
}

// split cuts the target in two. The head keeps the target's identity;
// the tail is a new block carrying the command's temporary id.
func (h *Handler) split(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	b, err := ctx.Resolve(cmd.Target)
	if err != nil {
		return handler.Error(err)
	}
	cut, err := FindBoundary(b.Text(), cmd.Before, cmd.After)
	if err != nil {
		return handler.Error(fmt.Errorf("split %s: %w", cmd.Target, err))
	}
	if err := ctx.Mutate(b); err != nil {
		return handler.Error(err)
	}

	head, tail := b.SplitInlines(cut)
	b.Inlines = head
	nb := &doc.Block{
		Tag:       b.Tag,
		StyleKind: b.StyleKind,
		Style:     b.Style,
		Inlines:   tail,
	}
	if err := ctx.Document.InsertAfter(b, nb); err != nil {
		return handler.Error(err)
	}
	ctx.Batch.RegisterTemp(cmd.TempID, nb)

	return handler.Success().WithAffected(b, nb).WithData("offset", cut)
}

// merge appends the source's content to the target and removes the
// source. The target keeps its place and identity.
func (h *Handler) merge(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	target, err := ctx.Resolve(cmd.Target)
	if err != nil {
		return handler.Error(err)
	}
	source, err := ctx.Resolve(cmd.Source)
	if err != nil {
		return handler.Error(err)
	}
	if source == target {
		return handler.Error(fmt.Errorf("%w: cannot merge a paragraph into itself", command.ErrInvalidCommand))
	}
	if err := ctx.Mutate(target, source); err != nil {
		return handler.Error(err)
	}

	start := target.TextLen()
	appended := source.Text()
	target.Inlines = append(target.Inlines, source.Inlines...)
	target.NormalizeInlines()

	d := ctx.Document
	from, err := d.RemoveBlock(source)
	if err != nil {
		return handler.Error(err)
	}
	dropIfEmpty(d, from)

	return handler.Success().
		WithAffected(target).
		WithChange(handler.Change{
			Block:   target,
			Start:   start,
			End:     target.TextLen(),
			NewText: appended,
		})
}

func newBlock(cmd command.Command) *doc.Block {
	tag := cmd.Tag
	if tag == "" {
		tag = doc.TagParagraph
	}
	b := &doc.Block{Tag: tag, StyleKind: cmd.StyleKind}
	if cmd.Style != nil {
		b.Style = *cmd.Style
	}
	if cmd.Text != "" {
		var marks doc.Marks
		if cmd.Marks != nil {
			marks = *cmd.Marks
		}
		b.Inlines = []doc.Inline{doc.TextRun(cmd.Text, marks)}
	}
	return b
}

// following returns the block after b in document order, or nil.
func following(d *doc.Document, b *doc.Block) *doc.Block {
	p, i, ok := d.Locate(b)
	if !ok {
		return nil
	}
	if i+1 < len(p.Blocks) {
		return p.Blocks[i+1]
	}
	for next := d.NextPage(p); next != nil; next = d.NextPage(next) {
		if len(next.Blocks) > 0 {
			return next.Blocks[0]
		}
	}
	return nil
}

func dropIfEmpty(d *doc.Document, p *doc.Page) {
	if p != nil && len(p.Blocks) == 0 && d.PageCount() > 1 {
		d.RemovePage(p)
	}
}
