package text

import (
	"fmt"
	"unicode/utf8"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/dispatcher/execctx"
	"github.com/dshills/pagestorm/internal/dispatcher/handler"
	"github.com/dshills/pagestorm/internal/engine/doc"
)

// Handler handles text commands.
type Handler struct{}

// NewHandler creates a new text handler.
func NewHandler() *Handler {
	return &Handler{}
}

// CanHandle returns true if this handler can process the kind.
func (h *Handler) CanHandle(kind command.Kind) bool {
	return kind.IsText()
}

// Priority returns the handler priority.
func (h *Handler) Priority() int {
	return 0
}

// Handle processes a text command.
func (h *Handler) Handle(cmd command.Command, ctx *execctx.ExecutionContext) handler.Result {
	if err := ctx.Validate(); err != nil {
		return handler.Error(err)
	}
	if cmd.Target.Ordinal < 1 {
		return handler.Error(fmt.Errorf("%w: text commands are addressed by paragraph ordinal", command.ErrInvalidCommand))
	}

	b, err := ctx.Resolve(command.Target{Ordinal: cmd.Target.Ordinal})
	if err != nil {
		return handler.Error(err)
	}

	switch cmd.Kind {
	case command.KindInsertText:
		return h.insert(cmd, ctx, b)
	case command.KindReplaceText:
		return h.replace(cmd, ctx, b, cmd.Replace)
	case command.KindDeleteText:
		if cmd.Search != "" {
			return h.replace(cmd, ctx, b, "")
		}
		return h.deleteRange(cmd, ctx, b)
	}
	return handler.Errorf("unknown text command: %s", cmd.Kind)
}

func (h *Handler) insert(cmd command.Command, ctx *execctx.ExecutionContext, b *doc.Block) handler.Result {
	if cmd.Text == "" {
		return handler.NoOpWithMessage("nothing to insert")
	}
	if cmd.Offset > b.TextLen() {
		return handler.Error(fmt.Errorf("insert at %d of %d: %w", cmd.Offset, b.TextLen(), doc.ErrOffsetOutOfRange))
	}
	if err := ctx.Mutate(b); err != nil {
		return handler.Error(err)
	}

	if cmd.Marks != nil {
		head, tail := b.SplitInlines(cmd.Offset)
		inlines := append(head, doc.TextRun(cmd.Text, *cmd.Marks))
		b.Inlines = append(inlines, tail...)
	} else {
		b.InsertText(cmd.Offset, cmd.Text)
	}

	return handler.Success().
		WithAffected(b).
		WithChange(handler.Change{
			Block:   b,
			Start:   cmd.Offset,
			End:     cmd.Offset + utf8.RuneCountInString(cmd.Text),
			NewText: cmd.Text,
		})
}

// replace edits every match back to front and reports the changes in
// document order with offsets into the edited text.
func (h *Handler) replace(cmd command.Command, ctx *execctx.ExecutionContext, b *doc.Block, replacement string) handler.Result {
	text := b.Text()
	matches, err := FindMatches(cmd, text, replacement)
	if err != nil {
		return handler.Error(err)
	}
	if len(matches) == 0 {
		return handler.NoOpWithMessage(fmt.Sprintf("%q not found", cmd.Search))
	}
	if err := ctx.Mutate(b); err != nil {
		return handler.Error(err)
	}

	runes := []rune(text)
	changes := make([]handler.Change, len(matches))
	shift := 0
	for i, m := range matches {
		n := utf8.RuneCountInString(m.Replacement)
		changes[i] = handler.Change{
			Block:   b,
			Start:   m.Start + shift,
			End:     m.Start + shift + n,
			OldText: string(runes[m.Start:m.End]),
			NewText: m.Replacement,
		}
		shift += n - (m.End - m.Start)
	}
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		if err := b.ReplaceText(m.Start, m.End, m.Replacement); err != nil {
			return handler.Error(err)
		}
	}

	return handler.Success().
		WithAffected(b).
		WithChanges(changes).
		WithData("matches", len(matches))
}

func (h *Handler) deleteRange(cmd command.Command, ctx *execctx.ExecutionContext, b *doc.Block) handler.Result {
	if cmd.Length == 0 {
		return handler.NoOpWithMessage("empty range")
	}
	start, end := cmd.Offset, cmd.Offset+cmd.Length
	if end > b.TextLen() {
		return handler.Error(fmt.Errorf("delete [%d,%d) of %d: %w", start, end, b.TextLen(), doc.ErrOffsetOutOfRange))
	}
	old := string([]rune(b.Text())[start:end])
	if err := ctx.Mutate(b); err != nil {
		return handler.Error(err)
	}
	if err := b.DeleteText(start, end); err != nil {
		return handler.Error(err)
	}

	return handler.Success().
		WithAffected(b).
		WithChange(handler.Change{Block: b, Start: start, End: start, OldText: old})
}
