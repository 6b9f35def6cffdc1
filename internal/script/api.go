package script

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fxamacker/cbor/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/pagestorm/internal/dispatcher/command"
	"github.com/dshills/pagestorm/internal/engine/doc"
)

// commandDecMode decodes command tables strictly so that a misspelled
// field fails the run instead of being dropped.
var commandDecMode = func() cbor.DecMode {
	dm, err := cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}()

// docModule exposes a read-only view of d.
type docModule struct {
	d      *doc.Document
	bridge *Bridge
}

func (m *docModule) funcs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"page_count":  m.pageCount,
		"block_count": m.blockCount,
		"page":        m.page,
		"block":       m.block,
		"blocks":      m.blocks,
		"find":        m.find,
		"media":       m.media,
	}
}

func (m *docModule) pageCount(L *lua.LState) int {
	L.Push(lua.LNumber(m.d.PageCount()))
	return 1
}

func (m *docModule) blockCount(L *lua.LState) int {
	L.Push(lua.LNumber(m.d.BlockCount()))
	return 1
}

func (m *docModule) page(L *lua.LState) int {
	p := m.d.Page(L.CheckInt(1))
	if p == nil {
		L.Push(lua.LNil)
		return 1
	}
	t := L.NewTable()
	for i, b := range p.Blocks {
		t.RawSetInt(i+1, m.blockTable(L, p, i, b))
	}
	L.Push(t)
	return 1
}

// block resolves a block id or a 1-based ordinal.
func (m *docModule) block(L *lua.LState) int {
	var b *doc.Block
	switch v := L.CheckAny(1).(type) {
	case lua.LNumber:
		b = m.d.ResolveByOrdinal(int(v))
	case lua.LString:
		b = m.d.ResolveByID(string(v))
	default:
		L.ArgError(1, "expected a block id or ordinal")
		return 0
	}
	if b == nil {
		L.Push(lua.LNil)
		return 1
	}
	p, i, _ := m.d.Locate(b)
	L.Push(m.blockTable(L, p, i, b))
	return 1
}

func (m *docModule) blocks(L *lua.LState) int {
	t := L.NewTable()
	n := 0
	for _, p := range m.d.Pages {
		for i, b := range p.Blocks {
			n++
			t.RawSetInt(n, m.blockTable(L, p, i, b))
		}
	}
	L.Push(t)
	return 1
}

// find returns the blocks whose text contains the needle, or matches it
// as a regular expression when the second argument is true.
func (m *docModule) find(L *lua.LState) int {
	needle := L.CheckString(1)
	match := func(s string) bool { return strings.Contains(s, needle) }
	if L.OptBool(2, false) {
		re, err := regexp.Compile(needle)
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		match = re.MatchString
	}

	t := L.NewTable()
	n := 0
	for _, p := range m.d.Pages {
		for i, b := range p.Blocks {
			if match(b.Text()) {
				n++
				t.RawSetInt(n, m.blockTable(L, p, i, b))
			}
		}
	}
	L.Push(t)
	return 1
}

func (m *docModule) media(L *lua.LState) int {
	L.Push(m.bridge.ToLuaValue(m.d.Media))
	return 1
}

func (m *docModule) blockTable(L *lua.LState, p *doc.Page, i int, b *doc.Block) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(b.ID))
	t.RawSetString("ordinal", lua.LNumber(b.Ordinal))
	t.RawSetString("page", lua.LNumber(p.Number))
	t.RawSetString("index", lua.LNumber(i+1))
	t.RawSetString("tag", lua.LString(b.Tag))
	t.RawSetString("styleKind", lua.LString(b.StyleKind))
	t.RawSetString("text", lua.LString(b.Text()))

	images := L.NewTable()
	for j, img := range b.Images() {
		it := L.NewTable()
		it.RawSetString("src", lua.LString(img.Src))
		it.RawSetString("alt", lua.LString(img.Alt))
		images.RawSetInt(j+1, it)
	}
	t.RawSetString("images", images)
	return t
}

// emitter collects the commands a script builds.
type emitter struct {
	commands []command.Command
	max      int
	// err is the last builder failure, kept so the run can report it
	// with its original type.
	err error
}

func (e *emitter) funcs() map[string]lua.LGFunction {
	fns := map[string]lua.LGFunction{
		"emit": e.builder(""),
	}
	for _, k := range command.Kinds() {
		fns[string(k)] = e.builder(k)
	}
	return fns
}

// builder returns a Lua function that decodes its table argument into a
// command of the given kind. An empty kind reads it from the table.
func (e *emitter) builder(kind command.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		c, err := decodeCommand(kind, NewBridge(L).ToGoValue(tbl))
		if err == nil {
			c = c.WithDefaults()
			err = c.Validate()
		}
		if err == nil && e.max > 0 && len(e.commands) >= e.max {
			err = fmt.Errorf("%w: limit is %d", ErrTooManyCommands, e.max)
		}
		if err != nil {
			e.err = fmt.Errorf("command %d: %w", len(e.commands)+1, err)
			L.RaiseError("%s", e.err.Error())
			return 0
		}
		e.err = nil
		e.commands = append(e.commands, c)
		L.Push(lua.LNumber(len(e.commands)))
		return 1
	}
}

// decodeCommand converts a Lua table value into a command. A number
// target or source is an ordinal and a string is a block id.
func decodeCommand(kind command.Kind, v any) (command.Command, error) {
	var c command.Command
	m, ok := camelKeys(v).(map[string]any)
	if !ok {
		return c, fmt.Errorf("%w: expected a table of fields", command.ErrInvalidCommand)
	}
	if kind != "" {
		if k, set := m["kind"]; set && k != string(kind) {
			return c, fmt.Errorf("%w: kind %v given to %s", command.ErrInvalidCommand, k, kind)
		}
		m["kind"] = string(kind)
	}
	for _, key := range []string{"target", "source"} {
		switch t := m[key].(type) {
		case int64:
			m[key] = map[string]any{"ordinal": t}
		case string:
			m[key] = map[string]any{"id": t}
		}
	}

	data, err := cbor.Marshal(m)
	if err != nil {
		return c, fmt.Errorf("%w: %v", command.ErrInvalidCommand, err)
	}
	if err := commandDecMode.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("%w: %v", command.ErrInvalidCommand, err)
	}
	return c, nil
}
