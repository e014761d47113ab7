package edit

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkmik/acre/internal/lsp"
)

// fakeWindow records Addr/Write/Ctl calls against an in-memory body so the
// applicator can be exercised without a live 9P connection. Only the
// incremental path's "#start,#end" addressing is actually spliced into
// body; the diff path's line addressing is exercised for control flow only.
type fakeWindow struct {
	body string
	addr string
	ctls []string
}

func (w *fakeWindow) ReadBody() (string, error) { return w.body, nil }

func (w *fakeWindow) Addr(spec string) error {
	w.addr = spec
	return nil
}

func (w *fakeWindow) Ctl(cmd string) error {
	w.ctls = append(w.ctls, cmd)
	return nil
}

func (w *fakeWindow) Write(subfile string, data []byte) error {
	if subfile != "data" {
		return nil
	}
	start, end, ok := parseByteAddr(w.addr)
	if !ok {
		return nil
	}
	w.body = w.body[:start] + string(data) + w.body[end:]
	return nil
}

// parseByteAddr parses the "#start,#end" form written by the incremental
// path; any other address (the diff path's line addressing) is reported as
// not-a-byte-address.
func parseByteAddr(addr string) (start, end int, ok bool) {
	if !strings.HasPrefix(addr, "#") {
		return 0, 0, false
	}
	lhs, rhs, found := strings.Cut(addr[1:], ",#")
	if !found {
		return 0, 0, false
	}
	s, err1 := strconv.Atoi(lhs)
	e, err2 := strconv.Atoi(rhs)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, e, true
}

func lastPos(s string) lsp.Position {
	return NewConverter(s).Position(len(s))
}

func TestApply_NoopWhenNewTextMatchesBody(t *testing.T) {
	w := &fakeWindow{body: "package main\n"}
	edits := []lsp.TextEdit{{
		Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lastPos(w.body)},
		NewText: w.body,
	}}
	require.NoError(t, Apply(w, edits, false))
	require.Equal(t, "package main\n", w.body)
	require.Empty(t, w.ctls)
}

func TestApply_IncrementalSingleEditSplicesInPlace(t *testing.T) {
	w := &fakeWindow{body: "hello world\n"}
	edits := []lsp.TextEdit{{
		Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 6}, End: lsp.Position{Line: 0, Character: 11}},
		NewText: "gophers",
	}}
	require.NoError(t, Apply(w, edits, false))
	require.Equal(t, "hello gophers\n", w.body)
	require.Contains(t, w.ctls, "nomark")
	require.Contains(t, w.ctls, "mark")
}

func TestApply_IncrementalMultipleEditsApplyInReverseOrder(t *testing.T) {
	w := &fakeWindow{body: "one two three\n"}
	edits := []lsp.TextEdit{
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 3}}, NewText: "1"},
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 4}, End: lsp.Position{Line: 0, Character: 7}}, NewText: "2"},
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 8}, End: lsp.Position{Line: 0, Character: 13}}, NewText: "3"},
	}
	require.NoError(t, Apply(w, edits, false))
	require.Equal(t, "1 2 3\n", w.body)
}

func TestApply_StripsSnippetPlaceholders(t *testing.T) {
	w := &fakeWindow{body: "func f() {}\n"}
	edits := []lsp.TextEdit{{
		Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 10}, End: lsp.Position{Line: 0, Character: 10}},
		NewText: "${1:x} := ${2:0}\n\t$0",
	}}
	require.NoError(t, Apply(w, edits, true))
	require.NotContains(t, w.body, "${")
	require.NotContains(t, w.body, "$0")
}

func TestStripSnippet(t *testing.T) {
	require.Equal(t, " := \n\t", stripSnippet("${1:x} := ${2:0}\n\t$0"))
}

func TestConverter_RoundTripsASCIIAndMultibyte(t *testing.T) {
	content := "héllo\nwörld\n"
	conv := NewConverter(content)
	for _, off := range []int{0, 1, 3, 6, 7, len(content)} {
		pos := conv.Position(off)
		back := conv.ByteOffset(pos)
		require.Equal(t, off, back, "offset %d round trip via %+v", off, pos)
	}
}

func TestRuneOffsetToByteOffset_AccountsForMultibyteRunes(t *testing.T) {
	content := "héllo\nwörld\n"
	// "h" "é" "l" "l" "o" "\n" are runes 0-5; "é" is 2 bytes, the rest 1 byte.
	require.Equal(t, 0, RuneOffsetToByteOffset(content, 0))
	require.Equal(t, 1, RuneOffsetToByteOffset(content, 1))
	require.Equal(t, 3, RuneOffsetToByteOffset(content, 2))
	require.Equal(t, len(content), RuneOffsetToByteOffset(content, 1000))
}

func TestDiffApply_NoErrorOnMultiLineChange(t *testing.T) {
	w := &fakeWindow{body: "line1\nline2\nline3\n"}
	edits := []lsp.TextEdit{{
		Range:   lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lastPos(w.body)},
		NewText: "line1\nlineTWO\nline3\n",
	}}
	require.NoError(t, Apply(w, edits, false))
}

func TestApplyIncremental_ReportsCumulativeDelta(t *testing.T) {
	w := &fakeWindow{body: "aa bb cc\n"}
	edits := []lsp.TextEdit{
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 2}}, NewText: "x"},
		{Range: lsp.Range{Start: lsp.Position{Line: 0, Character: 6}, End: lsp.Position{Line: 0, Character: 8}}, NewText: "yyyy"},
	}
	delta, err := applyIncremental(w, w.body, edits)
	require.NoError(t, err)
	require.Equal(t, (len("x")-2)+(len("yyyy")-2), delta)
}
