package edit

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/mkmik/acre/internal/lsp"
)

// Window is the subset of internal/win.Win the applicator needs: enough to
// read the current body and issue addressed writes. Kept as an interface so
// tests can exercise the applicator without a live 9P connection.
type Window interface {
	ReadBody() (string, error)
	Addr(spec string) error
	Write(subfile string, data []byte) error
	Ctl(command string) error
}

var snippetPlaceholder = regexp.MustCompile(`\$\{\d+(?::[^}]*)?\}|\$\d+`)

// stripSnippet removes LSP snippet syntax (tab stops and placeholders) from
// text that arrived with InsertTextFormat == Snippet, leaving plain text
// suitable for a body that has no notion of an editable template.
func stripSnippet(text string) string {
	return snippetPlaceholder.ReplaceAllString(text, "")
}

// Apply writes an ordered set of TextEdits into a window's body.
//
// A single edit spanning the entire document is treated as a full
// replacement and applied as a line diff against the current body so the
// editor's scroll position survives (case 1); anything else is applied as a
// reverse-order incremental splice (case 2).
func Apply(w Window, edits []lsp.TextEdit, snippet bool) error {
	if len(edits) == 0 {
		return nil
	}
	if snippet {
		for i := range edits {
			edits[i].NewText = stripSnippet(edits[i].NewText)
		}
	}

	body, err := w.ReadBody()
	if err != nil {
		return fmt.Errorf("edit: read body: %w", err)
	}

	if len(edits) == 1 && isFullDocument(edits[0].Range, body) {
		if edits[0].NewText == body {
			return nil
		}
		return applyDiff(w, body, edits[0].NewText)
	}
	_, err = applyIncremental(w, body, edits)
	return err
}

func isFullDocument(r lsp.Range, body string) bool {
	if r.Start.Line != 0 || r.Start.Character != 0 {
		return false
	}
	lastLine, lastChar := lastPosition(body)
	return r.End.Line == lastLine && r.End.Character == lastChar
}

func lastPosition(body string) (line, char int) {
	conv := NewConverter(body)
	pos := conv.Position(len(body))
	return pos.Line, pos.Character
}

// applyDiff computes a line-level diff between the current body and newText
// and issues one addressed write per hunk: "i,i" to delete line i, "i-1+#0"
// to insert after line i-1. This touches only the lines that actually
// changed, so the editor's scroll position is preserved instead of being
// reset by a wholesale body replacement.
func applyDiff(w Window, body, newText string) error {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(body, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	line := 1 // acme line addresses are 1-based
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			line += n
		case diffmatchpatch.DiffDelete:
			end := line + n - 1
			if err := w.Addr(fmt.Sprintf("%d,%d", line, end)); err != nil {
				return fmt.Errorf("edit: addr delete hunk: %w", err)
			}
			if err := w.Write("data", nil); err != nil {
				return fmt.Errorf("edit: write delete hunk: %w", err)
			}
			line += n
		case diffmatchpatch.DiffInsert:
			if err := w.Addr(fmt.Sprintf("%d-1+#0", line)); err != nil {
				return fmt.Errorf("edit: addr insert hunk: %w", err)
			}
			if err := w.Write("data", []byte(d.Text)); err != nil {
				return fmt.Errorf("edit: write insert hunk: %w", err)
			}
		}
	}
	return nil
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

// applyIncremental applies edits in reverse document order, so the byte
// offsets computed against the original body stay valid for every edit not
// yet applied: a write only ever invalidates offsets strictly after it, and
// every edit still queued lies strictly before it. It returns the
// cumulative delta, the net size change contributed by edits already
// applied to regions later in the document — always folded into later
// edits' own addresses in a forward-order formulation, but tracked here
// only for callers (and the edit-associativity test) since reverse order
// makes the fold-in a no-op for any non-overlapping edit set.
//
// Before the first edit it writes nomark and then mark to the control file
// so the editor's undo stack coalesces every edit into a single undo step.
func applyIncremental(w Window, body string, edits []lsp.TextEdit) (int, error) {
	ordered := make([]lsp.TextEdit, len(edits))
	copy(ordered, edits)
	sort.Slice(ordered, func(i, j int) bool {
		return lessPosition(ordered[i].Range.Start, ordered[j].Range.Start)
	})

	if err := w.Ctl("nomark"); err != nil {
		return 0, fmt.Errorf("edit: nomark: %w", err)
	}
	if err := w.Ctl("mark"); err != nil {
		return 0, fmt.Errorf("edit: mark: %w", err)
	}

	conv := NewConverter(body)
	var delta int
	for i := len(ordered) - 1; i >= 0; i-- {
		e := ordered[i]
		if e.NewText == rangeText(body, conv, e.Range) {
			continue
		}
		soff := conv.ByteOffset(e.Range.Start)
		eoff := conv.ByteOffset(e.Range.End)
		if err := w.Addr(fmt.Sprintf("#%d,#%d", soff, eoff)); err != nil {
			return delta, fmt.Errorf("edit: addr incremental hunk: %w", err)
		}
		if err := w.Write("data", []byte(e.NewText)); err != nil {
			return delta, fmt.Errorf("edit: write incremental hunk: %w", err)
		}
		delta += len(e.NewText) - (eoff - soff)
	}
	return delta, nil
}

func rangeText(body string, conv *Converter, r lsp.Range) string {
	s, e := conv.ByteOffset(r.Start), conv.ByteOffset(r.End)
	if s < 0 || e > len(body) || s > e {
		return ""
	}
	return body[s:e]
}

func lessPosition(a, b lsp.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
