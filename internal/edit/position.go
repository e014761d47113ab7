// Package edit applies LSP TextEdit sequences to an editor window's body,
// choosing between a scroll-preserving line diff (for full-document
// replacement) and an in-place reverse-order splice (for targeted edits).
package edit

import "github.com/mkmik/acre/internal/lsp"

// Converter translates between byte offsets and LSP's UTF-16-code-unit
// Positions. LSP counts columns in UTF-16 code units regardless of the
// document's own encoding, so a byte-offset approximation silently
// misplaces edits on any line containing non-ASCII text; this implementation
// resolves that open question in favor of doing the UTF-16 accounting
// rather than assuming servers tolerate a byte-offset shortcut.
type Converter struct {
	content string
	lines   []lineSpan
}

type lineSpan struct {
	byteOffset int
	byteLen    int
}

// NewConverter indexes content's lines once so repeated conversions work
// from the line table rather than rescanning the whole document: ByteOffset
// looks its line up by index, Position scans the table for its line.
func NewConverter(content string) *Converter {
	c := &Converter{content: content}
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			c.lines = append(c.lines, lineSpan{byteOffset: start, byteLen: i - start})
			start = i + 1
		}
	}
	c.lines = append(c.lines, lineSpan{byteOffset: start, byteLen: len(content) - start})
	return c
}

// ByteOffset converts an LSP Position to a byte offset into content.
func (c *Converter) ByteOffset(pos lsp.Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(c.lines) {
		return len(c.content)
	}
	line := c.lines[pos.Line]
	lineContent := c.content[line.byteOffset : line.byteOffset+line.byteLen]
	return line.byteOffset + utf16ToByteOffset(lineContent, pos.Character)
}

// Position converts a byte offset into content to an LSP Position.
func (c *Converter) Position(byteOffset int) lsp.Position {
	if byteOffset < 0 {
		byteOffset = 0
	}
	lineNum := len(c.lines) - 1
	for i, line := range c.lines {
		if byteOffset <= line.byteOffset+line.byteLen {
			lineNum = i
			break
		}
	}
	line := c.lines[lineNum]
	within := byteOffset - line.byteOffset
	if within < 0 {
		within = 0
	}
	if within > line.byteLen {
		within = line.byteLen
	}
	lineContent := c.content[line.byteOffset : line.byteOffset+line.byteLen]
	return lsp.Position{Line: lineNum, Character: byteToUTF16Offset(lineContent, within)}
}

// RuneOffsetToByteOffset converts a rune offset (acme's addr file reports
// selections in runes, not bytes) into a byte offset into content.
func RuneOffsetToByteOffset(content string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	n := 0
	for i := range content {
		if n >= runeOffset {
			return i
		}
		n++
	}
	return len(content)
}

func utf16LenForString(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func byteToUTF16Offset(s string, byteOff int) int {
	if byteOff <= 0 {
		return 0
	}
	if byteOff >= len(s) {
		return utf16LenForString(s)
	}
	off := 0
	for i, r := range s {
		if i >= byteOff {
			break
		}
		if r >= 0x10000 {
			off += 2
		} else {
			off++
		}
	}
	return off
}

func utf16ToByteOffset(s string, u16Off int) int {
	if u16Off <= 0 {
		return 0
	}
	count := 0
	for i, r := range s {
		if count >= u16Off {
			return i
		}
		if r >= 0x10000 {
			count += 2
		} else {
			count++
		}
	}
	return len(s)
}
