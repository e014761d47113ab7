// Package plumb writes fire-and-forget navigation messages to the editor's
// plumber, used to jump to a file (and optionally a line) from a location
// the coordinator cannot address directly as an open window.
package plumb

import (
	"encoding/json"
	"fmt"
	"io"
)

// message is the wire shape the plumber expects: a destination port, a
// content type, and the payload data.
type message struct {
	Dst  string `json:"dst"`
	Typ  string `json:"typ"`
	Data string `json:"data"`
}

// Writer sends plumb messages to an io.Writer (typically the plumb service's
// 9P send file). Writes are fire-and-forget: a failed send is reported to
// the caller but there is nothing to retry against a one-shot navigation
// gesture.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w as a plumb message sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SendFile plumbs a bare file path, letting the editor's plumbing rules
// decide where to open it.
func (p *Writer) SendFile(path string) error {
	return p.send(path)
}

// SendLocation plumbs a file path with a line number suffix
// ("path:line"), the convention acme's plumbing rules use to land the
// cursor on a specific line.
func (p *Writer) SendLocation(path string, line int) error {
	if line <= 0 {
		return p.send(path)
	}
	return p.send(fmt.Sprintf("%s:%d", path, line))
}

func (p *Writer) send(data string) error {
	msg := message{Dst: "edit", Typ: "text", Data: data}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("plumb: marshal message: %w", err)
	}
	if _, err := p.w.Write(encoded); err != nil {
		return fmt.Errorf("plumb: write message: %w", err)
	}
	return nil
}
