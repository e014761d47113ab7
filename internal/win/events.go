package win

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mkmik/acre/internal/ninep"
)

// Event is a structured mouse/keyboard gesture read from a window's event
// file.
type Event struct {
	C1, C2 byte
	Q0, Q1 int
	Text   string
}

// WinEvents reads successive events from one window's event file. Each wire
// record is "c1 c2 q0 q1 flag nr text": two origin/type characters, a
// character-address range, a flag byte, the byte length of text, and
// exactly that many bytes of text.
type WinEvents struct {
	win *Win
	fid *ninep.Fid
	buf []byte
}

// Next blocks until the next event arrives (or the event file is closed),
// filling in a load_text round-trip for events (typically 'L' looks) the
// server chose not to complete on its own: it fetches the referenced text
// and writes the event back to let the default behavior run.
func (e *WinEvents) Next() (Event, error) {
	rec, err := e.nextRecord()
	if err != nil {
		return Event{}, err
	}

	if needsLoadText(rec) {
		text, err := e.loadText(rec.Q0, rec.Q1)
		if err != nil {
			return Event{}, fmt.Errorf("win: load_text: %w", err)
		}
		rec.Text = text
		if err := e.writeBack(rec); err != nil {
			return Event{}, fmt.Errorf("win: write back event: %w", err)
		}
	}

	return rec, nil
}

// needsLoadText reports whether the event arrived without its referenced
// text and the server expects the client to fetch it and write the event
// back so the default behavior proceeds. In the wire format this is
// signalled by a zero-length text field on an event whose range is
// non-empty; the event type is not checked, so this applies to 'L' (look)
// events and every other type alike.
func needsLoadText(ev Event) bool {
	return ev.Text == "" && ev.Q1 > ev.Q0
}

func (e *WinEvents) loadText(q0, q1 int) (string, error) {
	if err := e.win.Addr(fmt.Sprintf("#%d,#%d", q0, q1)); err != nil {
		return "", err
	}
	data, err := e.win.subfile("data", &e.win.data, ninep.ORDWR)
	if err != nil {
		return "", err
	}
	out, err := data.Read(0, uint32(q1-q0)*4) // UTF-8 worst case
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *WinEvents) writeBack(ev Event) error {
	rec := encodeRecord(ev)
	_, err := e.fid.Write(0, rec)
	return err
}

func encodeRecord(ev Event) []byte {
	return []byte(fmt.Sprintf("%c%c%d %d %d %d %s\n", ev.C1, ev.C2, ev.Q0, ev.Q1, 0, len(ev.Text), ev.Text))
}

// nextRecord reads one record from the event fid, blocking on short reads
// until a full record (as determined by its nr field) is available.
func (e *WinEvents) nextRecord() (Event, error) {
	for {
		if rec, rest, ok := parseRecord(e.buf); ok {
			e.buf = rest
			return rec, nil
		}
		chunk, err := e.fid.Read(0, 8192)
		if err != nil {
			return Event{}, err
		}
		if len(chunk) == 0 {
			return Event{}, fmt.Errorf("win: event stream closed")
		}
		e.buf = append(e.buf, chunk...)
	}
}

// parseRecord extracts one "c1 c2 q0 q1 flag nr text" record from the front
// of buf, returning the remaining bytes. It returns ok=false if buf does not
// yet contain a complete record.
func parseRecord(buf []byte) (Event, []byte, bool) {
	fields := bytes.SplitN(buf, []byte(" "), 6)
	if len(fields) < 6 {
		return Event{}, buf, false
	}
	if len(fields[0]) < 2 {
		return Event{}, buf, false
	}
	c1, c2 := fields[0][0], fields[0][1]

	q0, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return Event{}, buf, false
	}
	q1, err := strconv.Atoi(string(fields[2]))
	if err != nil {
		return Event{}, buf, false
	}
	if _, err := strconv.Atoi(string(fields[3])); err != nil { // flag, unused
		return Event{}, buf, false
	}
	nr, err := strconv.Atoi(string(fields[4]))
	if err != nil {
		return Event{}, buf, false
	}

	rest := fields[5]
	if len(rest) < nr+1 { // text + trailing newline
		return Event{}, buf, false
	}
	text := string(rest[:nr])
	after := rest[nr:]
	if len(after) > 0 && after[0] == '\n' {
		after = after[1:]
	}

	return Event{C1: c1, C2: c2, Q0: q0, Q1: q1, Text: text}, after, true
}
