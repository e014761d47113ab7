package win

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkmik/acre/internal/ninep"
)

// Win is a handle over one editor window, holding file-handle fids for the
// window's sub-files: body, addr, data, ctl, tag, event.
type Win struct {
	fsys *ninep.Fsys
	id   int

	ctl   *ninep.Fid
	body  *ninep.Fid
	addr  *ninep.Fid
	data  *ninep.Fid
	tag   *ninep.Fid
	event *ninep.Fid
}

// Open constructs a handle over an existing window, opening its ctl file.
func Open(fsys *ninep.Fsys, id int) (*Win, error) {
	ctl, err := fsys.Open(fmt.Sprintf("%d/ctl", id), ninep.ORDWR)
	if err != nil {
		return nil, fmt.Errorf("win: open %d/ctl: %w", id, err)
	}
	return &Win{fsys: fsys, id: id, ctl: ctl}, nil
}

// New creates a window by opening the root directory's new/ctl file, reads
// the new window's id from it, then opens the resulting window.
func New(fsys *ninep.Fsys) (*Win, error) {
	newCtl, err := fsys.Open("new/ctl", ninep.ORDWR)
	if err != nil {
		return nil, fmt.Errorf("win: open new/ctl: %w", err)
	}
	defer newCtl.Clunk()

	data, err := newCtl.Read(0, 256)
	if err != nil {
		return nil, fmt.Errorf("win: read new/ctl: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("win: new/ctl did not report an id")
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("win: new/ctl id %q: %w", fields[0], err)
	}
	return Open(fsys, id)
}

// ID returns the window's integer id.
func (w *Win) ID() int { return w.id }

func (w *Win) subfile(name string, f **ninep.Fid, mode ninep.Mode) (*ninep.Fid, error) {
	if *f != nil {
		return *f, nil
	}
	fid, err := w.fsys.Open(fmt.Sprintf("%d/%s", w.id, name), mode)
	if err != nil {
		return nil, fmt.Errorf("win: open %d/%s: %w", w.id, name, err)
	}
	*f = fid
	return fid, nil
}

// Name returns the window's current display name, read from the tag line's
// first field (acme convention: the tag begins with the file path).
func (w *Win) Name() (string, error) {
	tag, err := w.subfile("tag", &w.tag, ninep.ORDWR)
	if err != nil {
		return "", err
	}
	data, err := tag.Read(0, 8192)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// Ctl writes a control command, e.g. "clean", "dirty", "get", "del".
func (w *Win) Ctl(command string) error {
	_, err := w.ctl.Write(0, []byte(command+"\n"))
	return err
}

// Addr writes an address expression to the addr file, e.g. "#12,#34".
func (w *Win) Addr(spec string) error {
	addr, err := w.subfile("addr", &w.addr, ninep.ORDWR)
	if err != nil {
		return err
	}
	_, err = addr.Write(0, []byte(spec))
	return err
}

// ReadAddr reads back the two space-separated rune offsets the addr file
// reports after an address expression has been evaluated (e.g. following
// the ctl command "addr=dot", as Dot does), returning q0 and q1.
func (w *Win) ReadAddr() (q0, q1 int, err error) {
	addr, err := w.subfile("addr", &w.addr, ninep.ORDWR)
	if err != nil {
		return 0, 0, err
	}
	data, err := addr.Read(0, 64)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("win: malformed addr read %q", data)
	}
	q0, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("win: addr q0 %q: %w", fields[0], err)
	}
	q1, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("win: addr q1 %q: %w", fields[1], err)
	}
	return q0, q1, nil
}

// Dot sets the addr file to the window's current selection via the ctl
// command "addr=dot", then reads it back, returning the selection as rune
// offsets.
func (w *Win) Dot() (q0, q1 int, err error) {
	if err := w.Ctl("addr=dot"); err != nil {
		return 0, 0, fmt.Errorf("win: addr=dot: %w", err)
	}
	return w.ReadAddr()
}

// Write writes bytes to the named sub-file (body, tag, data) at offset 0,
// appending to it per the editor's write-is-insert-at-dot semantics for
// data/tag, or full-body replacement semantics for body.
func (w *Win) Write(subfile string, data []byte) error {
	var fid **ninep.Fid
	switch subfile {
	case "body":
		fid = &w.body
	case "tag":
		fid = &w.tag
	case "data":
		fid = &w.data
	default:
		return fmt.Errorf("win: unknown subfile %q", subfile)
	}
	f, err := w.subfile(subfile, fid, ninep.ORDWR)
	if err != nil {
		return err
	}
	_, err = f.Write(0, data)
	return err
}

// ReadBody reads the entire current body text.
func (w *Win) ReadBody() (string, error) {
	body, err := w.subfile("body", &w.body, ninep.OREAD)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var off uint64
	for {
		chunk, err := body.Read(off, 8192)
		if err != nil {
			return "", err
		}
		if len(chunk) == 0 {
			break
		}
		sb.Write(chunk)
		off += uint64(len(chunk))
	}
	return sb.String(), nil
}

// Clunk releases every fid this handle has opened (ctl plus whichever of
// body/addr/data/tag/event were touched), for callers that open a window
// for a single gesture and don't want its fids to outlive that use.
func (w *Win) Clunk() error {
	var firstErr error
	for _, f := range []*ninep.Fid{w.ctl, w.body, w.addr, w.data, w.tag, w.event} {
		if f == nil {
			continue
		}
		if err := f.Clunk(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Del closes the window. If kill is true, unsaved changes are discarded.
func (w *Win) Del(kill bool) error {
	if kill {
		return w.Ctl("delete")
	}
	return w.Ctl("del")
}

// Events opens the window's event file and returns a WinEvents reader.
func (w *Win) Events() (*WinEvents, error) {
	ev, err := w.subfile("event", &w.event, ninep.ORDWR)
	if err != nil {
		return nil, err
	}
	return &WinEvents{win: w, fid: ev}, nil
}
