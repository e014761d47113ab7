package win

import (
	"strconv"
	"strings"

	"github.com/mkmik/acre/internal/ninep"
)

// WindowInfo is one entry of the editor's window index: the window's id and
// its current display name (conventionally a file path).
type WindowInfo struct {
	ID   int
	Name string
}

// ListWindows reads the root "index" file, one "<id>\t<name>" record per
// line, and returns every currently open window.
func ListWindows(fsys *ninep.Fsys) ([]WindowInfo, error) {
	fid, err := fsys.Open("index", ninep.OREAD)
	if err != nil {
		return nil, err
	}
	defer fid.Clunk()

	var data []byte
	var off uint64
	for {
		chunk, err := fid.Read(off, 8192)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		data = append(data, chunk...)
		off += uint64(len(chunk))
	}

	var windows []WindowInfo
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		id, name, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(id)
		if err != nil {
			continue
		}
		windows = append(windows, WindowInfo{ID: n, Name: name})
	}
	return windows, nil
}
