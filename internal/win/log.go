package win

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/mkmik/acre/internal/ninep"
)

// LogEvent is one record from the editor's global, append-only event log.
type LogEvent struct {
	Op   string // "new", "del", "focus", "put"
	ID   int
	Name string
}

// LogReader opens the global editor event log (a streaming 9P file) and
// yields one LogEvent per record. Unknown ops are discarded.
type LogReader struct {
	fid    *ninep.Fid
	reader *bufio.Reader
}

var recognizedOps = map[string]bool{
	"new":   true,
	"del":   true,
	"focus": true,
	"put":   true,
}

// OpenLog opens the log file at the editor root (conventionally named
// "log").
func OpenLog(fsys *ninep.Fsys) (*LogReader, error) {
	fid, err := fsys.Open("log", ninep.OREAD)
	if err != nil {
		return nil, err
	}
	return &LogReader{fid: fid, reader: bufio.NewReader(newFidReader(fid))}, nil
}

// Next blocks for the next recognized log record, discarding unknown ops.
func (l *LogReader) Next() (LogEvent, error) {
	for {
		line, err := l.reader.ReadString('\n')
		if err != nil {
			return LogEvent{}, err
		}
		line = strings.TrimRight(line, "\n")
		fields := strings.SplitN(line, " ", 3)
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		op := fields[1]
		if !recognizedOps[op] {
			continue
		}
		var name string
		if len(fields) == 3 {
			name = fields[2]
		}
		return LogEvent{Op: op, ID: id, Name: name}, nil
	}
}

// fidReader adapts a ninep.Fid's Read(offset, count) calls to an io.Reader
// over a streaming file where offset is meaningless (the server advances
// its own read position for a log fid).
type fidReader struct {
	fid *ninep.Fid
}

func newFidReader(fid *ninep.Fid) *fidReader { return &fidReader{fid: fid} }

func (r *fidReader) Read(p []byte) (int, error) {
	data, err := r.fid.Read(0, uint32(len(p)))
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, errEOFLike{}
	}
	n := copy(p, data)
	return n, nil
}

type errEOFLike struct{}

func (errEOFLike) Error() string { return "win: log stream ended" }
