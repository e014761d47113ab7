package ninep

import "strings"

// Fid is a logical handle for an open or walked path on the server. The
// Conn assigns the number; the Fid is exclusively responsible for clunking
// it when released.
type Fid struct {
	conn    *Conn
	num     FID
	qid     QID
	clunked bool
}

// Num returns the wire fid number, mostly useful for logging.
func (f *Fid) Num() FID { return f.num }

// QID returns the identity returned at attach/walk time.
func (f *Fid) QID() QID { return f.qid }

// Walk descends from this fid to the path named by names, binding the
// result to a freshly allocated fid. Per 9P2000, the walk is atomic: either
// every name resolves or none of them do.
func (f *Fid) Walk(names ...string) (*Fid, error) {
	newnum := f.conn.newFID()
	req := walkPkt{FID: f.num, NewFID: newnum, Wname: names}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := f.conn.rpc(Twalk, Rwalk, eb.b)
	if err != nil {
		return nil, err
	}

	var rw rwalkPkt
	if err := rw.decode(newDecodeBuffer(resp)); err != nil {
		return nil, err
	}

	var qid QID
	if len(rw.QIDs) > 0 {
		qid = rw.QIDs[len(rw.QIDs)-1]
	} else {
		qid = f.qid
	}
	return &Fid{conn: f.conn, num: newnum, qid: qid}, nil
}

// WalkPath is a convenience over Walk that splits a slash-separated path.
func (f *Fid) WalkPath(path string) (*Fid, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return f.Walk()
	}
	return f.Walk(strings.Split(path, "/")...)
}

// Open opens the fid with the given mode.
func (f *Fid) Open(mode Mode) error {
	req := openPkt{FID: f.num, Mode: mode}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := f.conn.rpc(Topen, Ropen, eb.b)
	if err != nil {
		return err
	}
	var ro ropenPkt
	if err := ro.decode(newDecodeBuffer(resp)); err != nil {
		return err
	}
	f.qid = ro.QID
	return nil
}

// Read reads up to count bytes at offset. Short reads are returned
// unchanged; the caller is responsible for retrying if it wants more.
func (f *Fid) Read(offset uint64, count uint32) ([]byte, error) {
	req := readPkt{FID: f.num, Offset: offset, Count: count}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := f.conn.rpc(Tread, Rread, eb.b)
	if err != nil {
		return nil, err
	}
	var rr rreadPkt
	if err := rr.decode(newDecodeBuffer(resp)); err != nil {
		return nil, err
	}
	return rr.Data, nil
}

// Write writes data at offset and returns the count actually written.
func (f *Fid) Write(offset uint64, data []byte) (uint32, error) {
	req := writePkt{FID: f.num, Offset: offset, Data: data}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := f.conn.rpc(Twrite, Rwrite, eb.b)
	if err != nil {
		return 0, err
	}
	var rw rwritePkt
	if err := rw.decode(newDecodeBuffer(resp)); err != nil {
		return 0, err
	}
	return rw.Count, nil
}

// Clunk releases the fid. It is idempotent from the caller's perspective:
// calling it twice returns nil the second time rather than erroring, since
// the fid number has already been retired.
func (f *Fid) Clunk() error {
	if f.clunked {
		return nil
	}
	req := clunkPkt{FID: f.num}
	eb := newEncodeBuffer()
	req.encode(eb)

	_, err := f.conn.rpc(Tclunk, Rclunk, eb.b)
	f.clunked = true
	return err
}
