package ninep

// Fsys is an authenticated attachment rooted at one tree, created by
// Tattach with afid=NOFID (no authentication; both peers are local).
type Fsys struct {
	root *Fid
}

// Attach issues Tattach and returns an Fsys rooted at the result.
func Attach(conn *Conn, uname, aname string) (*Fsys, error) {
	num := conn.newFID()
	req := attachPkt{FID: num, AFID: NOFID, Uname: uname, Aname: aname}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := conn.rpc(Tattach, Rattach, eb.b)
	if err != nil {
		return nil, err
	}
	var ra rattachPkt
	if err := ra.decode(newDecodeBuffer(resp)); err != nil {
		return nil, err
	}

	return &Fsys{root: &Fid{conn: conn, num: num, qid: ra.QID}}, nil
}

// Root returns the fid attached at the tree's root.
func (fs *Fsys) Root() *Fid { return fs.root }

// Open walks from the root fid to path and opens the resulting fid with
// mode, returning the opened fid.
func (fs *Fsys) Open(path string, mode Mode) (*Fid, error) {
	fid, err := fs.root.WalkPath(path)
	if err != nil {
		return nil, err
	}
	if err := fid.Open(mode); err != nil {
		fid.Clunk()
		return nil, err
	}
	return fid, nil
}
