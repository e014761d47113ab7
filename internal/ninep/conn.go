package ninep

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"
)

// message is a decoded frame ready for dispatch: the type byte, the tag, and
// the remaining body bytes (everything after the tag).
type message struct {
	mtype MType
	tag   Tag
	body  []byte
}

// Conn is one connection to the editor's 9P2000 file server. Exactly one
// reader goroutine owns the inbound stream; the writer mutex serializes
// outbound framing; the tag table routes each reply to the caller that sent
// the matching request.
type Conn struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader

	log *zap.SugaredLogger

	tags *tagAllocator

	routeMu sync.Mutex
	routes  map[Tag]chan message

	writeMu sync.Mutex

	nextFID  uint32
	fidMu    sync.Mutex

	msize uint32

	errOnce sync.Once
	errCh   chan error
}

// Dial connects to the editor's 9P service over a Unix-domain stream socket
// and performs the Tversion handshake.
func Dial(network, addr string, log *zap.SugaredLogger) (*Conn, error) {
	nc, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("ninep: dial %s %s: %w", network, addr, err)
	}
	return newConn(nc, log)
}

func newConn(rw io.ReadWriteCloser, log *zap.SugaredLogger) (*Conn, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Conn{
		rw:      rw,
		reader:  bufio.NewReaderSize(rw, 64*1024),
		log:     log,
		tags:    newTagAllocator(),
		routes:  make(map[Tag]chan message),
		nextFID: 1, // fid 0 is never handed out; the root fid from Attach is the first one allocated
		errCh:   make(chan error, 1),
	}

	go c.readLoop()

	if err := c.version(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Msize returns the negotiated maximum message size.
func (c *Conn) Msize() uint32 { return c.msize }

// Errors delivers a single fatal error when the reader goroutine dies.
func (c *Conn) Errors() <-chan error { return c.errCh }

// Close releases the underlying stream. It does not clunk outstanding fids.
func (c *Conn) Close() error { return c.rw.Close() }

// version performs the Tversion/Rversion handshake: propose DefaultMsize
// and 9P2000, fail if the server's msize is
// larger than proposed or the version string differs, otherwise adopt the
// server's msize.
func (c *Conn) version() error {
	req := versionPkt{Msize: DefaultMsize, Version: Version}
	eb := newEncodeBuffer()
	req.encode(eb)

	resp, err := c.rpc(Tversion, Rversion, eb.b)
	if err != nil {
		return err
	}

	var rv versionPkt
	if err := rv.decode(newDecodeBuffer(resp)); err != nil {
		return fmt.Errorf("ninep: decode Rversion: %w", err)
	}
	if rv.Version != Version {
		return &VersionError{Msg: fmt.Sprintf("server speaks %q, not %q", rv.Version, Version)}
	}
	if rv.Msize > DefaultMsize {
		return &VersionError{Msg: fmt.Sprintf("server msize %d exceeds proposed %d", rv.Msize, DefaultMsize)}
	}
	c.msize = rv.Msize
	return nil
}

// newFID allocates a fresh fid number. Unlike tags, fid numbers are never
// recycled within a session.
func (c *Conn) newFID() FID {
	c.fidMu.Lock()
	defer c.fidMu.Unlock()
	f := FID(c.nextFID)
	c.nextFID++
	return f
}

// rpc allocates a tag, sends type|tag|body, and blocks for the matching
// reply. It fails with *ProtocolError if the reply's type is neither the
// expected reply type nor Rerror, and with *ServerError if the reply was
// Rerror.
func (c *Conn) rpc(reqType, wantReply MType, body []byte) ([]byte, error) {
	tag, err := c.tags.alloc()
	if err != nil {
		return nil, err
	}

	ch := make(chan message, 1)
	c.routeMu.Lock()
	c.routes[tag] = ch
	c.routeMu.Unlock()

	frame := newEncodeBuffer()
	frame.putUint32(0) // size placeholder, patched below
	frame.putUint8(uint8(reqType))
	frame.putUint16(uint16(tag))
	frame.putBytes(body)
	patchSize(frame.b)

	c.writeMu.Lock()
	_, werr := c.rw.Write(frame.b)
	c.writeMu.Unlock()
	if werr != nil {
		c.routeMu.Lock()
		delete(c.routes, tag)
		c.routeMu.Unlock()
		c.tags.release(tag)
		return nil, fmt.Errorf("ninep: write: %w", werr)
	}

	msg, ok := <-ch
	c.tags.release(tag)
	if !ok {
		return nil, fmt.Errorf("ninep: connection closed while awaiting reply")
	}

	switch msg.mtype {
	case wantReply:
		return msg.body, nil
	case Rerror:
		var re rerrorPkt
		if err := re.decode(newDecodeBuffer(msg.body)); err != nil {
			return nil, fmt.Errorf("ninep: decode Rerror: %w", err)
		}
		return nil, &ServerError{Ename: re.Ename}
	default:
		return nil, &ProtocolError{Want: wantReply, Got: msg.mtype}
	}
}

func patchSize(b []byte) {
	n := len(b)
	b[0] = byte(n)
	b[1] = byte(n >> 8)
	b[2] = byte(n >> 16)
	b[3] = byte(n >> 24)
}

// readLoop is the sole reader of the inbound stream. It frames each message,
// routes it to the caller awaiting that tag, and removes the tag from the
// routing table (the reader retires the route of every reply it delivers;
// rpc removes its own route only when the request could not be written). An unknown
// tag is a protocol violation and is treated as fatal.
func (c *Conn) readLoop() {
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.fail(fmt.Errorf("ninep: read: %w", err))
			return
		}

		c.routeMu.Lock()
		ch, ok := c.routes[msg.tag]
		if ok {
			delete(c.routes, msg.tag)
		}
		c.routeMu.Unlock()

		if !ok {
			c.fail(fmt.Errorf("ninep: reply for unknown tag %d (type %v)", msg.tag, msg.mtype))
			return
		}
		ch <- msg
	}
}

func (c *Conn) readMessage() (message, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.reader, sizeBuf[:]); err != nil {
		return message{}, err
	}
	size := uint32(sizeBuf[0]) | uint32(sizeBuf[1])<<8 | uint32(sizeBuf[2])<<16 | uint32(sizeBuf[3])<<24
	if size < headerSize {
		return message{}, fmt.Errorf("ninep: message too short: %d", size)
	}

	rest := make([]byte, size-4)
	if _, err := io.ReadFull(c.reader, rest); err != nil {
		return message{}, err
	}

	mtype := MType(rest[0])
	tag := Tag(rest[1]) | Tag(rest[2])<<8
	return message{mtype: mtype, tag: tag, body: rest[3:]}, nil
}

func (c *Conn) fail(err error) {
	c.log.Errorw("ninep: connection failed", "error", err)
	c.errOnce.Do(func() {
		c.errCh <- err
		close(c.errCh)
	})

	c.routeMu.Lock()
	for tag, ch := range c.routes {
		close(ch)
		delete(c.routes, tag)
	}
	c.routeMu.Unlock()
}
