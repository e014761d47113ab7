package ninep

import (
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer replies to frames on a net.Pipe with caller-supplied handlers,
// keyed by request MType. It mirrors the shape of the Dispatch table in
// Harvey-OS/ninep's protocol.go, simplified for tests.
type fakeServer struct {
	conn    net.Conn
	mu      sync.Mutex
	handler func(mtype MType, tag Tag, body []byte) (MType, []byte)
}

func newFakeServer(conn net.Conn, handler func(MType, Tag, []byte) (MType, []byte)) *fakeServer {
	s := &fakeServer{conn: conn, handler: handler}
	go s.serve()
	return s
}

func (s *fakeServer) serve() {
	r := io.Reader(s.conn)
	for {
		var sizeBuf [4]byte
		if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
			return
		}
		size := uint32(sizeBuf[0]) | uint32(sizeBuf[1])<<8 | uint32(sizeBuf[2])<<16 | uint32(sizeBuf[3])<<24
		rest := make([]byte, size-4)
		if _, err := io.ReadFull(r, rest); err != nil {
			return
		}
		mtype := MType(rest[0])
		tag := Tag(rest[1]) | Tag(rest[2])<<8
		body := rest[3:]

		replyType, replyBody := s.handler(mtype, tag, body)

		frame := newEncodeBuffer()
		frame.putUint32(0)
		frame.putUint8(uint8(replyType))
		frame.putUint16(uint16(tag))
		frame.putBytes(replyBody)
		patchSize(frame.b)

		s.mu.Lock()
		_, err := s.conn.Write(frame.b)
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func versionHandler(msize uint32, version string) func(MType, Tag, []byte) (MType, []byte) {
	return func(mtype MType, tag Tag, body []byte) (MType, []byte) {
		switch mtype {
		case Tversion:
			eb := newEncodeBuffer()
			(versionPkt{Msize: msize, Version: version}).encode(eb)
			return Rversion, eb.b
		default:
			eb := newEncodeBuffer()
			eb.putString("unexpected request in test")
			return Rerror, eb.b
		}
	}
}

func TestDial_AdoptsServerMsizeWhenSmaller(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	newFakeServer(server, versionHandler(8192, Version))

	conn, err := newConn(client, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(8192), conn.Msize())
}

func TestDial_FailsOnWrongVersion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	newFakeServer(server, versionHandler(8192, "9P2000.u"))

	_, err := newConn(client, nil)
	require.Error(t, err)
	var verr *VersionError
	assert.ErrorAs(t, err, &verr)
}

func TestDial_FailsWhenServerMsizeExceedsProposed(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	newFakeServer(server, versionHandler(DefaultMsize+1, Version))

	_, err := newConn(client, nil)
	require.Error(t, err)
	var verr *VersionError
	assert.ErrorAs(t, err, &verr)
}

// TestRPC_ConcurrentCallsGetOwnReplies exercises the tag round-trip property
// under concurrency: many callers issue RPCs at once and each must observe
// exactly its own reply, regardless of reply ordering.
func TestRPC_ConcurrentCallsGetOwnReplies(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	newFakeServer(server, func(mtype MType, tag Tag, body []byte) (MType, []byte) {
		switch mtype {
		case Tversion:
			eb := newEncodeBuffer()
			(versionPkt{Msize: DefaultMsize, Version: Version}).encode(eb)
			return Rversion, eb.b
		case Tattach:
			db := newDecodeBuffer(body)
			fid, _ := db.getUint32()
			// Echo the requesting fid back in the QID path so each caller
			// can verify it got its own reply.
			eb := newEncodeBuffer()
			(QID{Type: 0, Version: 0, Path: uint64(fid)}).encode(eb)
			return Rattach, eb.b
		default:
			return Rerror, nil
		}
	})

	conn, err := newConn(client, nil)
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fsys, err := Attach(conn, "user", "")
			if err != nil {
				errs <- err
				return
			}
			if fsys.Root().QID().Path != uint64(fsys.Root().Num()) {
				errs <- assertionError{}
				return
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent attach failed: %v", err)
	}
}

type assertionError struct{}

func (assertionError) Error() string { return "reply did not match own request" }
