package ninep

import (
	"encoding/binary"
	"fmt"
)

// MType is a 9P2000 message type byte.
type MType uint8

// 9P2000 message types.
const (
	Tversion MType = 100 + iota
	Rversion
	Tauth
	Rauth
	Tattach
	Rattach
	Terror
	Rerror
	Tflush
	Rflush
	Twalk
	Rwalk
	Topen
	Ropen
	Tcreate
	Rcreate
	Tread
	Rread
	Twrite
	Rwrite
	Tclunk
	Rclunk
	Tremove
	Rremove
	Tstat
	Rstat
	Twstat
	Rwstat
)

var mtypeNames = map[MType]string{
	Tversion: "Tversion", Rversion: "Rversion",
	Tauth: "Tauth", Rauth: "Rauth",
	Tattach: "Tattach", Rattach: "Rattach",
	Terror: "Terror", Rerror: "Rerror",
	Tflush: "Tflush", Rflush: "Rflush",
	Twalk: "Twalk", Rwalk: "Rwalk",
	Topen: "Topen", Ropen: "Ropen",
	Tcreate: "Tcreate", Rcreate: "Rcreate",
	Tread: "Tread", Rread: "Rread",
	Twrite: "Twrite", Rwrite: "Rwrite",
	Tclunk: "Tclunk", Rclunk: "Rclunk",
	Tremove: "Tremove", Rremove: "Rremove",
	Tstat: "Tstat", Rstat: "Rstat",
	Twstat: "Twstat", Rwstat: "Rwstat",
}

func (t MType) String() string {
	if n, ok := mtypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MType(%d)", uint8(t))
}

// Tag multiplexes concurrent requests on one Conn.
type Tag uint16

// FID is a client-assigned handle for an open or walked path.
type FID uint32

// Mode is the flags argument to Topen/Tcreate.
type Mode uint8

// Open modes.
const (
	OREAD   Mode = 0x00
	OWRITE  Mode = 0x01
	ORDWR   Mode = 0x02
	OEXEC   Mode = 0x03
	OTRUNC  Mode = 0x10
	OCEXEC  Mode = 0x20
	ORCLOSE Mode = 0x40
)

const (
	// NOTAG is never allocated by the tag allocator.
	NOTAG Tag = 0xFFFF
	// NOFID marks "no authentication fid" in Tattach.
	NOFID FID = 0xFFFFFFFF

	// DefaultMsize is proposed at Tversion before the server's reply is adopted.
	DefaultMsize = 131072
	// Version is the only dialect this client speaks.
	Version = "9P2000"

	headerSize = 4 + 1 + 2 // size:u32 type:u8 tag:u2
)

// QID is the server-assigned identity of a file: type, version, path.
type QID struct {
	Type    uint8
	Version uint32
	Path    uint64
}

func (q QID) encode(b *buffer) {
	b.putUint8(q.Type)
	b.putUint32(q.Version)
	b.putUint64(q.Path)
}

func (q *QID) decode(b *buffer) error {
	var err error
	if q.Type, err = b.getUint8(); err != nil {
		return err
	}
	if q.Version, err = b.getUint32(); err != nil {
		return err
	}
	if q.Path, err = b.getUint64(); err != nil {
		return err
	}
	return nil
}

// buffer is a small growable byte cursor used to encode/decode 9P fields in
// their wire order (the order struct fields are declared in, little-endian).
type buffer struct {
	b   []byte
	off int
}

func newEncodeBuffer() *buffer { return &buffer{} }

func newDecodeBuffer(b []byte) *buffer { return &buffer{b: b} }

func (b *buffer) putUint8(v uint8)   { b.b = append(b.b, v) }
func (b *buffer) putUint16(v uint16) { b.b = binary.LittleEndian.AppendUint16(b.b, v) }
func (b *buffer) putUint32(v uint32) { b.b = binary.LittleEndian.AppendUint32(b.b, v) }
func (b *buffer) putUint64(v uint64) { b.b = binary.LittleEndian.AppendUint64(b.b, v) }

func (b *buffer) putString(s string) {
	b.putUint16(uint16(len(s)))
	b.b = append(b.b, s...)
}

func (b *buffer) putBytes(data []byte) {
	b.b = append(b.b, data...)
}

func (b *buffer) putStrings(ss []string) {
	b.putUint16(uint16(len(ss)))
	for _, s := range ss {
		b.putString(s)
	}
}

var errShortMessage = fmt.Errorf("ninep: message too short")

func (b *buffer) getUint8() (uint8, error) {
	if b.off+1 > len(b.b) {
		return 0, errShortMessage
	}
	v := b.b[b.off]
	b.off++
	return v, nil
}

func (b *buffer) getUint16() (uint16, error) {
	if b.off+2 > len(b.b) {
		return 0, errShortMessage
	}
	v := binary.LittleEndian.Uint16(b.b[b.off:])
	b.off += 2
	return v, nil
}

func (b *buffer) getUint32() (uint32, error) {
	if b.off+4 > len(b.b) {
		return 0, errShortMessage
	}
	v := binary.LittleEndian.Uint32(b.b[b.off:])
	b.off += 4
	return v, nil
}

func (b *buffer) getUint64() (uint64, error) {
	if b.off+8 > len(b.b) {
		return 0, errShortMessage
	}
	v := binary.LittleEndian.Uint64(b.b[b.off:])
	b.off += 8
	return v, nil
}

func (b *buffer) getString() (string, error) {
	n, err := b.getUint16()
	if err != nil {
		return "", err
	}
	if b.off+int(n) > len(b.b) {
		return "", errShortMessage
	}
	s := string(b.b[b.off : b.off+int(n)])
	b.off += int(n)
	return s, nil
}

func (b *buffer) getBytes(n int) ([]byte, error) {
	if n < 0 || b.off+n > len(b.b) {
		return nil, errShortMessage
	}
	v := b.b[b.off : b.off+n]
	b.off += n
	return v, nil
}

func (b *buffer) getStrings() ([]string, error) {
	n, err := b.getUint16()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = b.getString(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (b *buffer) remaining() []byte { return b.b[b.off:] }
