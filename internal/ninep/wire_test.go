package ninep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQIDRoundTrip(t *testing.T) {
	want := QID{Type: 0x80, Version: 7, Path: 0xdeadbeef}

	eb := newEncodeBuffer()
	want.encode(eb)

	var got QID
	require.NoError(t, got.decode(newDecodeBuffer(eb.b)))
	assert.Equal(t, want, got)
}

func TestWalkPktRoundTrip(t *testing.T) {
	want := walkPkt{FID: 3, NewFID: 4, Wname: []string{"p", "foo.go"}}

	eb := newEncodeBuffer()
	want.encode(eb)

	db := newDecodeBuffer(eb.b)
	fid, err := db.getUint32()
	require.NoError(t, err)
	newfid, err := db.getUint32()
	require.NoError(t, err)
	names, err := db.getStrings()
	require.NoError(t, err)

	assert.Equal(t, uint32(want.FID), fid)
	assert.Equal(t, uint32(want.NewFID), newfid)
	assert.Equal(t, want.Wname, names)
}

func TestRwalkPktRoundTrip(t *testing.T) {
	want := rwalkPkt{QIDs: []QID{{Type: 0, Version: 1, Path: 1}, {Type: 0x80, Version: 2, Path: 2}}}

	eb := newEncodeBuffer()
	eb.putUint16(uint16(len(want.QIDs)))
	for _, q := range want.QIDs {
		q.encode(eb)
	}

	var got rwalkPkt
	require.NoError(t, got.decode(newDecodeBuffer(eb.b)))
	assert.Equal(t, want, got)
}

func TestRerrorPktRoundTrip(t *testing.T) {
	eb := newEncodeBuffer()
	eb.putString("no such file")

	var got rerrorPkt
	require.NoError(t, got.decode(newDecodeBuffer(eb.b)))
	assert.Equal(t, "no such file", got.Ename)
}

// TestShortReadReturnedUnchanged covers the decode side of a boundary
// behavior: an Rread carrying fewer bytes than a read might ask for decodes
// to exactly those bytes, with nothing added or dropped.
func TestShortReadReturnedUnchanged(t *testing.T) {
	want := rreadPkt{Data: []byte("short")}

	eb := newEncodeBuffer()
	eb.putUint32(uint32(len(want.Data)))
	eb.putBytes(want.Data)

	var got rreadPkt
	require.NoError(t, got.decode(newDecodeBuffer(eb.b)))
	assert.Equal(t, want.Data, got.Data)
}
