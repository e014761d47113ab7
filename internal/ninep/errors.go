package ninep

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra data.
var (
	// ErrOutOfTags is returned when the tag allocator cannot produce a tag:
	// next_tag would equal NOTAG and the free list is empty.
	ErrOutOfTags = errors.New("ninep: out of tags")

	// ErrShortMessage indicates a frame was truncated.
	ErrShortMessage = errShortMessage
)

// ProtocolError indicates a reply's type byte did not match the expected
// reply for the request, and was not Rerror either.
type ProtocolError struct {
	Want MType
	Got  MType
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ninep: protocol mismatch: wanted %v, got %v", e.Want, e.Got)
}

// ServerError wraps an Rerror reply's Ename.
type ServerError struct {
	Ename string
}

func (e *ServerError) Error() string { return fmt.Sprintf("ninep: %s", e.Ename) }

// VersionError indicates the server did not speak 9P2000, or the connection
// negotiated a msize larger than proposed.
type VersionError struct {
	Msg string
}

func (e *VersionError) Error() string { return fmt.Sprintf("ninep: version: %s", e.Msg) }
