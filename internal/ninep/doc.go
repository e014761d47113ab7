// Package ninep implements a client for the 9P2000 file protocol used by the
// editor to expose its windows, the global event log, and the plumber as a
// file tree.
//
// The package is split along the lines of the two engines described by the
// system: a transport (Conn) that frames and tag-multiplexes messages on one
// stream, and a session layer (Fid/Fsys) that turns that transport into the
// usual walk/open/read/write/clunk file operations.
package ninep
