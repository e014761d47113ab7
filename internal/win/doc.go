// Package win provides a higher-level facade over editor windows and the
// global event log, built on top of internal/ninep's Fid/Fsys session layer.
package win
