// Package logs reads the controller and engine log files for `lwectl logs`.
//
// Last returns the final lines of a file with bounded memory. Follow streams
// lines appended after an offset and starts over when the file is rotated or
// truncated underneath it.
package logs
