// Package httpcore is the incremental HTTP/1.1 codec (component E): a
// request parser that consumes bytes as they arrive from a non-blocking
// source, and a response serializer that streams a response back
// symmetrically. Neither side buffers more than one I/O frame at a time.
package httpcore
