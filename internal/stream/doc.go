// Package stream defines the contract shared by every incremental parser in
// rpcstream.
//
// A parser is created for exactly one logical response stream and is fed the
// new delta of input on every call. Parse returns the batch of top-level
// messages completed by that delta, or a nil batch when nothing completed
// yet. The first malformed input latches the parser invalid for the rest of
// its life: every later call fails immediately with an error wrapping
// ErrInvalidStream.
//
// Parsers are synchronous and own their buffers; a single parser must not be
// used from more than one goroutine at a time.
package stream
