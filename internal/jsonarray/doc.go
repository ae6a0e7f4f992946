// Package jsonarray incrementally parses a top-level JSON array whose text
// arrives in arbitrary chunks.
//
// Each element directly under the top-level array is surfaced as soon as its
// closing token is consumed, either decoded with encoding/json or, when
// Options.DeliverRawString is set, as the exact source text of the element.
// Only the text of the element currently being scanned is buffered between
// calls; input is never scanned twice.
//
// The parser validates structure only. Numeric literals are accepted as any
// run of digits, '.', 'e', 'E', '+' and '-'; full JSON grammar is left to the
// decoder in decode mode.
package jsonarray
