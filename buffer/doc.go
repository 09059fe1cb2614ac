// Package buffer implements the pure dictation text model: committed text,
// a cursor/selection and the in-flight partial hypothesis.
//
// Offsets are 0-based rune offsets into the committed text.
// Ranges are half-open selections: [Start, End).
package buffer
