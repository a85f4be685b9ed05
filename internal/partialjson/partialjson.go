// Package partialjson accumulates JSON text that arrives in fragments and
// opportunistically parses the buffer after every append. Failing to parse is
// the normal transient state while a value is still streaming in; it is
// deliberately not reported as an error.
package partialjson

import (
	"encoding/json"
	"strings"
)

// Accumulator buffers JSON fragments. The zero value is ready to use.
type Accumulator struct {
	buf      strings.Builder
	parsed   any
	everOK   bool
	complete bool
}

// AddFragment appends text to the buffer and re-attempts a parse of the whole
// buffer. Once a parse has succeeded, a later append that breaks syntax again
// keeps the last successfully parsed value.
func (a *Accumulator) AddFragment(text string) {
	a.buf.WriteString(text)
	var v any
	if err := json.Unmarshal([]byte(a.buf.String()), &v); err != nil {
		a.complete = false
		return
	}
	a.parsed = v
	a.everOK = true
	a.complete = true
}

// IsComplete reports whether the most recent parse attempt succeeded.
func (a *Accumulator) IsComplete() bool {
	return a.complete
}

// Parsed returns the last successfully parsed value. ok is false if no parse
// has ever succeeded.
func (a *Accumulator) Parsed() (v any, ok bool) {
	return a.parsed, a.everOK
}

// Raw returns the buffer verbatim, including any trailing fragment that has
// not yet parsed.
func (a *Accumulator) Raw() string {
	return a.buf.String()
}
