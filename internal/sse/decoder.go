// Package sse decodes Server-Sent-Events byte streams into their "data:"
// payloads. The decoder is stateful on purpose: upstream network chunking is
// not aligned to SSE record boundaries, so a record may arrive split across
// two reads and must be reassembled before it can be parsed.
package sse

import (
	"bytes"
	"io"
)

const readChunkSize = 32 * 1024

// Decoder turns an arbitrarily chunked byte stream into a lazy, forward-only
// sequence of SSE data payloads. It owns a carry-over buffer that persists
// across reads; a trailing partial line is retained until its terminator
// arrives and is never emitted prematurely. Not safe for concurrent use and
// not restartable.
type Decoder struct {
	r       io.Reader
	carry   []byte
	pending [][]byte
	scratch []byte
	eof     bool
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:       r,
		scratch: make([]byte, readChunkSize),
	}
}

// Next returns the next data payload with the "data:" marker and one optional
// leading space stripped. It returns io.EOF once the stream is exhausted, or
// the underlying read error if the stream failed mid-flight. Payloads remain
// valid until the next call.
func (d *Decoder) Next() ([]byte, error) {
	for {
		if len(d.pending) > 0 {
			payload := d.pending[0]
			d.pending = d.pending[1:]
			return payload, nil
		}
		if d.err != nil {
			return nil, d.err
		}
		if d.eof {
			return nil, io.EOF
		}
		d.fill()
	}
}

// fill performs one read, appends the bytes to the carry-over buffer and
// splits out every complete line. On end-of-stream the residual buffer is
// flushed as a final candidate line.
func (d *Decoder) fill() {
	n, err := d.r.Read(d.scratch)
	if n > 0 {
		d.carry = append(d.carry, d.scratch[:n]...)
		d.splitLines()
	}
	if err == io.EOF {
		d.eof = true
		d.flush()
		return
	}
	if err != nil {
		d.err = err
	}
}

func (d *Decoder) splitLines() {
	for {
		idx := bytes.IndexByte(d.carry, '\n')
		if idx < 0 {
			return
		}
		line := d.carry[:idx]
		d.carry = d.carry[idx+1:]
		d.emit(line)
	}
}

// flush evaluates whatever is left in the carry-over buffer at end-of-stream.
// A residual line that never saw its terminator is still offered downstream;
// if it is a truncated record its payload will simply fail to parse there.
func (d *Decoder) flush() {
	if len(d.carry) == 0 {
		return
	}
	line := d.carry
	d.carry = nil
	d.emit(line)
}

// emit appends the line's payload to pending if it is a data line. Comment
// lines and other SSE fields (event:, id:, retry:) carry no payload here and
// are dropped.
func (d *Decoder) emit(line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if !bytes.HasPrefix(line, []byte("data:")) {
		return
	}
	payload := line[len("data:"):]
	// The SSE spec allows a single optional space after the colon.
	if len(payload) > 0 && payload[0] == ' ' {
		payload = payload[1:]
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	d.pending = append(d.pending, cp)
}
