// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/json"
)

// =============================================================================
// CHUNK DECODER
// =============================================================================

// ChunkDecoder splits an incoming byte stream into discrete JSON records on
// newline boundaries, carrying undecodable trailing bytes over to the next
// Feed call.
//
// The decoder never blocks and never buffers more than the longest single
// undecoded record. It is not safe for concurrent use; each stream owns its
// own decoder.
type ChunkDecoder struct {
	carry     []byte
	corrupt   int
	onCorrupt func(line []byte)
}

// NewChunkDecoder creates an empty decoder.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{}
}

// SetCorruptHandler installs a callback invoked with each dropped slice
// that contained a newline but did not parse as a JSON object.
func (d *ChunkDecoder) SetCorruptHandler(fn func(line []byte)) {
	d.onCorrupt = fn
}

// Feed appends fragment to the carry-over buffer and returns every fully
// formed record that can now be decoded, in stream order.
//
// A slice ending in a newline that fails to parse and is not purely
// whitespace is reported as corrupt and dropped; the protocol does not
// embed literal newlines inside a JSON value. If the buffer holds no
// newline but parses as a complete object on its own, it is yielded
// immediately (servers may omit the newline on the final chunk).
func (d *ChunkDecoder) Feed(fragment []byte) []Record {
	if len(fragment) == 0 && len(d.carry) == 0 {
		return nil
	}
	d.carry = append(d.carry, fragment...)

	var records []Record
	for {
		nl := bytes.IndexByte(d.carry, '\n')
		if nl < 0 {
			break
		}
		line := d.carry[:nl+1]
		rec, ok := decodeRecord(line)
		if ok {
			records = append(records, rec)
		} else if len(bytes.TrimSpace(line)) > 0 {
			d.corrupt++
			if d.onCorrupt != nil {
				d.onCorrupt(bytes.TrimSpace(line))
			}
		}
		d.carry = d.carry[nl+1:]
	}

	// No newline left. The final chunk of a stream may arrive without one,
	// so try the whole remainder as a single object before giving up.
	if len(bytes.TrimSpace(d.carry)) > 0 {
		if rec, ok := decodeRecord(d.carry); ok {
			records = append(records, rec)
			d.carry = d.carry[:0]
		}
	}

	return records
}

// Pending returns a copy of the not-yet-decoded trailing bytes. A non-empty
// result after stream end means the server sent a truncated record.
func (d *ChunkDecoder) Pending() []byte {
	rest := bytes.TrimSpace(d.carry)
	if len(rest) == 0 {
		return nil
	}
	out := make([]byte, len(rest))
	copy(out, rest)
	return out
}

// CorruptCount returns how many corrupt slices were dropped so far.
func (d *ChunkDecoder) CorruptCount() int {
	return d.corrupt
}

// Reset discards all carried bytes and counters.
func (d *ChunkDecoder) Reset() {
	d.carry = d.carry[:0]
	d.corrupt = 0
}

// decodeRecord parses one slice as a single JSON record. It rejects slices
// that are valid JSON but not objects (bare numbers, arrays) since the
// protocol only ever transmits objects.
func decodeRecord(data []byte) (Record, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}
