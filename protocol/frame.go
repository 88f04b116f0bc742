// Package protocol implements the framed wire format shared by every agent
// that talks to the Central Coordinator (CP engines, CP monitors, drivers):
// <STX><payload><ETX><LRC>, where payload is a '#'-delimited field list and
// LRC is the XOR of every byte from STX through ETX inclusive.
package protocol

import "unicode/utf8"

const (
	stx byte = 0x02
	etx byte = 0x03
	sep byte = '#'
)

// MaxFrameSize bounds how many unconsumed bytes a caller should accumulate
// while waiting for an ETX. A peer that sends STX and then never sends ETX
// must not be allowed to grow that buffer forever; spec.md §7 requires the
// connection be dropped once this bound is crossed without yielding a frame.
const MaxFrameSize = 64 * 1024

// Encode joins fields with '#' and wraps the result in STX/ETX/LRC framing.
func Encode(fields []string) []byte {
	payload := joinFields(fields)

	out := make([]byte, 0, len(payload)+3)
	out = append(out, stx)
	out = append(out, payload...)
	out = append(out, etx)
	out = append(out, lrc(out))
	return out
}

func joinFields(fields []string) []byte {
	n := 0
	for i, f := range fields {
		n += len(f)
		if i > 0 {
			n++
		}
	}
	buf := make([]byte, 0, n)
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, sep)
		}
		buf = append(buf, f...)
	}
	return buf
}

// lrc computes the XOR of every byte in framed[0:stx..etx], i.e. the whole
// slice passed in (caller passes everything built so far, STX..ETX inclusive).
func lrc(framed []byte) byte {
	var x byte
	for _, b := range framed {
		x ^= b
	}
	return x
}

// Decode scans buf for the first complete, valid frame. It returns the
// decoded fields, the number of bytes consumed from the front of buf, and
// whether a frame was found. When ok is false, consumed says how many bytes
// to drop in order to resync: all of buf when it holds no STX, the bytes
// before the first STX, or 1 (the STX itself) on an LRC mismatch or invalid
// UTF-8. Only an incomplete frame (no ETX yet, or no LRC byte yet) reports
// consumed as 0, and the caller must then retain buf and wait for more bytes.
func Decode(buf []byte) (fields []string, consumed int, ok bool) {
	start := -1
	for i, b := range buf {
		if b == stx {
			start = i
			break
		}
	}
	if start < 0 {
		// No STX at all — nothing usable in this buffer; drop it all so it
		// cannot grow without bound while never yielding a frame.
		return nil, len(buf), false
	}
	if start > 0 {
		// Leading garbage before STX: let the caller resync by dropping it.
		return nil, start, false
	}

	// Find ETX at offset >= 1 (a frame needs at least an empty payload).
	etxPos := -1
	for i := 1; i < len(buf); i++ {
		if buf[i] == etx {
			etxPos = i
			break
		}
	}
	if etxPos < 0 {
		return nil, 0, false // incomplete — wait for more bytes
	}
	if len(buf) < etxPos+2 {
		return nil, 0, false // ETX seen but LRC byte not yet arrived
	}

	framed := buf[:etxPos+1] // STX..ETX inclusive
	gotLRC := buf[etxPos+1]
	wantLRC := lrc(framed)
	if gotLRC != wantLRC {
		// Corrupt frame. Resync past this STX so the dispatcher can look for
		// the next one instead of spinning on the same bad bytes forever.
		return nil, 1, false
	}

	payload := buf[1:etxPos]
	if !utf8.Valid(payload) {
		return nil, 1, false
	}

	return splitFields(string(payload)), etxPos + 2, true
}

func splitFields(payload string) []string {
	if payload == "" {
		return []string{""}
	}
	fields := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(payload); i++ {
		if payload[i] == sep {
			fields = append(fields, payload[start:i])
			start = i + 1
		}
	}
	fields = append(fields, payload[start:])
	return fields
}

// DecodeAll drains every complete frame currently available in buf and
// returns them in order, plus the number of bytes consumed overall. The
// caller should retain buf[consumed:] for the next read.
func DecodeAll(buf []byte) (frames [][]string, consumed int) {
	for {
		fields, n, ok := Decode(buf[consumed:])
		if ok {
			frames = append(frames, fields)
			consumed += n
			continue
		}
		if n > 0 {
			// Resync: drop garbage/corrupt bytes and keep scanning.
			consumed += n
			continue
		}
		return frames, consumed
	}
}
