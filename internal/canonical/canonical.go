// Package canonical turns a tabular data snapshot into one deterministic
// byte sequence and computes its SHA-256 digest.
//
// The canonical form is what gets anchored on the ledger, so two rules are
// load-bearing:
//   - the header row (row 0) never contributes to the canonical bytes;
//   - every cell is length-prefixed, so distinct cell sequences can never
//     serialize to the same byte string (["ab","c"] vs ["a","bc"]).
package canonical

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// DigestSize is the fixed digest length in bytes. The on-ledger record
// format assumes this size; changing the hash algorithm requires a new
// record schema version, not a per-record flag.
const DigestSize = sha256.Size

// formatVersion is the first byte of every canonical serialization.
// Bump it if the framing ever changes.
const formatVersion = 0x01

// ErrInsufficientData is returned when a snapshot has no data rows.
// A snapshot must contain a header row plus at least one data row.
var ErrInsufficientData = errors.New("snapshot requires a header row and at least one data row")

// Canonicalize serializes a snapshot into its canonical byte form.
//
// rows is the raw snapshot in row-major order, header first. The header row
// is dropped before anything else; the data rows are padded to the widest
// data row (missing trailing cells count as empty strings, so a ragged API
// response serializes identically to one with explicit empty cells) and
// written as uvarint-length-prefixed cells, preceded by the row and column
// counts. The header never influences the bytes — not even its width.
func Canonicalize(rows [][]string) ([]byte, error) {
	if len(rows) < 2 {
		return nil, ErrInsufficientData
	}

	data := rows[1:]

	width := 0
	for _, row := range data {
		if len(row) > width {
			width = len(row)
		}
	}

	buf := []byte{formatVersion}
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	buf = binary.AppendUvarint(buf, uint64(width))
	for _, row := range data {
		for col := 0; col < width; col++ {
			var cell string
			if col < len(row) {
				cell = row[col]
			}
			buf = binary.AppendUvarint(buf, uint64(len(cell)))
			buf = append(buf, cell...)
		}
	}
	return buf, nil
}

// Digest returns the SHA-256 digest of the canonical bytes.
// Deterministic and side-effect free.
func Digest(canonical []byte) [DigestSize]byte {
	return sha256.Sum256(canonical)
}

// Snapshot canonicalizes rows and digests the result in one step.
func Snapshot(rows [][]string) ([DigestSize]byte, error) {
	b, err := Canonicalize(rows)
	if err != nil {
		return [DigestSize]byte{}, err
	}
	return Digest(b), nil
}
