// Package checksum computes the 64-bit batch checksums recorded with every
// bronze audit entry.
//
// Scheme: each row is hashed with 64-bit murmur3 over its canonical cell
// encoding, and row hashes are combined by wrapping int64 summation. The
// combined value is therefore order-insensitive: re-extracting the same row
// set from a reordered worksheet produces the same checksum, which keeps the
// loader's idempotence observable from the audit log alone.
package checksum

import (
	"github.com/spaolacci/murmur3"

	"github.com/fleetlake/fleetlake/internal/relation"
)

// rowSep frames cells so adjacent values cannot collide across boundaries.
const rowSep = "\x1f"

// Row returns the 64-bit hash of a single row.
func Row(r relation.Row) int64 {
	h := murmur3.New64()
	for i, c := range r.Cells {
		if i > 0 {
			h.Write([]byte(rowSep))
		}
		h.Write([]byte(c.Canonical()))
	}
	return int64(h.Sum64())
}

// Rows returns the combined checksum of a row set.
func Rows(rows []relation.Row) int64 {
	var sum int64
	for _, r := range rows {
		sum += Row(r)
	}
	return sum
}
