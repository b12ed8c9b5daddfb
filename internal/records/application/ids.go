// Package application hosts the record use cases: validate the mutation,
// write the record, then hand the implied balance deltas to the ledger
// applier. The record write and the balance increments are deliberately not
// transactional; a failed increment is drift, not a failed mutation.
package application

import (
	"crypto/rand"
	"encoding/hex"
)

// newID returns a random 128-bit hex document id.
func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
