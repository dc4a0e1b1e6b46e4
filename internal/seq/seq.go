// Package seq generates lexicographically sortable identifiers for ledger
// entries. Within one process, ids are strictly monotonic even when generated
// in the same millisecond.
package seq

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewLedgerID returns a ULID suitable as a ledger entry id. Ids sort in
// generation order, which keeps ledger replay deterministic.
func NewLedgerID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
