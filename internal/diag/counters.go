// Package diag holds diagnostic counters scoped to one database instance,
// rather than as process globals, so that opening more than one database
// in the same process keeps independent bookkeeping for each.
package diag

// Counters tracks node-handle lifecycle bookkeeping and engine activity.
// loads + creates == frees is the mechanical proof of correct resource
// discipline and is asserted at Close.
type Counters struct {
	Creates     uint64
	Loads       uint64
	Frees       uint64
	KeyInserts  uint64
	KeyUpdates  uint64
	Splits      uint64
	KeyCompares uint64
}

// Balanced reports whether every acquired node handle has been released,
// the invariant required at database Close.
func (c *Counters) Balanced() bool {
	return c.Loads+c.Creates == c.Frees
}
