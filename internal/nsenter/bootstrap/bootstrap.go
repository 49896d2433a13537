// Package bootstrap joins namespaces before the Go runtime starts.
//
// The user and time namespaces can only be joined by a single threaded
// process. A handed-off image carries the request in JoinEnv as a comma
// separated list of "<fd>:<nstype>" entries and a constructor performs
// the joins while the process still has one thread: a first pass that
// ignores errors, then a second one over what is left where the first
// failure ends the request. Result reports the outcome to the resumed
// engine.
package bootstrap

// JoinEnv holds the pending join request of a handed-off image
const JoinEnv = "_YAWL_NSENTER_JOIN"

// MaxJoins bounds the entries of one request
const MaxJoins = 16

// Outcome is what the constructor did with a join request
type Outcome struct {
	Requested bool
	// Failed is the nstype of the join that failed; 0 when every join
	// succeeded or the request could not be parsed
	Failed int
	Err    error
}
