// Package targets turns target and port specifications into a lazy stream of
// IP:port pairs for the scan loop.
//
// # Specifications
//
// Targets are single addresses ("10.0.0.1", "2001:db8::1") or CIDR prefixes
// ("10.0.0.0/24"). Ports use a comma separated list of single ports and
// inclusive ranges ("22,80,8000-8100"). Exclusions take the same form as
// targets and are skipped during iteration.
//
// # Iteration
//
// A Feeder walks every address of every target in order and yields each
// address once per port before moving on. Nothing is materialized up front,
// so a /8 costs the same memory as a single host; the scan loop pulls only
// as many pairs as it can admit.
package targets
