// Package persistence stores memory images of simulated RMAP targets.
//
// An image holds the content of every memory region of one target node so
// a simulated target can resume with the same memory after a restart.
// Images are CBOR files written atomically.
package persistence
