// Package engine correlates RMAP commands with their asynchronous replies.
//
// An Engine owns one Transport. Submit assigns each command a transaction
// ID that no pending transaction uses, records it in the pending table and
// sends it. A single receive goroutine decodes incoming packets and hands
// each reply to the transaction with the same ID. A sweeper goroutine
// expires transactions whose deadline passed.
//
// # Transaction States
//
//	PENDING --reply--> FULFILLED
//	   |----deadline--> TIMED_OUT
//	   `----stop/link-> ABORTED
//
// Terminal states are final. Whichever of reply or deadline happens first
// wins; a reply arriving after its transaction timed out is dropped and
// counted as unexpected.
//
// # Transport Failure
//
// When Receive fails the engine aborts every pending transaction with an
// error wrapping ErrTransport, closes the transport and reports the failure
// through Config.OnDisconnect. Submit then fails with ErrNotRunning until
// Start is called again.
package engine
