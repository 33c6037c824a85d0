// Package monitor serves an HTTP view of a running initiator.
//
// Routes:
//
//	GET /stats                      engine counters
//	GET /targets                    configured target nodes
//	GET /targets/{target}           one target node
//	GET /targets/{target}/{memory}  read a memory object
//	PUT /targets/{target}/{memory}  write a memory object (hex body)
//	GET /history?limit=N            completed transactions, newest first
//
// History keeps completed transactions in SQLite. It implements
// log.Logger and is attached to the engine's protocol logger.
package monitor
