// Package initiator is the high-level RMAP API: read and write named
// memory objects of named target nodes.
//
// Each call resolves the target node and memory object in the registry,
// checks the access mode locally, builds a command, submits it to the
// transaction engine and blocks until the transaction ends:
//
//	init, _ := initiator.New(initiator.Config{Registry: reg, Engine: eng})
//	data, err := init.Read(ctx, "SampleRMAPTargetNode", "SampleRegister", time.Second)
//
// # Errors
//
//   - registry.ErrNotFound: unknown target node or memory object
//   - *AccessError: refused locally, nothing was sent
//   - *wire.StatusError: the target answered with a non-zero status
//   - engine.ErrTimeout: no reply before the timeout (after retries)
//   - engine.ErrTransport: the link failed or the engine stopped
package initiator
