// Package connection keeps an RMAP link up.
//
// Backoff produces growing, jittered delays. It spaces the initiator's
// retries after timeouts and the Manager's reconnection attempts.
//
// Manager tracks the link state and reconnects in the background after
// the transaction engine reports a transport failure:
//
//	var mgr *connection.Manager
//	eng := engine.New(engine.Config{
//		Transport:    link,
//		OnDisconnect: func(err error) { mgr.NotifyConnectionLost(err) },
//	})
//	mgr = connection.NewManager(connection.ManagerConfig{Connect: eng.Start})
//	err := mgr.Connect(ctx)
//
// # Reconnection Strategy
//
// Delays start at 1 second and double up to 60 seconds. Each delay gets
// up to 25% random jitter. A successful connect resets the sequence.
package connection
