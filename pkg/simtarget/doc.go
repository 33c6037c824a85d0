// Package simtarget implements a simulated RMAP target node.
//
// A Target owns zero-filled memory regions built from a registry node and
// answers RMAP commands the way a hardware target would: it checks the
// logical address, the command code, the key and the address range, and
// replies with the matching status. Targets serve packets on any packet
// link or on every connection of a transport.Server.
//
//	node, _ := reg.Target("SampleRMAPTargetNode")
//	tgt, _ := simtarget.New(simtarget.Config{Node: node})
//	srv, _ := tgt.Serve(ctx, transport.ServerConfig{Address: ":10030"})
//	defer srv.Stop()
package simtarget
