// Command rmap-packet encodes, decodes and checks RMAP packets offline.
//
// Usage:
//
//	rmap-packet decode 0xfe 01 4c 20 ...
//	rmap-packet encode read --la 0x30 --key 0x20 --addr 0x20000000 --len 4
//	rmap-packet encode write --la 0x30 --key 0x20 --addr 0x20000000 --data deadbeef
//	rmap-packet crc 01 02 03
//	rmap-packet status 0x0a
package main

import (
	"os"

	"github.com/rmap-protocol/rmap-go/cmd/rmap-packet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
