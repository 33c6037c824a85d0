// Package transport carries SpaceWire packets over TCP using the SSDTP
// framing of SpaceWire-to-GigabitEther bridges.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│         RMAP packets           │
//	├────────────────────────────────┤
//	│   SSDTP framing (12B header)   │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Frame Format
//
// Every frame starts with a 12-byte header:
//
//	byte 0      flag (0x00 EOP, 0x01 EEP, 0x02 fragment, 0x30/0x31 time code)
//	byte 1      reserved (0x00)
//	bytes 2-11  payload size, big-endian
//
// Fragments accumulate until a frame with an EOP or EEP flag completes the
// packet. Time code frames are followed by two bytes (time code, reserved)
// instead of a sized payload.
//
// # Components
//
//   - Framer: frame encoding and packet reassembly
//   - Link: reconnectable client used by initiators
//   - Server: accepts links, used by simulated targets and tests
//   - TimeCodeGenerator: periodic time code emission
package transport
