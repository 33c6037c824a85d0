// Package wire implements the RMAP (Remote Memory Access Protocol) packet
// format defined in ECSS-E-ST-50-52C.
//
// RMAP packets travel over SpaceWire links. A packet is either a Command,
// sent by an initiator to a target, or a Reply, returned by the target.
// The two are distinguished only by the packet type bit (0x40) of the
// instruction byte.
//
// # Command Layout
//
//	[target path] TLA PID INS KEY [reply address] ILA TID(2) EXT ADDR(4) LEN(3) HCRC [DATA DCRC]
//
// The reply address is left-padded with zero bytes to a multiple of four.
// Its length in 4-byte units is carried in the two low bits of the
// instruction. Data is present for write and read-modify-write commands.
//
// # Reply Layout
//
//	[reply path] ILA PID INS STATUS TLA TID(2) HCRC                        (write)
//	[reply path] ILA PID INS STATUS TLA TID(2) RSV LEN(3) HCRC DATA DCRC   (read, RMW)
//
// # CRC
//
// Header and data CRCs use the RMAP CRC-8 (x^8+x^2+x+1, reflected, seed 0).
// The header CRC covers all header bytes from the first logical address up
// to the CRC byte. Path address bytes (values below 0x20) are never covered.
//
// # Codec
//
// Encode and Decode are pure functions. Encode fills the computed CRC
// fields and the reply address length bits into the packet it is given, so
// that Decode(Encode(p)) yields a packet equal to p.
package wire
