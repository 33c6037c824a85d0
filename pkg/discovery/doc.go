// Package discovery implements mDNS/DNS-SD discovery of SpaceWire-to-TCP
// bridges and simulated RMAP targets.
//
// Targets advertise the _spacewire._tcp service. The instance name is the
// target node ID. TXT records carry:
//   - id: target node ID
//   - la: target logical address (decimal or 0x-prefixed hex)
//   - ver: discovery record version
//
// Initiators browse the service and dial the advertised host and port
// with a transport.Link.
package discovery
