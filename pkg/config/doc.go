// Package config loads RMAP initiator and target configuration files.
//
// Files are YAML (.yaml, .yml), TOML (.toml) or XML (.xml), chosen by
// extension. XML files carry RMAPTargetNode elements only and leave the
// initiator and transport settings at their defaults. All integer fields
// accept decimal numbers or strings with a 0x prefix, and path addresses
// accept a list of numbers or a space separated string:
//
//	initiator:
//	  logical_address: 0xFE
//	  timeout: 1s
//	transport:
//	  address: localhost:10030
//	targets:
//	  - id: SampleRMAPTargetNode
//	    logical_address: 0xFE
//	    target_path: "0x03 0x05"
//	    reply_path: [7]
//	    key: 0x20
//	    memory:
//	      - id: SampleRegister
//	        address: "0x20000000"
//	        size: 4
//	        access: read-write
//
// Any malformed or inconsistent file fails with a *LoadError before any
// protocol activity starts.
package config
