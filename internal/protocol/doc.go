// Package protocol owns the cell message contract.
//
// Ownership boundary:
// - frame: header layouts and stream framing
// - bitstream: fixed-width bit packing
// - coords: coordinate payloads sized by grid dimension
// - message encode/decode joining header and payload
//
// Checksum verification happens here, never in frame.
package protocol
