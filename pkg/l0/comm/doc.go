// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the brain firmware and the host
// over a peer-to-peer serial link which may disappear and reappear.
//
// Each frame is
//
//	AA 55 1E <len> <endpoint_hi> <endpoint_lo> <payload...> C6
//
// where len counts the payload plus the two endpoint bytes. The trailing
// C6 is a constant marker, not a checksum: it only detects gross framing
// desync and can't catch payload corruption. It must stay constant for
// compatibility with the firmware.
//
// Bytes received outside of a frame are diagnostic text printed by the
// firmware and are forwarded to a sink.
//
// An AA byte always starts a new preamble match. Bytes of a partial
// preamble are not forwarded, so an AA in text is lost together with a
// following 55. Firmware console output shouldn't contain AA.
//
// Producer: brain firmware
// Consumer: host
