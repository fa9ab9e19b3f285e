// Package transport abstracts the byte-oriented bus device a module is
// reached through.
//
// The core protocol only needs ordered, reliable byte write and
// fixed-length byte read on an addressed endpoint; electrical concerns
// (signaling, clock stretching, arbitration) belong to the device driver
// below this interface. The production implementation talks to a Linux
// /dev/i2c-N character device; tests substitute a simulated module.
package transport
