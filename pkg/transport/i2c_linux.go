//go:build linux

package transport

import (
	"fmt"
	"io"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// i2cSlave is the I2C_SLAVE ioctl request: select the peer address for
// subsequent read/write calls on the bus file descriptor.
const i2cSlave = 0x0703

// Bus address scan bounds, inclusive. Addresses below 0x03 and above 0x77
// are reserved by the I2C specification.
const (
	scanFirstAddress uint16 = 0x03
	scanLastAddress  uint16 = 0x77
)

// LinuxI2C is a Transport over a Linux /dev/i2c-N character device, bound
// to a single peer address at construction.
type LinuxI2C struct {
	file    *os.File
	device  string
	address uint16
}

// NewLinuxI2C opens the bus device and binds it to the given peer address.
func NewLinuxI2C(device string, address uint16) (*LinuxI2C, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%s (addr %#04x): %w", device, address, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(address)); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s (addr %#04x): selecting peer: %w", device, address, err)
	}
	return &LinuxI2C{file: f, device: device, address: address}, nil
}

// Write sends the full buffer to the bound endpoint.
func (t *LinuxI2C) Write(data []byte) error {
	_, err := t.file.Write(data)
	return err
}

// Read fills buf exactly from the bound endpoint.
func (t *LinuxI2C) Read(buf []byte) error {
	_, err := io.ReadFull(t.file, buf)
	return err
}

// Address returns the bound peer address.
func (t *LinuxI2C) Address() uint16 {
	return t.address
}

// Close releases the bus file descriptor.
func (t *LinuxI2C) Close() error {
	return t.file.Close()
}

// Compile-time interface satisfaction check.
var _ Transport = (*LinuxI2C)(nil)

// ScanBus probes addresses 0x03 through 0x77 with single-byte reads and
// returns the ones that respond, skipping any in the blacklist. Not part of
// the protocol core; a module that NAKs single-byte reads will be missed.
func ScanBus(device string, blacklist []uint16) ([]uint16, error) {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", device, err)
	}
	defer f.Close()

	skip := make(map[uint16]bool, len(blacklist))
	for _, a := range blacklist {
		skip[a] = true
	}

	var addresses []uint16
	one := make([]byte, 1)
	for addr := scanFirstAddress; addr <= scanLastAddress; addr++ {
		if skip[addr] {
			continue
		}
		if err := unix.IoctlSetInt(int(f.Fd()), i2cSlave, int(addr)); err != nil {
			continue
		}
		if _, err := f.Read(one); err != nil {
			continue
		}
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses, nil
}
