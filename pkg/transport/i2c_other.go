//go:build !linux

package transport

import (
	"errors"
	"runtime"
)

// ErrUnsupportedPlatform indicates the I2C device driver is only available
// on Linux.
var ErrUnsupportedPlatform = errors.New("i2c bus access requires linux, running on " + runtime.GOOS)

// LinuxI2C is unavailable off Linux; the stub keeps cross-platform builds
// of the CLI and tests working.
type LinuxI2C struct{}

// NewLinuxI2C always fails off Linux.
func NewLinuxI2C(device string, address uint16) (*LinuxI2C, error) {
	return nil, ErrUnsupportedPlatform
}

func (t *LinuxI2C) Write(data []byte) error { return ErrUnsupportedPlatform }
func (t *LinuxI2C) Read(buf []byte) error   { return ErrUnsupportedPlatform }
func (t *LinuxI2C) Address() uint16         { return 0 }
func (t *LinuxI2C) Close() error            { return nil }

// Compile-time interface satisfaction check.
var _ Transport = (*LinuxI2C)(nil)

// ScanBus always fails off Linux.
func ScanBus(device string, blacklist []uint16) ([]uint16, error) {
	return nil, ErrUnsupportedPlatform
}
