package master

import (
	"fmt"

	"github.com/supmcu-protocol/supmcu-go/pkg/module"
	"github.com/supmcu-protocol/supmcu-go/pkg/transport"
)

// OpenBus scans an I2C bus device for responsive addresses, skipping the
// blacklist, and opens a module handle per address found. On any open
// failure all handles opened so far are closed.
func OpenBus(device string, blacklist []uint16, opts ...module.Option) ([]*module.Module, error) {
	addresses, err := transport.ScanBus(device, blacklist)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", device, err)
	}
	return OpenAddresses(device, addresses, opts...)
}

// OpenAddresses opens a module handle per given bus address.
func OpenAddresses(device string, addresses []uint16, opts ...module.Option) ([]*module.Module, error) {
	modules := make([]*module.Module, 0, len(addresses))
	for _, addr := range addresses {
		t, err := transport.NewLinuxI2C(device, addr)
		if err != nil {
			for _, mod := range modules {
				mod.Close()
			}
			return nil, fmt.Errorf("opening %s address %#04x: %w", device, addr, err)
		}
		modules = append(modules, module.New(t, opts...))
	}
	return modules, nil
}
