package transport

// Transport is a byte-oriented connection to one addressed bus endpoint.
// Implementations are not required to be safe for concurrent use; each
// module handle owns its transport exclusively.
type Transport interface {
	// Write sends the full buffer to the endpoint.
	Write(data []byte) error

	// Read fills the buffer exactly with bytes from the endpoint.
	Read(buf []byte) error

	// Address returns the endpoint's bus address.
	Address() uint16

	// Close releases the underlying device.
	Close() error
}
