package transport

import (
	"go.bug.st/serial"
)

// SerialOpener opens real serial ports through go.bug.st/serial.
type SerialOpener struct{}

// Open opens the device at cfg.Path with the configured line settings. The
// read timeout is applied by Open in this package once the port is up.
func (SerialOpener) Open(cfg PortConfig) (SerialPorter, error) {
	mode, err := cfg.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(cfg.Path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
