// Package discovery enumerates serial devices and resolves "no port given"
// into a single device: none is an error, one is selected, several must be
// disambiguated by the caller.
package discovery

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// ErrNoPortFound is returned when no candidate matches the instrument's
// filter.
var ErrNoPortFound = errors.New("no serial port found")

// AmbiguousPortError is returned when more than one candidate matches.
type AmbiguousPortError struct {
	Candidates []Candidate
}

func (e *AmbiguousPortError) Error() string {
	paths := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		paths[i] = c.Path
	}
	return fmt.Sprintf("multiple serial ports found, specify one of %s", strings.Join(paths, ", "))
}

// Candidate is a serial device that may host an instrument.
type Candidate struct {
	Path         string `json:"port_path"`
	Description  string `json:"description"`
	USB          bool   `json:"usb"`
	VendorID     string `json:"vendor_id,omitempty"`
	ProductID    string `json:"product_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
}

// Enumerator lists the serial devices present on the host.
type Enumerator interface {
	Enumerate() ([]Candidate, error)
}

// EnumeratorFunc adapts a function to the Enumerator interface.
type EnumeratorFunc func() ([]Candidate, error)

// Enumerate calls f().
func (f EnumeratorFunc) Enumerate() ([]Candidate, error) { return f() }

// SerialEnumerator lists ports through go.bug.st/serial/enumerator.
type SerialEnumerator struct{}

// Enumerate returns every port the OS reports, with USB metadata where
// available.
func (SerialEnumerator) Enumerate() ([]Candidate, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	candidates := make([]Candidate, 0, len(ports))
	for _, p := range ports {
		desc := p.Product
		if desc == "" {
			desc = FriendlyName(p.Name)
		}
		candidates = append(candidates, Candidate{
			Path:         p.Name,
			Description:  desc,
			USB:          p.IsUSB,
			VendorID:     p.VID,
			ProductID:    p.PID,
			SerialNumber: p.SerialNumber,
		})
	}
	return candidates, nil
}

// Filter selects the candidates an instrument family can live on.
type Filter func(Candidate) bool

// USBSerial matches USB-serial adapters, the way the balance is attached.
func USBSerial(c Candidate) bool {
	if c.USB {
		return true
	}
	base := filepath.Base(c.Path)
	return strings.HasPrefix(base, "ttyUSB") || strings.HasPrefix(base, "cu.usbserial")
}

// PathPrefix matches device paths beginning with prefix, e.g. "/dev/ttyA"
// for the probe's CDC-ACM device.
func PathPrefix(prefix string) Filter {
	return func(c Candidate) bool {
		return strings.HasPrefix(c.Path, prefix)
	}
}

// Discover enumerates ports and keeps those accepted by filter, sorted by
// path. A nil filter keeps every port.
func Discover(e Enumerator, filter Filter) ([]Candidate, error) {
	if e == nil {
		e = SerialEnumerator{}
	}
	all, err := e.Enumerate()
	if err != nil {
		return nil, err
	}

	var matched []Candidate
	for _, c := range all {
		if filter == nil || filter(c) {
			matched = append(matched, c)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Path < matched[j].Path })
	return matched, nil
}

// Resolve applies the selection policy: exactly one candidate is chosen,
// none is ErrNoPortFound, several is an AmbiguousPortError listing them all.
func Resolve(candidates []Candidate) (Candidate, error) {
	switch len(candidates) {
	case 0:
		return Candidate{}, ErrNoPortFound
	case 1:
		return candidates[0], nil
	}
	return Candidate{}, &AmbiguousPortError{Candidates: append([]Candidate(nil), candidates...)}
}

// FriendlyName generates a user-friendly name for a serial port path.
func FriendlyName(portPath string) string {
	deviceName := filepath.Base(portPath)

	switch {
	case strings.HasPrefix(deviceName, "ttyUSB"):
		return "USB Serial Adapter (" + deviceName + ")"
	case strings.HasPrefix(deviceName, "ttyACM"):
		return "USB CDC Device (" + deviceName + ")"
	case strings.HasPrefix(deviceName, "ttyAMA"), strings.HasPrefix(deviceName, "ttyS"):
		return "Hardware Serial Port (" + deviceName + ")"
	case strings.HasPrefix(deviceName, "cu.usbserial"), strings.HasPrefix(deviceName, "cu.usbmodem"):
		return "USB Serial Device (" + deviceName + ")"
	}
	return deviceName
}
