package bridge

import (
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate is used when OpenSerial gets a non-positive rate.
const DefaultBaudRate = 115200

// serialReadTimeout bounds each Read so a blocked ReadMessage notices
// context cancellation.
const serialReadTimeout = 300 * time.Millisecond

// OpenSerial opens portName as a framed link to a reader front end.
func OpenSerial(portName string, baudRate int) (*StreamLink, error) {
	if portName == "" {
		return nil, errors.New("serial port is empty")
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", portName)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "set serial read timeout")
	}

	return NewStreamLink("serial:"+portName, port), nil
}

// SerialPorts lists the serial ports visible to the host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
