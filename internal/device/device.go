// Package device describes the head-mounted sensor: its UART service, the
// scripts that start and stop the accelerometer stream, and the transport
// used to reach it.
package device

import (
	"context"
	"fmt"
	"time"
)

// Nordic UART service exposed by the Espruino firmware
const (
	UARTService    = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	UARTWriteChar  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e"
	UARTNotifyChar = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// DefaultSampleInterval is the cadence the firmware prints readings at
const DefaultSampleInterval = 2 * time.Second

// StopCommand stops the stream, powers the accelerometer down and reboots
// the sensor so no interval survives into the next connection.
var StopCommand = []byte("clearInterval(interval); Puck.accelOff(); E.reboot();\n")

// StartCommand returns the script that makes the sensor print one JSON
// reading per interval on its UART. The script is one line because the
// firmware console evaluates input line by line.
func StartCommand(interval time.Duration) []byte {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return []byte(fmt.Sprintf(
		"var interval = setInterval(function() { Bluetooth.println(JSON.stringify(Puck.accel())); }, %d);\n",
		interval.Milliseconds(),
	))
}

// DataHandler receives notification payloads in delivery order
type DataHandler func(data []byte)

// Subscription identifies an active characteristic subscription
type Subscription struct {
	DeviceID  string
	ServiceID string
	CharID    string
	Topic     string
}

// Transport reaches a sensor over the wireless link
type Transport interface {
	Connect(ctx context.Context, deviceID string) error
	Write(ctx context.Context, deviceID, serviceID, charID string, data []byte) error
	Subscribe(ctx context.Context, deviceID, serviceID, charID string, onData DataHandler) (Subscription, error)
	Unsubscribe(ctx context.Context, sub Subscription) error
}
