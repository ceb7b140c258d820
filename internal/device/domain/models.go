package domain

import "time"

const DefaultBatteryLevel = 50.0

// DeviceStatus is the latest known state of one device, keyed by DeviceID.
type DeviceStatus struct {
	DeviceID     string    `json:"deviceId"`
	BatteryLevel float64   `json:"batteryLevel"`
	IsCharging   bool      `json:"isCharging"`
	LastUpdated  time.Time `json:"lastUpdated"`
}
