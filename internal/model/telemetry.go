package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimestampLayout keeps all nine fraction digits, so an event stamped on a
// whole second still carries sub-millisecond precision on the wire.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type TelemetryType string

const (
	TelemetryTypeTemperature TelemetryType = "TEMPERATURE"
	TelemetryTypePressure    TelemetryType = "PRESSURE"
	TelemetryTypeVelocity    TelemetryType = "VELOCITY"
)

func (t TelemetryType) Valid() bool {
	switch t {
	case TelemetryTypeTemperature, TelemetryTypePressure, TelemetryTypeVelocity:
		return true
	}
	return false
}

type Subsystem string

const (
	SubsystemEngine   Subsystem = "ENGINE"
	SubsystemFuelTank Subsystem = "FUEL_TANK"
	SubsystemStage1   Subsystem = "STAGE1"
	SubsystemStage2   Subsystem = "STAGE2"
)

func (s Subsystem) Valid() bool {
	switch s {
	case SubsystemEngine, SubsystemFuelTank, SubsystemStage1, SubsystemStage2:
		return true
	}
	return false
}

type Status string

const (
	StatusOK       Status = "OK"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
	StatusOffline  Status = "OFFLINE"
)

// Bitmask returns the legacy wire encoding of the status.
func (s Status) Bitmask() uint32 {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 4
	}
}

type SensorHeader struct {
	SensorID      string    `json:"sensor_id"`
	Subsystem     Subsystem `json:"subsystem"`
	Unit          string    `json:"unit"`
	Status        Status    `json:"status"`
	StatusBitmask uint32    `json:"status_bitmask"`
	Sequence      uint32    `json:"sequence_number"`
}

type TemperatureData struct {
	SensorHeader
	Temperature float64 `json:"temperature"`
}

type PressureData struct {
	SensorHeader
	Pressure float64 `json:"pressure"`
}

type VelocityData struct {
	SensorHeader
	VelocityX float64 `json:"velocity_x"`
	VelocityY float64 `json:"velocity_y"`
	VelocityZ float64 `json:"velocity_z"`
}

// TelemetryEvent is the response frame of the telemetry stream. Exactly one
// payload is populated and it matches Type.
type TelemetryEvent struct {
	Timestamp   time.Time        `json:"timestamp"`
	Type        TelemetryType    `json:"type"`
	Temperature *TemperatureData `json:"temperature,omitempty"`
	Pressure    *PressureData    `json:"pressure,omitempty"`
	Velocity    *VelocityData    `json:"velocity,omitempty"`
}

func (e TelemetryEvent) MarshalJSON() ([]byte, error) {
	type event TelemetryEvent
	return json.Marshal(struct {
		Timestamp string `json:"timestamp"`
		event
	}{
		Timestamp: e.Timestamp.UTC().Format(TimestampLayout),
		event:     event(e),
	})
}

// TelemetryRequest opens a telemetry stream. All fields are optional.
type TelemetryRequest struct {
	ClientID string `json:"client_id,omitempty"`
}

var ErrInvalidEvent = errors.New("invalid telemetry event")

func (e TelemetryEvent) header() *SensorHeader {
	switch e.Type {
	case TelemetryTypeTemperature:
		if e.Temperature != nil {
			return &e.Temperature.SensorHeader
		}
	case TelemetryTypePressure:
		if e.Pressure != nil {
			return &e.Pressure.SensorHeader
		}
	case TelemetryTypeVelocity:
		if e.Velocity != nil {
			return &e.Velocity.SensorHeader
		}
	}
	return nil
}

func (e TelemetryEvent) SensorID() string {
	if h := e.header(); h != nil {
		return h.SensorID
	}
	return ""
}

func (e TelemetryEvent) Sequence() uint32 {
	if h := e.header(); h != nil {
		return h.Sequence
	}
	return 0
}

func (e TelemetryEvent) Status() Status {
	if h := e.header(); h != nil {
		return h.Status
	}
	return StatusOffline
}

// Values returns the payload readings: one value, or x/y/z for velocity.
func (e TelemetryEvent) Values() []float64 {
	switch {
	case e.Type == TelemetryTypeTemperature && e.Temperature != nil:
		return []float64{e.Temperature.Temperature}
	case e.Type == TelemetryTypePressure && e.Pressure != nil:
		return []float64{e.Pressure.Pressure}
	case e.Type == TelemetryTypeVelocity && e.Velocity != nil:
		return []float64{e.Velocity.VelocityX, e.Velocity.VelocityY, e.Velocity.VelocityZ}
	}
	return nil
}

func (e TelemetryEvent) Validate() error {
	populated := 0
	for _, set := range []bool{e.Temperature != nil, e.Pressure != nil, e.Velocity != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("%w: %d payloads populated", ErrInvalidEvent, populated)
	}
	if e.header() == nil {
		return fmt.Errorf("%w: payload does not match type %q", ErrInvalidEvent, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidEvent)
	}
	return nil
}
