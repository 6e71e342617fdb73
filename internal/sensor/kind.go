package sensor

import (
	"fmt"
	"math"
	"time"

	"telemetry-sim/internal/model"
)

// Kind is what differs between sensor types: starting values, random-walk
// step and status classification. The tick loop itself is shared.
type Kind interface {
	Type() model.TelemetryType
	Initial() []float64
	Delta() float64
	Classify(values []float64) model.Status
	Event(st *State, status model.Status, at time.Time) model.TelemetryEvent
}

func KindFor(t model.TelemetryType) (Kind, error) {
	switch t {
	case model.TelemetryTypeTemperature:
		return temperatureKind{}, nil
	case model.TelemetryTypePressure:
		return pressureKind{}, nil
	case model.TelemetryTypeVelocity:
		return velocityKind{}, nil
	}
	return nil, fmt.Errorf("unsupported sensor kind %q", t)
}

// ClassifyTemperature maps degrees Celsius to a status.
// OK [-10,65], WARNING [-20,-10) and (65,75], CRITICAL [-30,-20) and (75,85].
func ClassifyTemperature(c float64) model.Status {
	switch {
	case c >= -10 && c <= 65:
		return model.StatusOK
	case (c >= -20 && c < -10) || (c > 65 && c <= 75):
		return model.StatusWarning
	case (c >= -30 && c < -20) || (c > 75 && c <= 85):
		return model.StatusCritical
	default:
		return model.StatusOffline
	}
}

// ClassifyPressure maps bar to a status.
// OK [180,220], WARNING [140,180) and (220,260], CRITICAL [100,140) and (260,300].
func ClassifyPressure(bar float64) model.Status {
	switch {
	case bar >= 180 && bar <= 220:
		return model.StatusOK
	case (bar >= 140 && bar < 180) || (bar > 220 && bar <= 260):
		return model.StatusWarning
	case (bar >= 100 && bar < 140) || (bar > 260 && bar <= 300):
		return model.StatusCritical
	default:
		return model.StatusOffline
	}
}

// ClassifyVelocity classifies the magnitude of a 3-axis velocity in m/s.
func ClassifyVelocity(x, y, z float64) model.Status {
	mag := math.Sqrt(x*x + y*y + z*z)
	switch {
	case mag <= 12000:
		return model.StatusOK
	case mag <= 14000:
		return model.StatusWarning
	case mag <= 15000:
		return model.StatusCritical
	default:
		return model.StatusOffline
	}
}

func header(st *State, status model.Status) model.SensorHeader {
	return model.SensorHeader{
		SensorID:      st.SensorID,
		Subsystem:     st.Subsystem,
		Unit:          st.Unit,
		Status:        status,
		StatusBitmask: status.Bitmask(),
		Sequence:      st.Sequence,
	}
}

type temperatureKind struct{}

func (temperatureKind) Type() model.TelemetryType { return model.TelemetryTypeTemperature }
func (temperatureKind) Initial() []float64        { return []float64{30.0} }
func (temperatureKind) Delta() float64            { return 10.0 }

func (temperatureKind) Classify(values []float64) model.Status {
	if len(values) != 1 {
		return model.StatusOffline
	}
	return ClassifyTemperature(values[0])
}

func (temperatureKind) Event(st *State, status model.Status, at time.Time) model.TelemetryEvent {
	return model.TelemetryEvent{
		Timestamp:   at,
		Type:        model.TelemetryTypeTemperature,
		Temperature: &model.TemperatureData{SensorHeader: header(st, status), Temperature: st.Values[0]},
	}
}

type pressureKind struct{}

func (pressureKind) Type() model.TelemetryType { return model.TelemetryTypePressure }
func (pressureKind) Initial() []float64        { return []float64{200.0} }
func (pressureKind) Delta() float64            { return 5.0 }

func (pressureKind) Classify(values []float64) model.Status {
	if len(values) != 1 {
		return model.StatusOffline
	}
	return ClassifyPressure(values[0])
}

func (pressureKind) Event(st *State, status model.Status, at time.Time) model.TelemetryEvent {
	return model.TelemetryEvent{
		Timestamp: at,
		Type:      model.TelemetryTypePressure,
		Pressure:  &model.PressureData{SensorHeader: header(st, status), Pressure: st.Values[0]},
	}
}

type velocityKind struct{}

func (velocityKind) Type() model.TelemetryType { return model.TelemetryTypeVelocity }
func (velocityKind) Initial() []float64        { return []float64{8000.0, 8000.0, 8000.0} }
func (velocityKind) Delta() float64            { return 5.0 }

func (velocityKind) Classify(values []float64) model.Status {
	if len(values) != 3 {
		return model.StatusOffline
	}
	return ClassifyVelocity(values[0], values[1], values[2])
}

func (velocityKind) Event(st *State, status model.Status, at time.Time) model.TelemetryEvent {
	return model.TelemetryEvent{
		Timestamp: at,
		Type:      model.TelemetryTypeVelocity,
		Velocity: &model.VelocityData{
			SensorHeader: header(st, status),
			VelocityX:    st.Values[0],
			VelocityY:    st.Values[1],
			VelocityZ:    st.Values[2],
		},
	}
}
