package forwarder

import (
	"github.com/vx220/vxdash/telemetry"
)

type Header struct {
	Type uint8
}

const (
	TypeTelemetry = 1
	TypeTiming    = 2
)

// Bits of Telemetry.Present; an engine field is only meaningful when its bit
// is set.
const (
	PresentFuelLevel = 1 << iota
	PresentOilPressure
	PresentBoostPressure
	PresentRPM
	PresentSpeed
	PresentStatus
	PresentSteeringAngle
	PresentBrakePressure
	PresentThrottlePosition
	PresentGearPosition
	PresentTyrePressures
	PresentTyreTemps
	PresentPosition
)

// Bits of Telemetry.Errors.
const (
	ErrorEngine = 1 << iota
	ErrorPosition
)

// Telemetry is the fixed-size little-endian datagram body sent after Header.
type Telemetry struct {
	Present uint32

	FuelLevel        uint16
	OilPressure      uint16
	BoostPressure    uint16
	RPM              uint16
	Speed            uint16
	Status           uint8
	SteeringAngle    int16
	BrakePressure    uint16
	ThrottlePosition uint8
	GearPosition     uint8
	TyrePressures    [4]uint16
	TyreTemps        [4]int16

	Latitude   float64
	Longitude  float64
	Altitude   float32
	Track      float32
	GPSSpeed   float32
	GForceX    float32
	GForceY    float32
	GForceZ    float32
	Satellites uint8

	DriveMode   uint8
	ColorScheme uint8
	Errors      uint8
}

// FromSnapshot flattens s. Tyre arrays count as present when any corner is
// set; missing corners are sent as zero.
func FromSnapshot(s *telemetry.Snapshot) Telemetry {
	t := Telemetry{
		DriveMode:   uint8(s.DriveMode),
		ColorScheme: uint8(s.ColorScheme),
	}
	e := s.Engine
	set16 := func(bit uint32, dst *uint16, v *uint16) {
		if v != nil {
			*dst = *v
			t.Present |= bit
		}
	}
	set8 := func(bit uint32, dst *uint8, v *uint8) {
		if v != nil {
			*dst = *v
			t.Present |= bit
		}
	}
	set16(PresentFuelLevel, &t.FuelLevel, e.FuelLevel)
	set16(PresentOilPressure, &t.OilPressure, e.OilPressure)
	set16(PresentBoostPressure, &t.BoostPressure, e.BoostPressure)
	set16(PresentRPM, &t.RPM, e.RPM)
	set16(PresentSpeed, &t.Speed, e.Speed)
	set16(PresentBrakePressure, &t.BrakePressure, e.BrakePressure)
	set8(PresentThrottlePosition, &t.ThrottlePosition, e.ThrottlePosition)
	set8(PresentGearPosition, &t.GearPosition, e.GearPosition)
	if e.Status != nil {
		t.Status = e.Status.Byte()
		t.Present |= PresentStatus
	}
	if e.SteeringAngle != nil {
		t.SteeringAngle = *e.SteeringAngle
		t.Present |= PresentSteeringAngle
	}
	for i := range e.TyrePressures {
		if e.TyrePressures[i] != nil {
			t.TyrePressures[i] = *e.TyrePressures[i]
			t.Present |= PresentTyrePressures
		}
	}
	for i := range e.TyreTemps {
		if e.TyreTemps[i] != nil {
			t.TyreTemps[i] = *e.TyreTemps[i]
			t.Present |= PresentTyreTemps
		}
	}

	if p := s.Position; p != nil {
		t.Present |= PresentPosition
		t.Latitude = p.Latitude
		t.Longitude = p.Longitude
		t.Altitude = float32(p.MSLAltitude)
		t.Track = float32(p.Heading)
		t.GPSSpeed = float32(p.Speed)
		t.GForceX = float32(p.GForceX)
		t.GForceY = float32(p.GForceY)
		t.GForceZ = float32(p.GForceZ)
		t.Satellites = p.Satellites
	}

	if s.EngineError != nil {
		t.Errors |= ErrorEngine
	}
	if s.PositionError != nil {
		t.Errors |= ErrorPosition
	}
	return t
}
