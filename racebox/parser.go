// Package racebox decodes the live-data notifications of a RaceBox Micro
// GPS/IMU beacon.
//
// Payloads carry no checksum; a packet is accepted on its four-byte preamble
// and minimum length alone.
package racebox

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
	"github.com/vx220/vxdash/telemetry"
)

// NamePrefix is the advertised name prefix of the beacon.
const NamePrefix = "RaceBox Micro"

// UART-style service and its notifying TX characteristic.
const (
	ServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	TXCharUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

const PacketLen = 80

// Preamble is the sync pair followed by the live-data class and message id.
var Preamble = [4]byte{0xB5, 0x62, 0xFF, 0x01}

var (
	ErrShortPayload = errors.New("payload too short")
	ErrPreamble     = errors.New("unexpected preamble")
)

const (
	offTimestamp    = 6
	offYear         = 10
	offMonth        = 12
	offDay          = 13
	offHour         = 14
	offMinute       = 15
	offSecond       = 16
	offValidity     = 17
	offFixStatus    = 20
	offFixFlags     = 21
	offSatellites   = 23
	offLongitude    = 24
	offLatitude     = 28
	offWGSAlt       = 32
	offMSLAlt       = 36
	offHorizAcc     = 40
	offVertAcc      = 44
	offSpeed        = 48
	offHeading      = 52
	offSpeedAcc     = 56
	offHeadingAcc   = 60
	offPDOP         = 64
	offGForce       = 68
	offRotationRate = 74

	validDateBit = 0x01
	validTimeBit = 0x02
	fixOKBit     = 0x01
)

// Scale factors from raw units.
const (
	degreeScale    = 1e7
	millimetres    = 1000.0
	headingScale   = 1e5
	pdopScale      = 100.0
	milliG         = 1000.0
	centiDegPerSec = 100.0
	kphPerMPS      = 3.6
)

// Parse decodes one notification payload.
func Parse(data []byte) (*telemetry.PositionSample, error) {
	if len(data) < PacketLen {
		return nil, errors.Wrapf(ErrShortPayload, "%d bytes", len(data))
	}
	if [4]byte(data[:4]) != Preamble {
		return nil, errors.Wrapf(ErrPreamble, "% X", data[:4])
	}

	le := binary.LittleEndian
	u32 := func(off int) uint32 { return le.Uint32(data[off:]) }
	i32 := func(off int) int32 { return int32(le.Uint32(data[off:])) }
	i16 := func(off int) int16 { return int16(le.Uint16(data[off:])) }

	valid := data[offValidity]
	return &telemetry.PositionSample{
		TimestampMs: u32(offTimestamp),

		Year:      le.Uint16(data[offYear:]),
		Month:     data[offMonth],
		Day:       data[offDay],
		Hour:      data[offHour],
		Minute:    data[offMinute],
		Second:    data[offSecond],
		ValidDate: valid&validDateBit != 0,
		ValidTime: valid&validTimeBit != 0,

		FixStatus:  data[offFixStatus],
		FixOK:      data[offFixFlags]&fixOKBit != 0,
		Satellites: data[offSatellites],

		Longitude:   float64(i32(offLongitude)) / degreeScale,
		Latitude:    float64(i32(offLatitude)) / degreeScale,
		WGSAltitude: float64(i32(offWGSAlt)) / millimetres,
		MSLAltitude: float64(i32(offMSLAlt)) / millimetres,

		HorizontalAccuracy: float64(u32(offHorizAcc)) / millimetres,
		VerticalAccuracy:   float64(u32(offVertAcc)) / millimetres,

		Speed:           float64(i32(offSpeed)) * kphPerMPS / millimetres,
		Heading:         float64(i32(offHeading)) / headingScale,
		SpeedAccuracy:   float64(u32(offSpeedAcc)) / millimetres,
		HeadingAccuracy: float64(u32(offHeadingAcc)) / headingScale,
		PDOP:            float64(le.Uint16(data[offPDOP:])) / pdopScale,

		GForceX: float64(i16(offGForce)) / milliG,
		GForceY: float64(i16(offGForce+2)) / milliG,
		GForceZ: float64(i16(offGForce+4)) / milliG,

		RotRateX: float64(i16(offRotationRate)) / centiDegPerSec,
		RotRateY: float64(i16(offRotationRate+2)) / centiDegPerSec,
		RotRateZ: float64(i16(offRotationRate+4)) / centiDegPerSec,
	}, nil
}

// Encode lays s out as a PacketLen byte payload, rounding each value to its
// raw unit. Used to synthesize traffic for tests and test mode.
func Encode(s telemetry.PositionSample) []byte {
	data := make([]byte, PacketLen)
	copy(data, Preamble[:])
	le := binary.LittleEndian
	le.PutUint16(data[4:], PacketLen)

	putI32 := func(off int, v float64) { le.PutUint32(data[off:], uint32(int32(math.Round(v)))) }
	putU32 := func(off int, v float64) { le.PutUint32(data[off:], uint32(math.Round(v))) }
	putI16 := func(off int, v float64) { le.PutUint16(data[off:], uint16(int16(math.Round(v)))) }

	le.PutUint32(data[offTimestamp:], s.TimestampMs)
	le.PutUint16(data[offYear:], s.Year)
	data[offMonth] = s.Month
	data[offDay] = s.Day
	data[offHour] = s.Hour
	data[offMinute] = s.Minute
	data[offSecond] = s.Second
	if s.ValidDate {
		data[offValidity] |= validDateBit
	}
	if s.ValidTime {
		data[offValidity] |= validTimeBit
	}
	data[offFixStatus] = s.FixStatus
	if s.FixOK {
		data[offFixFlags] |= fixOKBit
	}
	data[offSatellites] = s.Satellites

	putI32(offLongitude, s.Longitude*degreeScale)
	putI32(offLatitude, s.Latitude*degreeScale)
	putI32(offWGSAlt, s.WGSAltitude*millimetres)
	putI32(offMSLAlt, s.MSLAltitude*millimetres)
	putU32(offHorizAcc, s.HorizontalAccuracy*millimetres)
	putU32(offVertAcc, s.VerticalAccuracy*millimetres)
	putI32(offSpeed, s.Speed*millimetres/kphPerMPS)
	putI32(offHeading, s.Heading*headingScale)
	putU32(offSpeedAcc, s.SpeedAccuracy*millimetres)
	putU32(offHeadingAcc, s.HeadingAccuracy*headingScale)
	le.PutUint16(data[offPDOP:], uint16(math.Round(s.PDOP*pdopScale)))

	putI16(offGForce, s.GForceX*milliG)
	putI16(offGForce+2, s.GForceY*milliG)
	putI16(offGForce+4, s.GForceZ*milliG)
	putI16(offRotationRate, s.RotRateX*centiDegPerSec)
	putI16(offRotationRate+2, s.RotRateY*centiDegPerSec)
	putI16(offRotationRate+4, s.RotRateZ*centiDegPerSec)
	return data
}
