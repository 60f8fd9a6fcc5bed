// Package tlvframe decodes the framed TLV stream sent by the engine
// microcontroller over its UART.
//
// Frame layout:
//
//	[0xAA][LEN][VER][TLV...][CRC16 BE][0x55]
//
// LEN counts VER plus all TLV bytes. The CRC is CRC16-CCITT (poly 0x1021,
// init 0x0000) over VER and the TLV bytes. Each TLV is [tag][len][value].
package tlvframe

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/vx220/vxdash/telemetry"
)

const (
	StartSentinel = 0xAA
	EndSentinel   = 0x55

	// start, length, version, crc(2), end
	overhead = 5
	// overhead plus one empty TLV header
	MinFrameLen = overhead + 1 + 2
	MaxFrameLen = overhead + 255
)

var (
	ErrFrameTooShort      = errors.New("frame too short")
	ErrNoStartSentinel    = errors.New("missing start sentinel")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrCRCMismatch        = errors.New("crc mismatch")
	ErrMissingEndSentinel = errors.New("missing end sentinel")
	ErrTLVOverrun         = errors.New("tlv overruns payload")
	ErrFieldLength        = errors.New("tlv value too short for field")
)

// Field tags.
const (
	TagFuelLevel        byte = 0x01
	TagOilPressure      byte = 0x02
	TagBoostPressure    byte = 0x03
	TagRPM              byte = 0x04
	TagSpeed            byte = 0x05
	TagStatusFlags      byte = 0x06
	TagSteeringAngle    byte = 0x07
	TagBrakePressure    byte = 0x08
	TagThrottlePosition byte = 0x09
	TagGearPosition     byte = 0x0A
	TagTyrePressureBase byte = 0x0B
	TagTyreTempBase     byte = 0x0F
)

// Frame is a validated frame.
type Frame struct {
	Version byte
	Sample  telemetry.EngineSample
}

// Decode validates a complete candidate frame, start and end sentinel
// included, and extracts its fields.
func Decode(frame []byte) (*Frame, error) {
	if len(frame) < MinFrameLen {
		return nil, errors.Wrapf(ErrFrameTooShort, "%d bytes", len(frame))
	}
	if frame[0] != StartSentinel {
		return nil, errors.Wrapf(ErrNoStartSentinel, "found %02x", frame[0])
	}
	declared := int(frame[1])
	if declared < 1 || declared+overhead != len(frame) {
		return nil, errors.Wrapf(ErrLengthMismatch, "declared %d, buffered %d", declared, len(frame)-overhead)
	}
	body := frame[2 : 2+declared]
	crcAt := 2 + declared
	want := binary.BigEndian.Uint16(frame[crcAt : crcAt+2])
	if got := CRC16(body); got != want {
		return nil, errors.Wrapf(ErrCRCMismatch, "computed %04x, sent %04x", got, want)
	}
	if frame[crcAt+2] != EndSentinel {
		return nil, errors.Wrapf(ErrMissingEndSentinel, "found %02x", frame[crcAt+2])
	}

	sample, err := decodeTLVs(body[1:])
	if err != nil {
		return nil, err
	}
	return &Frame{
		Version: body[0],
		Sample:  sample,
	}, nil
}

func decodeTLVs(region []byte) (telemetry.EngineSample, error) {
	var s telemetry.EngineSample
	for pos := 0; pos < len(region); {
		if pos+2 > len(region) {
			return telemetry.EngineSample{}, errors.Wrapf(ErrTLVOverrun, "header at %d", pos)
		}
		tag, n := region[pos], int(region[pos+1])
		pos += 2
		if pos+n > len(region) {
			return telemetry.EngineSample{}, errors.Wrapf(ErrTLVOverrun, "tag %02x wants %d bytes", tag, n)
		}
		if err := setField(&s, tag, region[pos:pos+n]); err != nil {
			return telemetry.EngineSample{}, err
		}
		pos += n
	}
	return s, nil
}

func setField(s *telemetry.EngineSample, tag byte, v []byte) error {
	width := fieldWidth(tag)
	if width == 0 {
		// unknown tag, skipped by its declared length
		return nil
	}
	if len(v) < width {
		return errors.Wrapf(ErrFieldLength, "tag %02x has %d bytes, needs %d", tag, len(v), width)
	}

	switch {
	case tag == TagFuelLevel:
		s.FuelLevel = u16(v)
	case tag == TagOilPressure:
		s.OilPressure = u16(v)
	case tag == TagBoostPressure:
		s.BoostPressure = u16(v)
	case tag == TagRPM:
		s.RPM = u16(v)
	case tag == TagSpeed:
		s.Speed = u16(v)
	case tag == TagStatusFlags:
		f := telemetry.StatusFlagsFromByte(v[0])
		s.Status = &f
	case tag == TagSteeringAngle:
		s.SteeringAngle = i16(v)
	case tag == TagBrakePressure:
		s.BrakePressure = u16(v)
	case tag == TagThrottlePosition:
		s.ThrottlePosition = u8(v)
	case tag == TagGearPosition:
		s.GearPosition = u8(v)
	case tag >= TagTyrePressureBase && tag < TagTyrePressureBase+4:
		s.TyrePressures[tag-TagTyrePressureBase] = u16(v)
	case tag >= TagTyreTempBase && tag < TagTyreTempBase+4:
		s.TyreTemps[tag-TagTyreTempBase] = i16(v)
	}
	return nil
}

// fieldWidth is the value width of a known tag, 0 for unknown tags.
func fieldWidth(tag byte) int {
	switch {
	case tag == TagStatusFlags, tag == TagThrottlePosition, tag == TagGearPosition:
		return 1
	case tag >= TagFuelLevel && tag < TagTyreTempBase+4:
		return 2
	}
	return 0
}

func u8(v []byte) *uint8 {
	x := v[0]
	return &x
}

func u16(v []byte) *uint16 {
	x := binary.BigEndian.Uint16(v)
	return &x
}

func i16(v []byte) *int16 {
	x := int16(binary.BigEndian.Uint16(v))
	return &x
}
