package tlvframe

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/vx220/vxdash/telemetry"
)

// TLV is one raw tag-length-value triple.
type TLV struct {
	Tag   byte
	Value []byte
}

// EncodeTLVs builds a frame around the given TLVs in order.
func EncodeTLVs(version byte, tlvs []TLV) ([]byte, error) {
	body := []byte{version}
	for _, t := range tlvs {
		if len(t.Value) > 255 {
			return nil, errors.Errorf("tag %02x value is %d bytes", t.Tag, len(t.Value))
		}
		body = append(body, t.Tag, byte(len(t.Value)))
		body = append(body, t.Value...)
	}
	if len(body) > 255 {
		return nil, errors.Errorf("payload is %d bytes", len(body))
	}

	frame := make([]byte, 0, len(body)+overhead)
	frame = append(frame, StartSentinel, byte(len(body)))
	frame = append(frame, body...)
	frame = binary.BigEndian.AppendUint16(frame, CRC16(body))
	return append(frame, EndSentinel), nil
}

// Encode builds a frame carrying every set field of s.
func Encode(version byte, s telemetry.EngineSample) ([]byte, error) {
	var tlvs []TLV
	add16 := func(tag byte, v *uint16) {
		if v != nil {
			tlvs = append(tlvs, TLV{tag, binary.BigEndian.AppendUint16(nil, *v)})
		}
	}
	addI16 := func(tag byte, v *int16) {
		if v != nil {
			tlvs = append(tlvs, TLV{tag, binary.BigEndian.AppendUint16(nil, uint16(*v))})
		}
	}
	add8 := func(tag byte, v *uint8) {
		if v != nil {
			tlvs = append(tlvs, TLV{tag, []byte{*v}})
		}
	}

	add16(TagFuelLevel, s.FuelLevel)
	add16(TagOilPressure, s.OilPressure)
	add16(TagBoostPressure, s.BoostPressure)
	add16(TagRPM, s.RPM)
	add16(TagSpeed, s.Speed)
	if s.Status != nil {
		tlvs = append(tlvs, TLV{TagStatusFlags, []byte{s.Status.Byte()}})
	}
	addI16(TagSteeringAngle, s.SteeringAngle)
	add16(TagBrakePressure, s.BrakePressure)
	add8(TagThrottlePosition, s.ThrottlePosition)
	add8(TagGearPosition, s.GearPosition)
	for i := range s.TyrePressures {
		add16(TagTyrePressureBase+byte(i), s.TyrePressures[i])
	}
	for i := range s.TyreTemps {
		addI16(TagTyreTempBase+byte(i), s.TyreTemps[i])
	}
	return EncodeTLVs(version, tlvs)
}
