package telemetry

// Status bits carried by the one-byte status tag.
const (
	StatusEngineFault  = 0x01
	StatusABS          = 0x02
	StatusAirbag       = 0x04
	StatusLeftTurn     = 0x08
	StatusRightTurn    = 0x10
	StatusHighBeam     = 0x20
	StatusParkingBrake = 0x40
	StatusReserved     = 0x80
)

// StatusFlags are the warning lamps and indicators reported by the engine
// microcontroller.
type StatusFlags struct {
	EngineFault  bool `json:"engine_fault"`
	ABS          bool `json:"abs"`
	Airbag       bool `json:"airbag"`
	LeftTurn     bool `json:"left_turn"`
	RightTurn    bool `json:"right_turn"`
	HighBeam     bool `json:"high_beam"`
	ParkingBrake bool `json:"parking_brake"`
	Reserved     bool `json:"reserved"`
}

func StatusFlagsFromByte(b byte) StatusFlags {
	return StatusFlags{
		EngineFault:  b&StatusEngineFault != 0,
		ABS:          b&StatusABS != 0,
		Airbag:       b&StatusAirbag != 0,
		LeftTurn:     b&StatusLeftTurn != 0,
		RightTurn:    b&StatusRightTurn != 0,
		HighBeam:     b&StatusHighBeam != 0,
		ParkingBrake: b&StatusParkingBrake != 0,
		Reserved:     b&StatusReserved != 0,
	}
}

func (f StatusFlags) Byte() byte {
	var b byte
	for _, bit := range []struct {
		set  bool
		mask byte
	}{
		{f.EngineFault, StatusEngineFault},
		{f.ABS, StatusABS},
		{f.Airbag, StatusAirbag},
		{f.LeftTurn, StatusLeftTurn},
		{f.RightTurn, StatusRightTurn},
		{f.HighBeam, StatusHighBeam},
		{f.ParkingBrake, StatusParkingBrake},
		{f.Reserved, StatusReserved},
	} {
		if bit.set {
			b |= bit.mask
		}
	}
	return b
}

// EngineSample is one decoded serial frame. A nil field means the tag was
// absent from that frame. Samples are never mutated once decoded, so copies
// may share the pointed-to values.
type EngineSample struct {
	FuelLevel        *uint16      `json:"fuel_level,omitempty"`
	OilPressure      *uint16      `json:"oil_pressure,omitempty"`
	BoostPressure    *uint16      `json:"boost_pressure,omitempty"`
	RPM              *uint16      `json:"rpm,omitempty"`
	Speed            *uint16      `json:"speed,omitempty"`
	Status           *StatusFlags `json:"status,omitempty"`
	SteeringAngle    *int16       `json:"steering_angle,omitempty"`
	BrakePressure    *uint16      `json:"brake_pressure,omitempty"`
	ThrottlePosition *uint8       `json:"throttle_position,omitempty"`
	GearPosition     *uint8       `json:"gear_position,omitempty"`
	TyrePressures    [4]*uint16   `json:"tyre_pressures"`
	TyreTemps        [4]*int16    `json:"tyre_temps"`
}

// IsEmpty reports whether no field of the sample is set.
func (s EngineSample) IsEmpty() bool {
	return s == EngineSample{}
}

// PositionSample is one decoded beacon notification.
type PositionSample struct {
	TimestampMs uint32 `json:"timestamp_ms"`

	Year      uint16 `json:"year"`
	Month     uint8  `json:"month"`
	Day       uint8  `json:"day"`
	Hour      uint8  `json:"hour"`
	Minute    uint8  `json:"minute"`
	Second    uint8  `json:"second"`
	ValidDate bool   `json:"valid_date"`
	ValidTime bool   `json:"valid_time"`

	FixStatus  uint8 `json:"fix_status"`
	FixOK      bool  `json:"fix_ok"`
	Satellites uint8 `json:"satellites"`

	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	WGSAltitude float64 `json:"wgs_altitude_m"`
	MSLAltitude float64 `json:"msl_altitude_m"`

	HorizontalAccuracy float64 `json:"horizontal_accuracy_m"`
	VerticalAccuracy   float64 `json:"vertical_accuracy_m"`

	Speed           float64 `json:"speed_kph"`
	SpeedAccuracy   float64 `json:"speed_accuracy"`
	Heading         float64 `json:"heading_deg"`
	HeadingAccuracy float64 `json:"heading_accuracy_deg"`
	PDOP            float64 `json:"pdop"`

	GForceX float64 `json:"g_force_x"`
	GForceY float64 `json:"g_force_y"`
	GForceZ float64 `json:"g_force_z"`

	RotRateX float64 `json:"rot_rate_x"`
	RotRateY float64 `json:"rot_rate_y"`
	RotRateZ float64 `json:"rot_rate_z"`
}
