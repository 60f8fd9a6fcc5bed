package vxdash

import (
	"context"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/racebox"
	"github.com/vx220/vxdash/telemetry"
	"github.com/vx220/vxdash/tlvframe"
)

const testFrameVersion = 1

// runTestMode feeds oscillating values through the real decoders: engine
// samples are encoded into serial frames and pushed byte by byte through the
// serial framer, positions are encoded into beacon payloads.
func (d *Dash) runTestMode(ctx context.Context) {
	engine := newSerialLink(d.cfg.Serial, d.store)
	position := &bleLink{cfg: d.cfg.BLE, store: d.store}

	go tick(ctx, 50*time.Millisecond, func(t float64) {
		frame, err := tlvframe.Encode(testFrameVersion, mockEngine(t))
		if err != nil {
			log.WithField("err", err).Warn("unable to encode test frame")
			return
		}
		for _, b := range frame {
			engine.feed(b)
		}
	})

	go tick(ctx, 40*time.Millisecond, func(t float64) {
		position.handleNotification(racebox.Encode(mockPosition(t)))
	})
}

// tick calls fn every period with a phase that advances 0.05 per call.
func tick(ctx context.Context, period time.Duration, fn func(t float64)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	var t float64
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		fn(t)
		t += 0.05
	}
}

func ptr[T any](v T) *T {
	return &v
}

func mockEngine(t float64) telemetry.EngineSample {
	speed := 80 + math.Sin(t*0.2)*40
	return telemetry.EngineSample{
		FuelLevel:     ptr(uint16(3000 + math.Sin(t*0.1)*500)),
		OilPressure:   ptr(uint16(2000 + math.Cos(t*0.2)*200)),
		BoostPressure: ptr(uint16(1500 + math.Sin(t*0.3)*300)),
		RPM:           ptr(uint16(2000 + math.Sin(t*1.5)*1500)),
		Speed:         ptr(uint16(speed)),
		Status: &telemetry.StatusFlags{
			LeftTurn: math.Sin(t*4) > 0,
			HighBeam: true,
		},
		SteeringAngle:    ptr(int16(math.Sin(t*0.5) * 300)),
		BrakePressure:    ptr(uint16(1000 + math.Cos(t*0.7)*500)),
		ThrottlePosition: ptr(uint8(50 + math.Sin(t*0.8)*40)),
		GearPosition:     ptr(uint8(3 + math.Sin(t*0.2)*2)),
		TyrePressures:    [4]*uint16{ptr(uint16(2200)), ptr(uint16(2200)), ptr(uint16(2100)), ptr(uint16(2100))},
		TyreTemps:        [4]*int16{ptr(int16(300)), ptr(int16(305)), ptr(int16(295)), ptr(int16(290))},
	}
}

func mockPosition(t float64) telemetry.PositionSample {
	jitter := func(r float64) float64 {
		return (rand.Float64()*2 - 1) * r
	}
	return telemetry.PositionSample{
		TimestampMs:        uint32(t * 1000),
		Year:               2024,
		Month:              6,
		Day:                1,
		Hour:               12,
		ValidDate:          true,
		ValidTime:          true,
		FixStatus:          3,
		FixOK:              true,
		Satellites:         12,
		Latitude:           48.123456,
		Longitude:          11.654321,
		WGSAltitude:        500,
		MSLAltitude:        495,
		HorizontalAccuracy: 1,
		VerticalAccuracy:   1.5,
		Speed:              80 + math.Sin(t*0.2)*40,
		Heading:            math.Mod(t*10, 360),
		SpeedAccuracy:      0.2,
		HeadingAccuracy:    0.5,
		PDOP:               1.2,
		GForceX:            math.Sin(t)*1.2 + jitter(0.05),
		GForceY:            math.Cos(t*0.7) + jitter(0.05),
		GForceZ:            1 + math.Sin(t*0.3)*0.2 + jitter(0.02),
		RotRateX:           math.Sin(t*0.5) * 10,
		RotRateY:           math.Cos(t*0.3) * 10,
		RotRateZ:           math.Sin(t*0.2) * 10,
	}
}
