package telemetry

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Feed identifies one of the two ingestion links.
type Feed int

const (
	FeedEngine Feed = iota
	FeedPosition
)

func (f Feed) String() string {
	switch f {
	case FeedEngine:
		return "engine"
	case FeedPosition:
		return "position"
	}
	return "unknown"
}

// FeedError is the last transport error recorded for a feed.
type FeedError struct {
	Feed    Feed      `json:"-"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (e FeedError) Error() string {
	return e.Feed.String() + ": " + e.Message
}

type DriveMode int

const (
	DriveModeRoad DriveMode = iota
	DriveModeTrack
)

func (m DriveMode) String() string {
	if m == DriveModeTrack {
		return "Track"
	}
	return "Road"
}

func ParseDriveMode(s string) (DriveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "road":
		return DriveModeRoad, nil
	case "track":
		return DriveModeTrack, nil
	}
	return DriveModeRoad, errors.Errorf("unknown drive mode %q", s)
}

func (m DriveMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *DriveMode) UnmarshalText(text []byte) error {
	v, err := ParseDriveMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

type ColorScheme int

const (
	ColorSchemeLight ColorScheme = iota
	ColorSchemeDark
)

func (c ColorScheme) String() string {
	if c == ColorSchemeDark {
		return "Dark"
	}
	return "Light"
}

func ParseColorScheme(s string) (ColorScheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "light":
		return ColorSchemeLight, nil
	case "dark":
		return ColorSchemeDark, nil
	}
	return ColorSchemeLight, errors.Errorf("unknown color scheme %q", s)
}

func (c ColorScheme) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ColorScheme) UnmarshalText(text []byte) error {
	v, err := ParseColorScheme(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Snapshot is the aggregate handed to readers. Position and the feed errors
// are nil until first set; the values they point at are never mutated.
type Snapshot struct {
	Position      *PositionSample `json:"position,omitempty"`
	Engine        EngineSample    `json:"engine"`
	EngineError   *FeedError      `json:"engine_error,omitempty"`
	PositionError *FeedError      `json:"position_error,omitempty"`
	DriveMode     DriveMode       `json:"drive_mode"`
	ColorScheme   ColorScheme     `json:"color_scheme"`
}

// FeedError returns the error recorded for feed, or nil.
func (s Snapshot) FeedError(feed Feed) *FeedError {
	if feed == FeedPosition {
		return s.PositionError
	}
	return s.EngineError
}
