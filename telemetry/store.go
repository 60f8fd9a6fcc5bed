package telemetry

import (
	"sync"
	"time"
)

// Store holds the single shared Snapshot. Every write replaces a whole
// sub-record under one lock, so readers never observe a partial update.
//
// The Try variants never block: when the lock is held elsewhere the update
// or read is dropped and false is returned. Ingestion uses them so a slow
// reader cannot stall a link; the renderer uses TrySnapshot so ingestion
// cannot stall a display pass.
type Store struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		snap: Snapshot{
			DriveMode:   DriveModeRoad,
			ColorScheme: ColorSchemeLight,
		},
		now: time.Now,
	}
}

// PublishEngine replaces the engine sample and clears the engine error.
func (s *Store) PublishEngine(sample EngineSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setEngine(sample)
}

// TryPublishEngine is PublishEngine without waiting for the lock.
func (s *Store) TryPublishEngine(sample EngineSample) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.setEngine(sample)
	return true
}

// TryRetainEngine re-stores a previously published sample without touching
// the engine error, so a retained value never hides a link failure.
func (s *Store) TryRetainEngine(sample EngineSample) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.snap.Engine = sample
	return true
}

func (s *Store) setEngine(sample EngineSample) {
	s.snap.Engine = sample
	s.snap.EngineError = nil
}

// PublishPosition replaces the position sample and clears the position error.
func (s *Store) PublishPosition(sample PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPosition(sample)
}

// TryPublishPosition is PublishPosition without waiting for the lock.
func (s *Store) TryPublishPosition(sample PositionSample) bool {
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	s.setPosition(sample)
	return true
}

func (s *Store) setPosition(sample PositionSample) {
	s.snap.Position = &sample
	s.snap.PositionError = nil
}

// SetFeedError records err against feed with the current time.
func (s *Store) SetFeedError(feed Feed, err error) {
	if err == nil {
		s.ClearFeedError(feed)
		return
	}
	fe := &FeedError{
		Feed:    feed,
		Message: err.Error(),
		At:      s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed == FeedPosition {
		s.snap.PositionError = fe
	} else {
		s.snap.EngineError = fe
	}
}

func (s *Store) ClearFeedError(feed Feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if feed == FeedPosition {
		s.snap.PositionError = nil
	} else {
		s.snap.EngineError = nil
	}
}

func (s *Store) DriveMode() DriveMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.DriveMode
}

func (s *Store) SetDriveMode(m DriveMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.DriveMode = m
}

func (s *Store) ColorScheme() ColorScheme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.ColorScheme
}

func (s *Store) SetColorScheme(c ColorScheme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ColorScheme = c
}

// Snapshot returns a copy of the current snapshot, waiting for the lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// TrySnapshot returns a copy of the current snapshot, or false if a writer
// holds the lock.
func (s *Store) TrySnapshot() (Snapshot, bool) {
	if !s.mu.TryLock() {
		return Snapshot{}, false
	}
	defer s.mu.Unlock()
	return s.snap, true
}
