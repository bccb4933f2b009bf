package ics

import (
	"sync"

	"github.com/samber/mo"
)

// TimezoneService is a registry of timezones keyed by TZID.  A fresh
// registry knows only the UTC aliases "UTC", "GMT" and "Z".
type TimezoneService struct {
	mu    sync.RWMutex
	zones map[string]*Timezone
}

// DefaultTimezoneService is consulted whenever a TZID parameter has to be
// resolved while decorating values.
var DefaultTimezoneService = NewTimezoneService()

func NewTimezoneService() *TimezoneService {
	s := &TimezoneService{}
	s.Reset()
	return s
}

// Reset drops every registration except the built-in UTC aliases.
func (s *TimezoneService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = map[string]*Timezone{
		"Z":   utcTimezone,
		"UTC": utcTimezone,
		"GMT": utcTimezone,
	}
}

func (s *TimezoneService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}

func (s *TimezoneService) Has(tzid string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.zones[tzid]
	return ok
}

// Get returns the zone registered under tzid or nil.
func (s *TimezoneService) Get(tzid string) *Timezone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zones[tzid]
}

// Lookup is Get returning an option.
func (s *TimezoneService) Lookup(tzid string) mo.Option[*Timezone] {
	if tz := s.Get(tzid); tz != nil {
		return mo.Some(tz)
	}
	return mo.None[*Timezone]()
}

// Register adds tz under its own TZID.
func (s *TimezoneService) Register(tz *Timezone) {
	s.RegisterAs(tz.Tzid, tz)
}

// RegisterAs adds tz under an alias.
func (s *TimezoneService) RegisterAs(name string, tz *Timezone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[name] = tz
}

// RegisterComponent builds a Timezone from a VTIMEZONE and registers it.
func (s *TimezoneService) RegisterComponent(c *Component) (*Timezone, error) {
	tz, err := NewTimezone(c)
	if err != nil {
		return nil, err
	}
	s.Register(tz)
	return tz, nil
}

// Remove unregisters tzid and returns the zone that was removed, if any.
func (s *TimezoneService) Remove(tzid string) *Timezone {
	s.mu.Lock()
	defer s.mu.Unlock()
	tz := s.zones[tzid]
	delete(s.zones, tzid)
	return tz
}
