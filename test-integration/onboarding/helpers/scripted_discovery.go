// Package helpers provides fakes shared by the onboarding integration tests.
package helpers

import (
	"context"
	"strconv"
	"sync"

	"github.com/stacklok/hass-onboard/internal/discovery"
)

// ScriptedService is a discovery.Service that replays a fixed list of announcements
// on every browse and records how it was driven.
type ScriptedService struct {
	announcements []discovery.Event

	mu    sync.Mutex
	calls []string
	stop  chan struct{}
	wg    sync.WaitGroup
}

// NewScriptedService creates a service that delivers announcements in order
func NewScriptedService(announcements ...discovery.Event) *ScriptedService {
	return &ScriptedService{announcements: announcements}
}

// StartBrowse implements discovery.Service
func (s *ScriptedService) StartBrowse(ctx context.Context, events chan<- discovery.Event) error {
	s.mu.Lock()
	s.calls = append(s.calls, "StartBrowse")
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, ev := range s.announcements {
			select {
			case events <- ev:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// StopBrowse implements discovery.Service
func (s *ScriptedService) StopBrowse() {
	s.mu.Lock()
	s.calls = append(s.calls, "StopBrowse")
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// StartAdvertise implements discovery.Service
func (s *ScriptedService) StartAdvertise(context.Context) error {
	s.record("StartAdvertise")
	return nil
}

// StopAdvertise implements discovery.Service
func (s *ScriptedService) StopAdvertise() {
	s.record("StopAdvertise")
}

// Calls returns the service methods called so far, in order
func (s *ScriptedService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *ScriptedService) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

// Announcement builds a found event the way a Home Assistant server announces itself
func Announcement(name, baseURL, version string, port int) discovery.Event {
	return discovery.Event{
		Kind:      discovery.EventFound,
		Instance:  name,
		Host:      "homeassistant.local",
		Port:      port,
		Addresses: []string{"192.168.1.10"},
		Attributes: map[string]string{
			"location_name":         name,
			"base_url":              baseURL,
			"version":               version,
			"requires_api_password": strconv.FormatBool(false),
		},
	}
}

// BrokenAnnouncement builds a found event without the attributes of an instance
func BrokenAnnouncement(name string) discovery.Event {
	return discovery.Event{
		Kind:       discovery.EventFound,
		Instance:   name,
		Attributes: map[string]string{"version": "2024.10.1"},
	}
}
