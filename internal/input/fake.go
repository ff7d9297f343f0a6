package input

import (
	"context"
	"sync"
)

// FakeSource is an in-memory Source. Tests push events into it, and the
// "none" backend uses it as a source that never produces anything.
type FakeSource struct {
	mu      sync.Mutex
	devices []DeviceInfo
	events  chan Event
	done    chan struct{}
	once    sync.Once
}

// NewFakeSource creates a source with the given pre-existing devices.
func NewFakeSource(devices ...DeviceInfo) *FakeSource {
	return &FakeSource{
		devices: append([]DeviceInfo(nil), devices...),
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
	}
}

// Push queues an event. Connected events for unseen devices add them to
// Devices. Push blocks when 256 events are already queued.
func (f *FakeSource) Push(ev Event) {
	if ev.Kind == Connected {
		f.mu.Lock()
		if !f.known(ev.Device) {
			f.devices = append(f.devices, DeviceInfo{ID: ev.Device, Label: string(ev.Device)})
		}
		f.mu.Unlock()
	}
	select {
	case f.events <- ev:
	case <-f.done:
	}
}

// SetLabel changes the label reported for id.
func (f *FakeSource) SetLabel(id DeviceID, label string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.devices {
		if f.devices[i].ID == id {
			f.devices[i].Label = label
			return
		}
	}
	f.devices = append(f.devices, DeviceInfo{ID: id, Label: label})
}

func (f *FakeSource) known(id DeviceID) bool {
	for _, d := range f.devices {
		if d.ID == id {
			return true
		}
	}
	return false
}

// Devices returns the devices known to the source.
func (f *FakeSource) Devices() []DeviceInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...)
}

// Label returns the label of id, or the id itself when unknown.
func (f *FakeSource) Label(id DeviceID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.ID == id {
			return d.Label
		}
	}
	return string(id)
}

// NextEvent returns the next pushed event.
func (f *FakeSource) NextEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close unblocks NextEvent with ErrClosed.
func (f *FakeSource) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}
