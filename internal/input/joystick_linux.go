//go:build linux

package input

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// Joystick API ioctl requests (linux/joystick.h).
var (
	jsIOCGAxes    = jsIOR(0x11, 1)
	jsIOCGButtons = jsIOR(0x12, 1)
	jsIOCGName    = jsIOR(0x13, nameLen)
	jsIOCGAxMap   = jsIOR(0x32, absCount)
	jsIOCGBtnMap  = jsIOR(0x34, btnMapCount*2)
)

const (
	nameLen = 128

	// openAttempts and openRetryDelay cover the window after hot-plug where
	// udev has not yet applied the node's permissions.
	openAttempts   = 5
	openRetryDelay = 200 * time.Millisecond
)

func jsIOR(nr, size uintptr) uintptr {
	const iocRead = 2
	return iocRead<<30 | size<<16 | uintptr('j')<<8 | nr
}

// Logger defines the logging interface used by the joystick source.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

type joystick struct {
	id    DeviceID
	label string
	file  *os.File
	maps  joystickMaps
}

// JoystickSource reads gamepads through the Linux joystick API
// (/dev/input/js*). Devices plugged in after Open are announced with a
// Connected event; unplugged devices produce Disconnected.
type JoystickSource struct {
	dir     string
	logger  Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	open    map[DeviceID]*joystick
	labels  map[DeviceID]string
	order   []DeviceID
	events  chan Event
	done    chan struct{}
	closing sync.Once
	wg      sync.WaitGroup
}

// OpenJoystick opens every joystick node in dir and starts watching dir for
// hot-plug.
//
// Parameters:
//   - dir: Device directory, normally /dev/input
//   - logger: Logger for device lifecycle, nil for none
//
// Returns:
//   - *JoystickSource: Running source
//   - error: If the directory cannot be watched or listed
func OpenJoystick(dir string, logger Logger) (*JoystickSource, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating device watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	s := &JoystickSource{
		dir:     dir,
		logger:  logger,
		watcher: watcher,
		open:    make(map[DeviceID]*joystick),
		labels:  make(map[DeviceID]string),
		events:  make(chan Event, 1024),
		done:    make(chan struct{}),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !isJoystickNode(entry.Name()) {
			continue
		}
		if _, err := s.attach(filepath.Join(dir, entry.Name())); err != nil {
			logger.Warn("skipping joystick", "path", entry.Name(), "error", err)
		}
	}

	s.wg.Add(1)
	go s.watch()

	return s, nil
}

// Devices returns the currently open devices in discovery order.
func (s *JoystickSource) Devices() []DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeviceInfo, 0, len(s.open))
	for _, id := range s.order {
		if _, ok := s.open[id]; ok {
			out = append(out, DeviceInfo{ID: id, Label: s.labels[id]})
		}
	}
	return out
}

// Label returns the driver name of id. Labels outlive disconnection.
func (s *JoystickSource) Label(id DeviceID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label, ok := s.labels[id]; ok {
		return label
	}
	return string(id)
}

// NextEvent blocks until a device produces an event.
func (s *JoystickSource) NextEvent(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close stops hot-plug watching and closes every device.
func (s *JoystickSource) Close() error {
	var err error
	s.closing.Do(func() {
		close(s.done)
		err = s.watcher.Close()

		s.mu.Lock()
		for id, js := range s.open {
			_ = js.file.Close()
			delete(s.open, id)
		}
		s.mu.Unlock()

		s.wg.Wait()
	})
	return err
}

// attach opens path, queries its maps and starts its reader.
func (s *JoystickSource) attach(path string) (*joystick, error) {
	id := DeviceID(filepath.Base(path))

	s.mu.Lock()
	_, already := s.open[id]
	s.mu.Unlock()
	if already {
		return nil, nil
	}

	f, err := openPersistent(path)
	if err != nil {
		return nil, err
	}

	js := &joystick{id: id, file: f}
	if err := queryDevice(f, js); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("querying %s: %w", path, err)
	}

	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		_ = f.Close()
		return nil, ErrClosed
	default:
	}
	if _, ok := s.labels[id]; !ok {
		s.order = append(s.order, id)
	}
	s.open[id] = js
	s.labels[id] = js.label
	s.mu.Unlock()

	s.logger.Info("joystick opened", "device", id, "name", js.label,
		"axes", js.maps.nAxes, "buttons", js.maps.nBtns)

	s.wg.Add(1)
	go s.read(js)

	return js, nil
}

// detach forgets an open device and reports whether it was open.
func (s *JoystickSource) detach(id DeviceID) bool {
	s.mu.Lock()
	js, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	_ = js.file.Close()
	s.emit(Event{Device: id, Kind: Disconnected})
	return true
}

func (s *JoystickSource) read(js *joystick) {
	defer s.wg.Done()

	for {
		var e jsEvent
		if err := binary.Read(js.file, binary.LittleEndian, &e); err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if s.detach(js.id) {
				s.logger.Info("joystick closed", "device", js.id, "error", err)
			}
			return
		}

		if ev, ok := js.maps.decode(js.id, e); ok {
			s.emit(ev)
		}
	}
}

func (s *JoystickSource) watch() {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(ev.Name)
			if !isJoystickNode(name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create):
				s.wg.Add(1)
				go func(path string) {
					defer s.wg.Done()
					js, err := s.attach(path)
					if err != nil {
						s.logger.Warn("hot-plugged joystick unusable", "path", path, "error", err)
						return
					}
					if js != nil {
						s.emit(Event{Device: js.id, Kind: Connected})
					}
				}(ev.Name)
			case ev.Has(fsnotify.Remove):
				s.detach(DeviceID(name))
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("device watcher error", "error", err)
		}
	}
}

func (s *JoystickSource) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// openPersistent opens a device node, retrying while permission is denied.
func openPersistent(path string) (*os.File, error) {
	var lastErr error
	for i := 0; i < openAttempts; i++ {
		f, err := os.OpenFile(path, os.O_RDONLY, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
		if !errors.Is(err, os.ErrPermission) {
			break
		}
		time.Sleep(openRetryDelay)
	}
	return nil, fmt.Errorf("opening %s: %w", path, lastErr)
}

// queryDevice fills in the device name and its axis/button maps. The raw
// connection is used so the file stays in non-blocking mode and Close can
// interrupt a pending read.
func queryDevice(f *os.File, js *joystick) error {
	raw, err := f.SyscallConn()
	if err != nil {
		return err
	}

	name := make([]byte, nameLen)
	var ioctlErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		for _, q := range []struct {
			req uintptr
			dst unsafe.Pointer
		}{
			{jsIOCGName, unsafe.Pointer(&name[0])},
			{jsIOCGAxes, unsafe.Pointer(&js.maps.nAxes)},
			{jsIOCGButtons, unsafe.Pointer(&js.maps.nBtns)},
			{jsIOCGAxMap, unsafe.Pointer(&js.maps.axes[0])},
			{jsIOCGBtnMap, unsafe.Pointer(&js.maps.buttons[0])},
		} {
			if _, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, q.req, uintptr(q.dst)); errno != 0 {
				ioctlErr = fmt.Errorf("ioctl %#x: %w", q.req, errno)
				return
			}
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	if ioctlErr != nil {
		return ioctlErr
	}

	js.label = cString(name)
	if js.label == "" {
		js.label = string(js.id)
	}
	return nil
}
