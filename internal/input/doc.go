// Package input provides gamepad hardware sources.
//
// A Source turns device activity into raw Events: connect and disconnect,
// digital button press and release, analog button changes and axis
// changes. Buttons and axes are positional (South, LeftZ, DPadX, ...);
// mapping them to the overlay's button codes is the normalizer's job.
//
// Backends:
//   - JoystickSource reads /dev/input/js* through the Linux joystick API and
//     follows hot-plug with fsnotify. Axis readings are scaled to [-1, 1];
//     triggers rest at -1.
//   - FakeSource is fed by the caller. Tests use it, and the "none" backend
//     runs the server without hardware.
package input
