// Package gamepad tracks device state and turns raw hardware events into
// the overlay's debounced event stream.
//
// # Components
//
//   - Registry: state of every device seen since startup, behind a single
//     exclusion with a blocking and a cancellable acquisition path.
//   - Normalizer: applies one raw event to the registry and returns the
//     encoded button/axis/connection messages it produces.
//   - Repeater: re-sends held sticks at a fixed rate.
//   - Poller: pulls events from an input.Source on a dedicated OS thread
//     and publishes the normalizer's output.
//
// # Normalization
//
// Sticks have a deadzone (default 0.15) and are clamped to [-1, 1].
// Triggers map to [0, 1] and double as the LT/RT buttons: crossing the
// threshold (default 0.5) emits a button edge instead of an axis update.
// The D-pad, when reported as a pair of axes, becomes four buttons.
// Axis updates are debounced: a value is sent when it moved at least
// 0.02 or 1/120 s passed since the previous send.
package gamepad
