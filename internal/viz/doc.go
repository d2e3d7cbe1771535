// Package viz is the terminal viewer for a running engine.
//
// The viewer is a Bubble Tea program that ticks the engine on a fixed
// interval and draws bodies and their trails on a braille [Canvas].
//
// # Key Bindings
//
//	Space, P - Pause/Resume simulation
//	+ / -    - Double / halve the time scale
//	Z / X    - Zoom in / out by 1.5
//	Arrows   - Pan the view
//	Tab      - Track the next body
//	U        - Stop tracking
//	L        - Launch a probe from Earth
//	S        - Save a snapshot
//	T        - Cycle color themes
//	?        - Show help overlay
//	Q        - Quit
package viz
