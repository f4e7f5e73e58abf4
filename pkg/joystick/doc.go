// Package joystick is the geometry engine behind the touch joystick.
//
// A raw touch point, in the host platform's pixel convention, is turned into a
// nipple position bounded by the wrapper circle, an angle in [0, 360) degrees and
// a force magnitude. All functions are pure and safe for concurrent use; an Engine
// only carries immutable configuration.
//
// Coordinates live in the square of side 2×wrapperRadius whose origin is the
// top-left corner, so the wrapper center is (R, R) and the nipple rests at
// (R−r, R−r) where r = R/3 is the nipple radius.
package joystick
