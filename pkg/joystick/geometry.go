package joystick

import "math"

// Point is a coordinate in the joystick's bounding square.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p offset by -d on both axes.
func (p Point) Sub(d float64) Point {
	return Point{X: p.X - d, Y: p.Y - d}
}

// Distance returns the Euclidean distance between two points.
func Distance(p1, p2 Point) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// Angle returns the direction of the vector from p2 to p1 in degrees,
// normalized into [0, 360).
//
// Negative atan2 results are shifted by +360; positive ones are kept as is.
func Angle(p1, p2 Point) float64 {
	raw := RadiansToDegrees(math.Atan2(p1.Y-p2.Y, p1.X-p2.X))
	if raw < 0 {
		raw += 360
	}
	// -1e-15 + 360 rounds to 360
	if raw >= 360 {
		raw -= 360
	}
	return raw
}

// DegreesToRadians converts degrees to radians.
func DegreesToRadians(a float64) float64 {
	return a * (math.Pi / 180)
}

// RadiansToDegrees converts radians to degrees.
func RadiansToDegrees(a float64) float64 {
	return a * (180 / math.Pi)
}

// FindCoord returns the point at the given distance and angle (degrees) from
// center. A negative Y result is shifted down by negativeYOffset, which corrects
// for hosts whose vertical origin sits outside the bounding square.
func FindCoord(center Point, distance, degrees, negativeYOffset float64) Point {
	rad := DegreesToRadians(degrees)
	p := Point{
		X: center.X + distance*math.Cos(rad),
		Y: center.Y + distance*math.Sin(rad),
	}
	if p.Y < 0 {
		p.Y += negativeYOffset
	}
	return p
}
