package model

import "math"

// ArcsecPerDegree converts between the two angular units used for the
// candidate match tolerance.
const ArcsecPerDegree = 3600.0

// AngularSeparation returns the great-circle separation in degrees between
// two sky positions given in degrees (ICRS RA/Dec). Uses the Vincenty
// formula, which stays accurate for both very small and antipodal
// separations.
func AngularSeparation(ra1, dec1, ra2, dec2 float64) float64 {
	const degToRad = math.Pi / 180.0

	l1 := dec1 * degToRad
	l2 := dec2 * degToRad
	dRA := (ra2 - ra1) * degToRad

	sinL1, cosL1 := math.Sincos(l1)
	sinL2, cosL2 := math.Sincos(l2)
	sinDRA, cosDRA := math.Sincos(dRA)

	num := math.Hypot(cosL2*sinDRA, cosL1*sinL2-sinL1*cosL2*cosDRA)
	den := sinL1*sinL2 + cosL1*cosL2*cosDRA

	return math.Atan2(num, den) / degToRad
}
