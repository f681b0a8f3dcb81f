// Package geodesy solves the geodesic problems on the WGS84 ellipsoid. Both the
// localizer's objective and any reported distance go through here so fitting
// and reporting agree.
package geodesy

import "github.com/tidwall/geodesic"

// Distance returns the ellipsoidal surface distance in meters.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &s12, nil, nil)
	return s12
}

// Destination returns the point reached by travelling dist meters from
// (lat, lon) along the initial bearing (degrees clockwise from north).
func Destination(lat, lon, bearing, dist float64) (float64, float64) {
	var lat2, lon2 float64
	geodesic.WGS84.Direct(lat, lon, bearing, dist, &lat2, &lon2, nil)
	return lat2, lon2
}
