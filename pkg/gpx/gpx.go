// Package gpx renders ride routes as GPX 1.1 track files for upload.
package gpx

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ridelink/server/pkg/types"
)

// TrackInput is everything the encoder needs. Encoding is pure: no I/O,
// same input always yields the same document.
type TrackInput struct {
	Name      string
	Route     []types.Coordinate
	StartTime time.Time
	Distance  float64 // meters
	Duration  int     // seconds
	// Elevation is the ride-level elevation, used as a per-point
	// fallback when a coordinate carries none.
	Elevation *float64
}

// Encode renders the input as a GPX 1.1 document.
//
// Per-point timestamps are synthesized by spreading Duration evenly
// across the points; true per-point timing is not retained locally, so
// this is a deliberate approximation. An empty route yields a single
// degenerate point at (0,0) rather than an invalid document.
func Encode(in TrackInput) string {
	start := in.StartTime.UTC()
	name := in.Name
	if name == "" {
		name = "Ride " + start.Format("2006-01-02 15:04")
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<gpx version="1.1" creator="RideLink" xmlns="http://www.topografix.com/GPX/1/1" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:schemaLocation="http://www.topografix.com/GPX/1/1 http://www.topografix.com/GPX/1/1/gpx.xsd">` + "\n")
	sb.WriteString("  <metadata>\n")
	sb.WriteString("    <name>" + EscapeXML(name) + "</name>\n")
	sb.WriteString("    <time>" + start.Format(time.RFC3339) + "</time>\n")
	sb.WriteString("  </metadata>\n")
	sb.WriteString("  <trk>\n")
	sb.WriteString("    <name>" + EscapeXML(name) + "</name>\n")
	sb.WriteString("    <type>Ride</type>\n")
	sb.WriteString("    <trkseg>\n")

	if len(in.Route) > 0 {
		// Seconds between synthesized point times.
		interval := float64(in.Duration) / float64(len(in.Route))
		for i, pt := range in.Route {
			pointTime := start.Add(time.Duration(float64(i) * interval * float64(time.Second)))
			sb.WriteString(fmt.Sprintf("      <trkpt lat=\"%s\" lon=\"%s\">\n",
				formatCoord(pt.Lat), formatCoord(pt.Lng)))
			if ele := pointElevation(pt, in.Elevation); ele != nil {
				sb.WriteString(fmt.Sprintf("        <ele>%s</ele>\n", formatCoord(*ele)))
			}
			sb.WriteString("        <time>" + pointTime.UTC().Format(time.RFC3339) + "</time>\n")
			sb.WriteString("      </trkpt>\n")
		}
	} else {
		// Degenerate single point keeps the document valid; callers are
		// expected to avoid this case.
		sb.WriteString("      <trkpt lat=\"0\" lon=\"0\">\n")
		sb.WriteString("        <time>" + start.Format(time.RFC3339) + "</time>\n")
		sb.WriteString("      </trkpt>\n")
	}

	sb.WriteString("    </trkseg>\n")
	sb.WriteString("  </trk>\n")
	sb.WriteString("</gpx>\n")
	return sb.String()
}

func pointElevation(pt types.Coordinate, fallback *float64) *float64 {
	if pt.Elevation != nil {
		return pt.Elevation
	}
	return fallback
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EscapeXML escapes the five XML special characters in free-text fields.
func EscapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

// ParseCoordinate parses a "lat,lng" string. The second return is false
// when the string is empty or malformed.
func ParseCoordinate(s string) (types.Coordinate, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return types.Coordinate{}, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return types.Coordinate{}, false
	}
	return types.Coordinate{Lat: lat, Lng: lng}, true
}
