package route

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// Fix is a single position report rendered as NMEA sentences
type Fix struct {
	Point  GeoPoint
	Speed  float64 // knots
	Course float64 // degrees
	Time   time.Time
}

// calculateChecksum calculates the NMEA checksum for a sentence
func calculateChecksum(sentence string) string {
	var checksum byte
	for i := 1; i < len(sentence); i++ { // Skip the '$' character
		checksum ^= sentence[i]
	}
	return fmt.Sprintf("%02X", checksum)
}

// formatNMEA formats a complete NMEA sentence with checksum
func formatNMEA(sentence string) string {
	return fmt.Sprintf("%s*%s\r\n", sentence, calculateChecksum(sentence))
}

// nmeaCoords converts decimal degrees to NMEA DDMM.MMMM fields
func nmeaCoords(p GeoPoint) string {
	latDeg := int(math.Abs(p.Lat))
	latMin := (math.Abs(p.Lat) - float64(latDeg)) * 60
	latHem := "N"
	if p.Lat < 0 {
		latHem = "S"
	}

	lonDeg := int(math.Abs(p.Lon))
	lonMin := (math.Abs(p.Lon) - float64(lonDeg)) * 60
	lonHem := "E"
	if p.Lon < 0 {
		lonHem = "W"
	}

	return fmt.Sprintf("%02d%07.4f,%s,%03d%07.4f,%s", latDeg, latMin, latHem, lonDeg, lonMin, lonHem)
}

// GGA generates a GGA (Global Positioning System Fix Data) sentence
func GGA(f Fix) string {
	sentence := fmt.Sprintf("$GPGGA,%s,%s,1,08,1.2,0.0,M,0.0,M,,",
		f.Time.UTC().Format("150405"), nmeaCoords(f.Point))
	return formatNMEA(sentence)
}

// RMC generates an RMC (Recommended Minimum) sentence
func RMC(f Fix) string {
	sentence := fmt.Sprintf("$GPRMC,%s,A,%s,%.1f,%.1f,%s,,,A",
		f.Time.UTC().Format("150405"), nmeaCoords(f.Point),
		f.Speed, f.Course, f.Time.UTC().Format("020106"))
	return formatNMEA(sentence)
}

// VTG generates a VTG (Track Made Good and Ground Speed) sentence
func VTG(f Fix) string {
	// 1 knot = 1.852 km/h
	sentence := fmt.Sprintf("$GPVTG,%.1f,T,,M,%.1f,N,%.1f,K,A", f.Course, f.Speed, f.Speed*1.852)
	return formatNMEA(sentence)
}

// NMEAWriter is a Listener that writes GGA, RMC and VTG sentences for every
// reported position. Speed and course are derived from the next route point,
// assuming one point per interval.
type NMEAWriter struct {
	mu       sync.Mutex
	w        io.Writer
	route    Route
	interval time.Duration
	course   float64
	now      func() time.Time
}

// NewNMEAWriter creates a listener writing to w for the given route
func NewNMEAWriter(w io.Writer, r Route, interval time.Duration) *NMEAWriter {
	return &NMEAWriter{
		w:        w,
		route:    r.Clone(),
		interval: interval,
		now:      time.Now,
	}
}

// FixFor computes the fix reported for step
func (n *NMEAWriter) FixFor(step Step) Fix {
	f := Fix{Point: step.Point, Course: n.course, Time: n.now()}
	if next := step.Index + 1; next < len(n.route) && n.interval > 0 {
		// Convert m/s to knots (1 m/s = 1.94384 knots)
		f.Speed = Distance(step.Point, n.route[next]) / n.interval.Seconds() * 1.94384
		f.Course = Bearing(step.Point, n.route[next])
	}
	return f
}

func (n *NMEAWriter) Position(step Step) {
	n.mu.Lock()
	defer n.mu.Unlock()

	f := n.FixFor(step)
	n.course = f.Course
	for _, sentence := range []string{GGA(f), RMC(f), VTG(f)} {
		fmt.Fprint(n.w, sentence)
	}
}

func (n *NMEAWriter) NearArrival() {}

func (n *NMEAWriter) Arrived() {}
