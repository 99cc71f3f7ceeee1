package route

import (
	"encoding/xml"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// GPX represents the root GPX document structure
type GPX struct {
	XMLName xml.Name   `xml:"gpx"`
	Version string     `xml:"version,attr"`
	Creator string     `xml:"creator,attr"`
	Xmlns   string     `xml:"xmlns,attr"`
	Track   Track      `xml:"trk"`
	Routes  []GPXRoute `xml:"rte"`
}

// Track represents a GPX track
type Track struct {
	Name         string       `xml:"name"`
	TrackSegment TrackSegment `xml:"trkseg"`
}

// TrackSegment represents a segment of a GPX track
type TrackSegment struct {
	TrackPoints []TrackPoint `xml:"trkpt"`
}

// TrackPoint represents a point in a GPX track or route
type TrackPoint struct {
	Lat  float64    `xml:"lat,attr"`
	Lon  float64    `xml:"lon,attr"`
	Time *time.Time `xml:"time,omitempty"`
}

// GPXRoute represents a GPX route
type GPXRoute struct {
	Name        string       `xml:"name"`
	RoutePoints []TrackPoint `xml:"rtept"`
}

// GPXWriter handles writing driven positions to a GPX file
type GPXWriter struct {
	mu       sync.Mutex
	filename string
	gpx      *GPX
	file     *os.File
}

// NewGPXWriter creates a new GPX writer
func NewGPXWriter(filename string) (*GPXWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create GPX file %s: %w", filename, err)
	}

	gpx := &GPX{
		Version: "1.1",
		Creator: "go-truck-tracker",
		Xmlns:   "http://www.topografix.com/GPX/1/1",
		Track: Track{
			Name: "Truck Trip",
			TrackSegment: TrackSegment{
				TrackPoints: []TrackPoint{},
			},
		},
	}

	return &GPXWriter{
		filename: filename,
		gpx:      gpx,
		file:     file,
	}, nil
}

// AddTrackPoint adds a new track point to the GPX document
func (w *GPXWriter) AddTrackPoint(p GeoPoint, timestamp time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := timestamp.UTC()
	w.gpx.Track.TrackSegment.TrackPoints = append(w.gpx.Track.TrackSegment.TrackPoints, TrackPoint{
		Lat:  p.Lat,
		Lon:  p.Lon,
		Time: &ts,
	})
}

// WriteToFile rewrites the file with the current GPX document
func (w *GPXWriter) WriteToFile() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked()
}

func (w *GPXWriter) writeLocked() error {
	if w.file == nil {
		return ErrWriterClosed
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek to beginning of file: %w", err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := w.file.WriteString(xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	encoder := xml.NewEncoder(w.file)
	encoder.Indent("", "  ")
	if err := encoder.Encode(w.gpx); err != nil {
		return fmt.Errorf("failed to encode GPX data: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return nil
}

// Close writes the final document and closes the file
func (w *GPXWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.writeLocked()
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	w.file = nil
	return err
}

// TrackPointCount returns the number of track points currently stored
func (w *GPXWriter) TrackPointCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.gpx.Track.TrackSegment.TrackPoints)
}

// ReadGPXFile reads a GPX file and returns its track points as a Route.
// The first route (<rte>) is used when the file has no track points.
func ReadGPXFile(filename string) (Route, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open GPX file %s: %w", filename, err)
	}
	defer file.Close()

	var gpx GPX
	if err := xml.NewDecoder(file).Decode(&gpx); err != nil {
		return nil, fmt.Errorf("failed to parse GPX file %s: %w", filename, err)
	}

	points := gpx.Track.TrackSegment.TrackPoints
	if len(points) == 0 && len(gpx.Routes) > 0 {
		points = gpx.Routes[0].RoutePoints
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("no track points or route points found in GPX file %s: %w", filename, ErrEmptyRoute)
	}

	r := make(Route, len(points))
	for i, tp := range points {
		r[i] = GeoPoint{Lat: tp.Lat, Lon: tp.Lon}
	}
	if err := validatePoints(r); err != nil {
		return nil, fmt.Errorf("GPX file %s: %w", filename, err)
	}
	return r, nil
}

// TripRecorder is a Listener that records every reported position into a
// GPX file, flushing every flushEvery points and on arrival
type TripRecorder struct {
	writer     *GPXWriter
	flushEvery int
	now        func() time.Time
}

// NewTripRecorder wraps w as a Listener
func NewTripRecorder(w *GPXWriter) *TripRecorder {
	return &TripRecorder{writer: w, flushEvery: 10, now: time.Now}
}

func (r *TripRecorder) Position(step Step) {
	r.writer.AddTrackPoint(step.Point, r.now())
	if r.writer.TrackPointCount()%r.flushEvery == 0 {
		r.flush()
	}
}

func (r *TripRecorder) NearArrival() {}

func (r *TripRecorder) Arrived() {
	r.flush()
}

func (r *TripRecorder) flush() {
	if err := r.writer.WriteToFile(); err != nil {
		log.Printf("trip recorder: %s: %v", r.writer.filename, err)
	}
}
