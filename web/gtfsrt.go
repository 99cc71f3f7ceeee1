package web

import (
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/Bucknalla/go-truck-tracker/app"
)

const truckVehicleID = "truck-1"

// VehiclePositionsFeed renders the truck as a GTFS-Realtime VehiclePositions
// feed. The feed is empty while the rider is offline.
func VehiclePositionsFeed(snap app.Snapshot, now time.Time) *gtfs.FeedMessage {
	ts := uint64(now.Unix())
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(ts),
		},
	}
	if !snap.DriverOnline {
		return feed
	}

	status := gtfs.VehiclePosition_STOPPED_AT
	if snap.TruckMoving {
		status = gtfs.VehiclePosition_IN_TRANSIT_TO
	}

	vehicle := &gtfs.VehiclePosition{
		Vehicle: &gtfs.VehicleDescriptor{
			Id:    proto.String(truckVehicleID),
			Label: proto.String("Delivery truck"),
		},
		Position: &gtfs.Position{
			Latitude:  proto.Float32(float32(snap.Truck.Lat)),
			Longitude: proto.Float32(float32(snap.Truck.Lon)),
		},
		CurrentStatus: status.Enum(),
		Timestamp:     proto.Uint64(ts),
	}
	if snap.Player.TripID != "" {
		vehicle.Trip = &gtfs.TripDescriptor{TripId: proto.String(snap.Player.TripID)}
	}

	feed.Entity = append(feed.Entity, &gtfs.FeedEntity{
		Id:      proto.String(truckVehicleID),
		Vehicle: vehicle,
	})
	return feed
}

func (s *Server) handleVehiclePositions(w http.ResponseWriter, r *http.Request) {
	feed := VehiclePositionsFeed(s.app.Snapshot(), time.Now())

	if r.URL.Query().Get("format") == "json" {
		data, err := protojson.Marshal(feed)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	data, err := proto.Marshal(feed)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(data)
}
