package route

// Home is the customer's delivery address
var Home = GeoPoint{Lat: 12.9716, Lon: 77.5946}

// DefaultTruckLocation is where the truck waits before the driver goes online
var DefaultTruckLocation = GeoPoint{Lat: 12.9750, Lon: 77.5980}

// DefaultRoute returns the scripted drive from the depot to Home
func DefaultRoute() Route {
	return Route{
		{Lat: 12.9750, Lon: 77.5980},
		{Lat: 12.9745, Lon: 77.5975},
		{Lat: 12.9740, Lon: 77.5970},
		{Lat: 12.9735, Lon: 77.5965},
		{Lat: 12.9730, Lon: 77.5960},
		{Lat: 12.9725, Lon: 77.5955},
		{Lat: 12.9720, Lon: 77.5950},
		Home,
	}
}
