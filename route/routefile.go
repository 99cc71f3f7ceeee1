package route

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// routeDocument is the YAML route file layout:
//
//	name: depot-to-home
//	points:
//	  - {lat: 12.9750, lon: 77.5980}
//	  - {lat: 12.9716, lon: 77.5946}
type routeDocument struct {
	Name   string     `yaml:"name"`
	Points []GeoPoint `yaml:"points" validate:"required,min=1,dive"`
}

var validate = validator.New()

// ReadYAMLFile reads a YAML route file
func ReadYAMLFile(filename string) (Route, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file %s: %w", filename, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes and validates a YAML route document
func ParseYAML(data []byte) (Route, error) {
	var doc routeDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse route: %w", err)
	}
	if len(doc.Points) == 0 {
		return nil, ErrEmptyRoute
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid route: %w", err)
	}
	return Route(doc.Points), nil
}

// validatePoints checks that every point lies within latitude and longitude
// range
func validatePoints(r Route) error {
	if err := validate.Struct(routeDocument{Points: r}); err != nil {
		return fmt.Errorf("invalid route: %w", err)
	}
	return nil
}

// LoadRouteFile loads a route from a .gpx, .yaml or .yml file
func LoadRouteFile(filename string) (Route, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gpx":
		return ReadGPXFile(filename)
	case ".yaml", ".yml":
		return ReadYAMLFile(filename)
	default:
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedRouteFormat)
	}
}
