package config

import (
	"fmt"
	"os"

	"bus-tracker/internal/geo"
	"bus-tracker/internal/route"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StopsFile is the YAML seed file listing the stops in traversal order.
type StopsFile struct {
	Stops []StopEntry `yaml:"stops" validate:"dive"`
}

type StopEntry struct {
	Name string       `yaml:"name" validate:"required"`
	Lat  float64      `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng  float64      `yaml:"lng" validate:"gte=-180,lte=180"`
	Via  []PointEntry `yaml:"via,omitempty" validate:"dive"`
}

type PointEntry struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `yaml:"lng" validate:"gte=-180,lte=180"`
}

// DefaultStops is the university route used when no seed file is configured.
// Via points keep the drawn route on the main roads.
func DefaultStops() []route.Stop {
	return []route.Stop{
		{Name: "GCUF Chiniot", Position: geo.Point{Lat: 31.6991, Lng: 72.9782}},
		{Name: "Chenab College", Position: geo.Point{Lat: 31.7180, Lng: 72.9760}, Via: []geo.Point{
			{Lat: 31.7550, Lng: 72.9692}, // Chiniot Road
			{Lat: 31.7689, Lng: 72.9520},
			{Lat: 31.7831, Lng: 72.9350},
		}},
		{Name: "Aqsa Chowk Rabwah", Position: geo.Point{Lat: 31.7529, Lng: 72.9115}, Via: []geo.Point{
			{Lat: 31.8312, Lng: 72.9012}, // Chenab Road
			{Lat: 31.8456, Lng: 72.8891},
			{Lat: 31.8567, Lng: 72.8789},
		}},
		{Name: "Ahmad Nagar", Position: geo.Point{Lat: 31.7849, Lng: 72.8857}},
	}
}

// LoadStops reads the seed file at path. An empty path yields DefaultStops.
func LoadStops(path string) ([]route.Stop, error) {
	if path == "" {
		return DefaultStops(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	stops, err := ParseStops(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stops, nil
}

func ParseStops(data []byte) ([]route.Stop, error) {
	var f StopsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, err
	}
	stops := make([]route.Stop, 0, len(f.Stops))
	for _, e := range f.Stops {
		s := route.Stop{Name: e.Name, Position: geo.Point{Lat: e.Lat, Lng: e.Lng}}
		for _, p := range e.Via {
			s.Via = append(s.Via, geo.Point{Lat: p.Lat, Lng: p.Lng})
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, nil
}

// MarshalStops renders stops in the seed file format.
func MarshalStops(stops []route.Stop) ([]byte, error) {
	f := StopsFile{Stops: make([]StopEntry, 0, len(stops))}
	for _, s := range stops {
		e := StopEntry{Name: s.Name, Lat: s.Position.Lat, Lng: s.Position.Lng}
		for _, p := range s.Via {
			e.Via = append(e.Via, PointEntry{Lat: p.Lat, Lng: p.Lng})
		}
		f.Stops = append(f.Stops, e)
	}
	return yaml.Marshal(f)
}
