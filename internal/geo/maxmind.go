package geo

import (
	"net"

	geoip2 "github.com/oschwald/geoip2-golang"
)

// MaxMindProvider resolves addresses against a local GeoLite2-City
// database, the same lookup the detection core's distillation source used
// (an external collaborator per spec.md §1 — nightwatch only depends on
// the Provider interface, never directly on this type).
type MaxMindProvider struct {
	reader *geoip2.Reader
}

// OpenMaxMind opens a GeoLite2-City .mmdb file. The database is not
// bundled; an operator who wants geo-velocity detection downloads one
// separately and points the NIGHTWATCH_GEOIP_DB environment variable at it.
func OpenMaxMind(path string) (*MaxMindProvider, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &MaxMindProvider{reader: reader}, nil
}

func (p *MaxMindProvider) Close() error { return p.reader.Close() }

// Locate implements Provider. A miss (private address, unknown address,
// missing location data) returns ok=false, never an error — the caller
// treats that identically to "no geolocation provider configured"
// (spec.md §4.D edge case).
func (p *MaxMindProvider) Locate(addr string) (Location, bool) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return Location{}, false
	}
	record, err := p.reader.City(ip)
	if err != nil || record.Location.Latitude == 0 && record.Location.Longitude == 0 {
		return Location{}, false
	}
	loc := Location{Latitude: record.Location.Latitude, Longitude: record.Location.Longitude}
	if !loc.Valid() {
		return Location{}, false
	}
	return loc, true
}
