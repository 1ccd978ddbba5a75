package domain

import "context"

// WeatherReport is the destination weather context attached to broad turns.
type WeatherReport struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Summary     string `json:"summary"`
}

// WeatherClient resolves current weather for a destination. Invoked only on
// broad turns that resolved a destination.
type WeatherClient interface {
	Lookup(ctx context.Context, location string) (*WeatherReport, error)
}
