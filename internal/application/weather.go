package application

import (
	"context"

	"homechat/internal/domain"
)

// WeatherProvider returns the current reading. It never fails; providers fall
// back to domain.SimulatedReading.
type WeatherProvider interface {
	Current(ctx context.Context) domain.Reading
}
