package domain

type Reading struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Simulated   bool    `json:"simulated"`
}

// SimulatedReading is shown whenever the weather service is unavailable.
func SimulatedReading(city string) Reading {
	return Reading{
		City:        city,
		Temperature: 22.0,
		Description: "parçalı bulutlu (simülasyon)",
		Humidity:    45,
		WindSpeed:   12,
		Simulated:   true,
	}
}
