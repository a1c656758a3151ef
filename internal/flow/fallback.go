package flow

import "supervisor-console/internal/model"

// FallbackReaders returns the labelled demo records shown when the reader
// list cannot be loaded.
func FallbackReaders() []model.MeterReader {
	return []model.MeterReader{
		{
			ID:            "MR001",
			Name:          "John Smith",
			Mobile:        "+1234567890",
			Email:         "john@example.com",
			Area:          "Zone A - Residential",
			Status:        model.ReaderActive,
			LastReading:   "2024-01-10",
			TotalReadings: 245,
		},
		{
			ID:            "MR002",
			Name:          "Sarah Johnson",
			Mobile:        "+1234567891",
			Email:         "sarah@example.com",
			Area:          "Zone B - Commercial",
			Status:        model.ReaderOnField,
			LastReading:   "2024-01-09",
			TotalReadings: 189,
		},
		{
			ID:            "MR003",
			Name:          "Mike Davis",
			Mobile:        "+1234567892",
			Email:         "mike@example.com",
			Area:          "Zone C - Industrial",
			Status:        model.ReaderInactive,
			LastReading:   "2024-01-08",
			TotalReadings: 312,
		},
	}
}
