package printers

import "floroexpress/internal/domain"

// DefaultCatalog lists the partner shops around Metro Manila.
func DefaultCatalog() []domain.PrinterShop {
	return []domain.PrinterShop{
		{
			ID:       "PS001",
			Name:     "EasyPrint Manila Branch",
			Address:  "123 P. Burgos St., Malate, Manila",
			Location: domain.GeoPoint{Lat: 14.5995, Lng: 120.9842},
			Rating:   4.8,
		},
		{
			ID:       "PS002",
			Name:     "QuickCopy Ermita",
			Address:  "45 Padre Faura St., Ermita, Manila",
			Location: domain.GeoPoint{Lat: 14.5826, Lng: 120.9850},
			Rating:   4.5,
		},
		{
			ID:       "PS003",
			Name:     "PrintHub Makati",
			Address:  "88 Ayala Ave., Makati City",
			Location: domain.GeoPoint{Lat: 14.5547, Lng: 121.0244},
			Rating:   4.6,
		},
		{
			ID:       "PS004",
			Name:     "Blueprint Express Quezon City",
			Address:  "210 Timog Ave., Quezon City",
			Location: domain.GeoPoint{Lat: 14.6349, Lng: 121.0334},
			Rating:   4.3,
		},
		{
			ID:       "PS005",
			Name:     "PhotoPro Pasig",
			Address:  "12 Ortigas Ave., Pasig City",
			Location: domain.GeoPoint{Lat: 14.5869, Lng: 121.0614},
			Rating:   4.4,
		},
	}
}
