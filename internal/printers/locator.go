package printers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"floroexpress/internal/domain"
)

// LocationWarning is reported when the current position could not be
// determined and the default location was used instead.
const LocationWarning = "Unable to get your current location. Using default location."

// ErrShopNotFound is returned for an unknown shop id.
var ErrShopNotFound = errors.New("printer shop not found")

const earthRadiusKm = 6371.0

// Geolocator resolves the device position.
type Geolocator interface {
	Locate(ctx context.Context) (domain.GeoPoint, error)
}

// StaticGeolocator always reports the same position.
type StaticGeolocator struct {
	Point domain.GeoPoint
	Err   error
}

// Locate returns the configured point or error.
func (g StaticGeolocator) Locate(context.Context) (domain.GeoPoint, error) {
	return g.Point, g.Err
}

// Match is one shop with its distance from the search origin.
type Match struct {
	Shop       domain.PrinterShop `json:"shop"`
	DistanceKm float64            `json:"distanceKm"`
}

// Result is an ordered nearest-first shop search.
type Result struct {
	Origin  domain.GeoPoint `json:"origin"`
	Matches []Match         `json:"matches"`
	Warning string          `json:"warning,omitempty"`
}

// Locator answers nearest-shop queries over a fixed catalog.
type Locator struct {
	shops    []domain.PrinterShop
	geo      Geolocator
	fallback domain.GeoPoint
	logger   *zap.Logger
}

// NewLocator creates a locator. geo may be nil, in which case fallback is
// always used.
func NewLocator(shops []domain.PrinterShop, geo Geolocator, fallback domain.GeoPoint, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		shops:    append([]domain.PrinterShop(nil), shops...),
		geo:      geo,
		fallback: fallback,
		logger:   logger.Named("printers"),
	}
}

// Shops returns a copy of the catalog.
func (l *Locator) Shops() []domain.PrinterShop {
	return append([]domain.PrinterShop(nil), l.shops...)
}

// Shop looks up one shop by id.
func (l *Locator) Shop(id string) (domain.PrinterShop, error) {
	for _, shop := range l.shops {
		if shop.ID == id {
			return shop, nil
		}
	}
	return domain.PrinterShop{}, fmt.Errorf("%w: %s", ErrShopNotFound, id)
}

// Origin resolves the search origin. An explicit point wins; otherwise the
// geolocator is asked and the fallback used with a warning on failure.
func (l *Locator) Origin(ctx context.Context, from *domain.GeoPoint) (domain.GeoPoint, string) {
	if from != nil && from.Valid() {
		return *from, ""
	}
	if l.geo != nil {
		point, err := l.geo.Locate(ctx)
		if err == nil && point.Valid() {
			return point, ""
		}
		if err != nil {
			l.logger.Warn("geolocation failed", zap.Error(err))
		}
	}
	return l.fallback, LocationWarning
}

// Nearest returns up to limit shops ordered by distance from the origin.
// A non-positive limit returns every shop.
func (l *Locator) Nearest(ctx context.Context, from *domain.GeoPoint, limit int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	origin, warning := l.Origin(ctx, from)
	matches := make([]Match, 0, len(l.shops))
	for _, shop := range l.shops {
		matches = append(matches, Match{Shop: shop, DistanceKm: Distance(origin, shop.Location)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	return Result{Origin: origin, Matches: matches, Warning: warning}, nil
}

// Distance is the great-circle distance between a and b in kilometres.
func Distance(a, b domain.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
