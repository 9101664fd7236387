package metrics

import (
	"context"
	"time"

	"github.com/edsmon/edsmon/pkg/types"
)

// Portal is the slice of the connector the engine drives. The engine never
// talks to the portal transport directly.
type Portal interface {
	Login(ctx context.Context) error
	SupplyPoints(ctx context.Context) ([]types.SupplyPoint, error)
	SupplyATRs(ctx context.Context, cupsID string) ([]types.ATRContract, error)
	ATRDetail(ctx context.Context, atrID string) ([]types.DetailField, error)
	Meter(ctx context.Context, cupsID string) (types.MeterSnapshot, error)
	CycleList(ctx context.Context, contractID string) ([]types.CycleRef, error)
	CycleCurve(ctx context.Context, contractID string, ref types.CycleRef) (types.Curve, error)
	CustomCurve(ctx context.Context, contractID string, start, end time.Time) (types.Curve, error)
	Maximeter(ctx context.Context, cupsID string, start, end time.Time) ([]types.MaximeterSample, error)
	ReconnectICP(ctx context.Context, cupsID string) error
}

// PriceSource supplies hourly day-ahead prices for a civil date range.
type PriceSource interface {
	PricesForRange(ctx context.Context, start, end time.Time) ([]types.Price, error)
}
