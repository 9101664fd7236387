package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/types"
)

const (
	DefaultShortInterval = 10 * time.Minute
	DefaultLongInterval  = time.Hour

	// maximeterWindowDays covers roughly 13 monthly samples.
	maximeterWindowDays = 395

	// priceLookbackDays must span the longest possible open cycle.
	priceLookbackDays = 60

	activeATRStatus = "EN VIGOR"
	atrPowerP1Title = "Potencia contratada 1 (kW)"
	atrPowerP2Title = "Potencia contratada 2 (kW)"
)

// Engine owns the derived metrics of one supply point. Refresh is driven by
// an external ticker; the engine decides lazily which data is stale enough
// to refetch. Sub-steps are individually contained: a failed fetch is
// logged and its derived values keep their previous (possibly zero) state.
type Engine struct {
	portal Portal
	prices PriceSource
	rates  Rates

	shortInterval time.Duration
	longInterval  time.Duration
	defaultCUPS   string

	now  func() time.Time
	busy atomic.Bool

	mu            sync.RWMutex
	supply        *types.SupplyPoint
	current, last types.Curve
	currentEnergy types.CycleEnergy
	lastEnergy    types.CycleEnergy
	haveCycles    int
	maximeter     types.MaximeterStats
	meter         types.MeterSnapshot
	haveMeter     bool
	baseline      float64
	haveBaseline  bool
	energyToday   float64
	today         types.DayEnergy
	yesterday     types.DayEnergy
	priceIdx      map[int64]float64
	dayPrices     []types.Price
	priceDay      string
	lastShort     time.Time
	lastLong      time.Time
	updatedAt     time.Time
}

// Opts configures an Engine.
type Opts struct {
	// CUPS selects an explicit supply point; empty picks the first.
	CUPS string

	ShortInterval time.Duration
	LongInterval  time.Duration

	// Rates overrides the billing constants; zero value means defaults.
	Rates *Rates
}

// NewEngine creates an Engine on top of a portal client and a price feed.
func NewEngine(portal Portal, prices PriceSource, opts Opts) *Engine {
	e := &Engine{}
	e.init(portal, prices, opts)
	return e
}

func (e *Engine) init(portal Portal, prices PriceSource, opts Opts) {
	e.portal = portal
	e.prices = prices
	e.rates = DefaultRates()
	e.shortInterval = opts.ShortInterval
	e.longInterval = opts.LongInterval
	e.defaultCUPS = opts.CUPS
	e.now = time.Now
	if e.shortInterval == 0 {
		e.shortInterval = DefaultShortInterval
	}
	if e.longInterval == 0 {
		e.longInterval = DefaultLongInterval
	}
	if opts.Rates != nil {
		e.rates = *opts.Rates
	}
}

// Refresh runs one tick. Overlapping calls are dropped: the next tick
// re-evaluates staleness anyway. cups overrides the configured supply point
// selection for this and subsequent ticks when non-empty.
func (e *Engine) Refresh(ctx context.Context, cups string) error {
	if !e.busy.CompareAndSwap(false, true) {
		log.Ctx(ctx).DebugContext(ctx, "refresh already running, dropping tick")
		return nil
	}
	defer e.busy.Store(false)

	if cups == "" {
		cups = e.defaultCUPS
	}

	e.mu.RLock()
	sup := e.supply
	e.mu.RUnlock()

	if sup == nil || (cups != "" && sup.CUPS != cups) {
		resolved, err := e.resolveSupply(ctx, cups)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to resolve supply point", slog.Any("error", err))
			return err
		}
		e.mu.Lock()
		e.supply = &resolved
		// derived state belongs to the previous supply
		e.current, e.last = types.Curve{}, types.Curve{}
		e.currentEnergy, e.lastEnergy = types.CycleEnergy{}, types.CycleEnergy{}
		e.haveCycles = 0
		e.haveBaseline = false
		e.haveMeter = false
		e.lastShort, e.lastLong = time.Time{}, time.Time{}
		e.mu.Unlock()
		sup = &resolved
		log.Ctx(ctx).InfoContext(ctx, "resolved supply point",
			slog.String("cups", resolved.CUPS),
			slog.Bool("active", resolved.Active))
	} else if err := e.portal.Login(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to refresh session", slog.Any("error", err))
	}

	now := e.now().In(common.Madrid)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, common.Madrid)

	if e.stale(e.lastLong, e.longInterval) {
		if e.refreshCycles(ctx, sup, today) {
			e.mu.Lock()
			e.lastLong = now
			e.mu.Unlock()
		}
	}

	if e.stale(e.lastShort, e.shortInterval) {
		if e.refreshMeter(ctx, sup) {
			e.mu.Lock()
			e.lastShort = now
			e.mu.Unlock()
		}
	}

	e.refreshBilling(ctx, sup, today)

	e.mu.Lock()
	e.updatedAt = now
	e.mu.Unlock()
	return nil
}

func (e *Engine) stale(last time.Time, interval time.Duration) bool {
	return last.IsZero() || e.now().Sub(last) > interval
}

// resolveSupply picks the supply point and enriches its per-period
// contracted powers from the active access contract. Enrichment failures
// keep the generic power as both periods.
func (e *Engine) resolveSupply(ctx context.Context, cups string) (types.SupplyPoint, error) {
	points, err := e.portal.SupplyPoints(ctx)
	if err != nil {
		return types.SupplyPoint{}, err
	}
	var sel *types.SupplyPoint
	for i := range points {
		if cups == "" || points[i].CUPS == cups {
			sel = &points[i]
			break
		}
	}
	if sel == nil {
		return types.SupplyPoint{}, fmt.Errorf("no supply point matching %q", cups)
	}

	atrs, err := e.portal.SupplyATRs(ctx, sel.CUPSID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to list access contracts", slog.Any("error", err))
		return *sel, nil
	}
	for _, atr := range atrs {
		if atr.Status != activeATRStatus {
			continue
		}
		fields, err := e.portal.ATRDetail(ctx, atr.ID)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch access contract detail",
				slog.String("atrID", atr.ID), slog.Any("error", err))
			break
		}
		for _, f := range fields {
			switch f.Title {
			case atrPowerP1Title:
				if v, err := strconv.ParseFloat(strings.ReplaceAll(f.Value, ",", "."), 64); err == nil {
					sel.PowerKWP1 = v
				}
			case atrPowerP2Title:
				if v, err := strconv.ParseFloat(strings.ReplaceAll(f.Value, ",", "."), 64); err == nil {
					sel.PowerKWP2 = v
				}
			}
		}
		break
	}
	return *sel, nil
}

// refreshCycles fetches the cycle list, detects rollover and refetches
// curves and the maximeter histogram as needed. Returns false when the data
// could not be refreshed and should be retried next tick.
func (e *Engine) refreshCycles(ctx context.Context, sup *types.SupplyPoint, today time.Time) bool {
	refs, err := e.portal.CycleList(ctx, sup.ContractID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch cycle list", slog.Any("error", err))
		return false
	}
	if len(refs) == 0 {
		log.Ctx(ctx).WarnContext(ctx, "portal reported no billing cycles")
		return false
	}
	lastRef := refs[0]
	currentStart := lastRef.End.AddDate(0, 0, 1)

	e.mu.RLock()
	haveCycles := e.haveCycles
	cachedStart := e.currentEnergy.Start
	e.mu.RUnlock()

	rollover := haveCycles > 0 && !cachedStart.Equal(currentStart)

	if haveCycles < 2 || rollover {
		log.Ctx(ctx).InfoContext(ctx, "full cycle refetch",
			slog.Bool("rollover", rollover),
			slog.Time("cycleStart", currentStart))
		current, err := e.portal.CustomCurve(ctx, sup.ContractID, currentStart, today)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch current cycle curve", slog.Any("error", err))
			return false
		}
		last, err := e.portal.CycleCurve(ctx, sup.ContractID, lastRef)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch last cycle curve", slog.Any("error", err))
			return false
		}
		e.mu.Lock()
		e.current, e.last = current, last
		e.currentEnergy, e.lastEnergy = cycleEnergy(current), cycleEnergy(last)
		e.haveCycles = 2
		if rollover {
			// energy-today baseline restarts with the new cycle
			e.haveBaseline = false
		}
		e.mu.Unlock()

		samples, err := e.portal.Maximeter(ctx, sup.CUPSID, today.AddDate(0, 0, -maximeterWindowDays), today)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch maximeter histogram", slog.Any("error", err))
		} else {
			stats := maximeterStats(samples)
			e.mu.Lock()
			e.maximeter = stats
			e.mu.Unlock()
		}
	} else {
		current, err := e.portal.CustomCurve(ctx, sup.ContractID, currentStart, today)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch current cycle curve", slog.Any("error", err))
			return false
		}
		e.mu.Lock()
		e.current = current
		e.currentEnergy = cycleEnergy(current)
		e.mu.Unlock()
	}

	e.mu.Lock()
	e.today = dayEnergy(e.current, today)
	e.yesterday = dayEnergy(e.current, today.AddDate(0, 0, -1))
	if e.yesterday.Date.IsZero() {
		// yesterday may belong to the closed cycle right after a rollover
		e.yesterday = dayEnergy(e.last, today.AddDate(0, 0, -1))
	}
	e.mu.Unlock()
	return true
}

// refreshMeter reads the meter and maintains the energy-today baseline.
func (e *Engine) refreshMeter(ctx context.Context, sup *types.SupplyPoint) bool {
	m, err := e.portal.Meter(ctx, sup.CUPSID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to read meter", slog.Any("error", err))
		return false
	}
	e.mu.Lock()
	e.meter = m
	e.haveMeter = true
	if !e.haveBaseline {
		e.baseline = m.EnergyMeterKWH
		e.haveBaseline = true
	}
	e.energyToday = m.EnergyMeterKWH - e.baseline
	e.mu.Unlock()
	return true
}

// refreshBilling fetches prices once per civil day and recomputes the cost
// estimates for both cycles.
func (e *Engine) refreshBilling(ctx context.Context, sup *types.SupplyPoint, today time.Time) {
	dayKey := today.Format("2006-01-02")

	e.mu.RLock()
	fetched := e.priceDay == dayKey
	e.mu.RUnlock()

	if !fetched {
		prices, err := e.prices.PricesForRange(ctx, today.AddDate(0, 0, -priceLookbackDays), today)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to fetch day-ahead prices", slog.Any("error", err))
		} else {
			idx := priceIndex(prices)
			var dayPrices []types.Price
			for _, p := range prices {
				if sameDay(p.TSStart.In(common.Madrid), today) {
					dayPrices = append(dayPrices, p)
				}
			}
			e.mu.Lock()
			e.priceIdx = idx
			e.dayPrices = dayPrices
			e.priceDay = dayKey
			e.mu.Unlock()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.priceIdx == nil || e.haveCycles == 0 {
		return
	}
	applyBilling(&e.currentEnergy, e.current, e.priceIdx, sup.PowerKWP1, sup.PowerKWP2, e.rates)
	applyBilling(&e.lastEnergy, e.last, e.priceIdx, sup.PowerKWP1, sup.PowerKWP2, e.rates)
}

// Snapshot returns a copy of the current derived state.
func (e *Engine) Snapshot() types.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := types.Snapshot{
		UpdatedAt:      e.updatedAt,
		Meter:          e.meter,
		Cycle:          e.currentEnergy,
		LastCycle:      e.lastEnergy,
		EnergyTodayKWH: round2(e.energyToday),
		Today:          e.today,
		Yesterday:      e.yesterday,
		Maximeter:      e.maximeter,
		Prices:         e.dayPrices,
	}
	if e.supply != nil {
		s.CUPS = e.supply.CUPS
	}
	return s
}

// ReconnectICP relays a breaker reconnect request for the resolved supply.
func (e *Engine) ReconnectICP(ctx context.Context) error {
	e.mu.RLock()
	sup := e.supply
	e.mu.RUnlock()
	if sup == nil {
		return fmt.Errorf("no supply point resolved yet")
	}
	return e.portal.ReconnectICP(ctx, sup.CUPSID)
}
