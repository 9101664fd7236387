package eds

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/edsmon/edsmon/pkg/types"
)

// The action ids, descriptors and calling descriptors below are opaque
// portal-internal identifiers captured from the web client. They carry no
// semantic meaning here; changing them breaks the calls.

// accountID returns the logged-in account identifier, logging in first when
// needed.
func (c *Connector) accountID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.login(ctx); err != nil {
		return "", err
	}
	return c.sess.accountID(), nil
}

type rawContract struct {
	ID             string  `json:"Id"`
	VersionEndDate string  `json:"Version_end_date__c"`
	RequestedPower float64 `json:"Requested_power_1__c"`
	CUPS           struct {
		Name string `json:"Name"`
		ID   string `json:"Id"`
	} `json:"CUPs__r"`
}

// SupplyPoints lists the account's supply points. The portal returns a
// contract superset plus an explicit allow-list of ids; only their
// intersection is valid.
func (c *Connector) SupplyPoints(ctx context.Context) ([]types.SupplyPoint, error) {
	accountID, err := c.accountID(ctx)
	if err != nil {
		return nil, err
	}
	ret, err := c.execute(ctx, "other.WP_Measure_v3_CTRL.getListCups=1", action{
		ID:                "1086;a",
		Descriptor:        "apex://WP_Measure_v3_CTRL/ACTION$getListCups",
		CallingDescriptor: "markup://c:WP_Measure_List_v4",
		Params:            map[string]any{"sIdentificador": accountID},
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data struct {
			Contracts []rawContract `json:"lstCups"`
			ValidIDs  []string      `json:"lstIds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return nil, &ProtocolError{Reason: "bad supply list: " + err.Error()}
	}

	valid := make(map[string]bool, len(payload.Data.ValidIDs))
	for _, id := range payload.Data.ValidIDs {
		valid[id] = true
	}

	var points []types.SupplyPoint
	for _, cont := range payload.Data.Contracts {
		if !valid[cont.ID] {
			continue
		}
		points = append(points, types.SupplyPoint{
			CUPS:       cont.CUPS.Name,
			CUPSID:     cont.CUPS.ID,
			ContractID: cont.ID,
			Active:     cont.VersionEndDate == "",
			PowerKW:    cont.RequestedPower,
			// per-period powers default to the generic limit until the
			// ATR detail resolves them
			PowerKWP1: cont.RequestedPower,
			PowerKWP2: cont.RequestedPower,
		})
	}
	return points, nil
}

// SupplyATRs lists the access contracts (ATR) of a supply point.
func (c *Connector) SupplyATRs(ctx context.Context, cupsID string) ([]types.ATRContract, error) {
	accountID, err := c.accountID(ctx)
	if err != nil {
		return nil, err
	}
	ret, err := c.execute(ctx, "other.WP_CUPSDetail_CTRL.getCUPSDetail=1", action{
		ID:                "490;a",
		Descriptor:        "apex://WP_CUPSDetail_CTRL/ACTION$getCUPSDetail",
		CallingDescriptor: "markup://c:WP_cupsDetail",
		Params:            map[string]any{"visSelected": accountID, "cupsId": cupsID},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		ATRs []struct {
			ID     string `json:"Id"`
			Status string `json:"Status"`
		} `json:"lstATR"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return nil, &ProtocolError{Reason: "bad cups detail: " + err.Error()}
	}
	atrs := make([]types.ATRContract, 0, len(payload.ATRs))
	for _, a := range payload.ATRs {
		atrs = append(atrs, types.ATRContract{ID: a.ID, Status: a.Status})
	}
	return atrs, nil
}

// ATRDetail fetches the display rows of one access contract. Per-period
// contracted powers are read off these rows.
func (c *Connector) ATRDetail(ctx context.Context, atrID string) ([]types.DetailField, error) {
	ret, err := c.execute(ctx, "other.WP_ContractATRDetail_CTRL.getATRDetail=1", action{
		ID:                "62;a",
		Descriptor:        "apex://WP_ContractATRDetail_CTRL/ACTION$getATRDetail",
		CallingDescriptor: "markup://c:WP_SuppliesATRDetailForm",
		Params:            map[string]any{"atrId": atrID},
	})
	if err != nil {
		return nil, err
	}
	var fields []struct {
		Title string `json:"title"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(ret, &fields); err != nil {
		return nil, &ProtocolError{Reason: "bad atr detail: " + err.Error()}
	}
	out := make([]types.DetailField, 0, len(fields))
	for _, f := range fields {
		out = append(out, types.DetailField{Title: f.Title, Value: f.Value})
	}
	return out, nil
}

// Meter reads the smart meter through the ICP monitor.
func (c *Connector) Meter(ctx context.Context, cupsID string) (types.MeterSnapshot, error) {
	ret, err := c.execute(ctx, "other.WP_ContadorICP_CTRL.consultarContador=1", action{
		ID:                "522;a",
		Descriptor:        "apex://WP_ContadorICP_CTRL/ACTION$consultarContador",
		CallingDescriptor: "markup://c:WP_Reconnect_Detail",
		Params:            map[string]any{"cupsId": cupsID},
	})
	if err != nil {
		return types.MeterSnapshot{}, err
	}
	var payload struct {
		Data struct {
			PowerDemand     float64 `json:"potenciaActual"`
			ContractedPower float64 `json:"potenciaContratada"`
			ICPStatus       string  `json:"estadoICP"`
			Totalizer       string  `json:"totalizador"`
			Percent         string  `json:"percent"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return types.MeterSnapshot{}, &ProtocolError{Reason: "bad meter payload: " + err.Error()}
	}
	total, err := parseTotalizer(payload.Data.Totalizer)
	if err != nil {
		return types.MeterSnapshot{}, &ProtocolError{Reason: err.Error()}
	}
	load, err := parsePercent(payload.Data.Percent)
	if err != nil {
		return types.MeterSnapshot{}, &ProtocolError{Reason: err.Error()}
	}
	return types.MeterSnapshot{
		ReadAt:            c.now(),
		EnergyMeterKWH:    total,
		ICPStatus:         payload.Data.ICPStatus,
		LoadPercent:       load,
		PowerDemandKW:     payload.Data.PowerDemand,
		ContractedPowerKW: payload.Data.ContractedPower,
	}, nil
}

// CUPSStatus fetches the raw status blob of a supply point. The shape varies
// by contract type, so it is returned undecoded.
func (c *Connector) CUPSStatus(ctx context.Context, cupsID string) (json.RawMessage, error) {
	return c.execute(ctx, "other.WP_CUPSDetail_CTRL.getStatus=1", action{
		ID:                "629;a",
		Descriptor:        "apex://WP_CUPSDetail_CTRL/ACTION$getStatus",
		CallingDescriptor: "markup://c:WP_cupsDetail",
		Params:            map[string]any{"cupsId": cupsID},
	})
}

// CycleList fetches the billing cycles of a contract, most recent first.
func (c *Connector) CycleList(ctx context.Context, contractID string) ([]types.CycleRef, error) {
	ret, err := c.execute(ctx, "other.WP_Measure_v3_CTRL.getInfo=1", action{
		ID:                "1190;a",
		Descriptor:        "apex://WP_Measure_v3_CTRL/ACTION$getInfo",
		CallingDescriptor: "markup://c:WP_Measure_Detail_v4",
		Params:            map[string]any{"contId": contractID},
		LongRunning:       true,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Cycles []struct {
				Label string `json:"label"`
				Value string `json:"value"`
			} `json:"lstCycles"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return nil, &ProtocolError{Reason: "bad cycle list: " + err.Error()}
	}
	refs := make([]types.CycleRef, 0, len(payload.Data.Cycles))
	for _, cyc := range payload.Data.Cycles {
		start, end, err := parseCycleLabel(cyc.Label)
		if err != nil {
			return nil, &ProtocolError{Reason: err.Error()}
		}
		refs = append(refs, types.CycleRef{
			Label: cyc.Label,
			Value: cyc.Value,
			Start: start,
			End:   end,
		})
	}
	return refs, nil
}

type rawCurvePoint struct {
	Hour  string  `json:"hour"`
	Value float64 `json:"value"`
	Real  bool    `json:"real"`
}

type rawCurve struct {
	StartDt     string                     `json:"startDt"`
	EndDt       string                     `json:"endDt"`
	TotalValue  string                     `json:"totalValue"`
	HourlyByDay map[string][]rawCurvePoint `json:"mapHourlyPoints"`
}

func (c *Connector) decodeCurve(ret json.RawMessage) (types.Curve, error) {
	var payload struct {
		Data rawCurve `json:"data"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return types.Curve{}, &ProtocolError{Reason: "bad curve payload: " + err.Error()}
	}
	raw := payload.Data

	curve := types.Curve{}
	var err error
	if curve.Start, err = parseCycleInstant(raw.StartDt); err != nil {
		return types.Curve{}, &ProtocolError{Reason: err.Error()}
	}
	if curve.End, err = parseCycleInstant(raw.EndDt); err != nil {
		return types.Curve{}, &ProtocolError{Reason: err.Error()}
	}
	if raw.TotalValue != "" {
		if curve.TotalKWH, err = parseCommaFloat(raw.TotalValue); err != nil {
			return types.Curve{}, &ProtocolError{Reason: err.Error()}
		}
	}

	for day, points := range raw.HourlyByDay {
		date, err := parseCurveDate(day)
		if err != nil {
			return types.Curve{}, &ProtocolError{Reason: err.Error()}
		}
		for _, p := range points {
			hour, err := parseHourLabel(p.Hour)
			if err != nil {
				return types.Curve{}, &ProtocolError{Reason: err.Error()}
			}
			curve.Points = append(curve.Points, types.CurvePoint{
				Date:     date,
				Hour:     hour,
				ValueKWH: p.Value,
				Real:     p.Real,
			})
		}
	}
	sort.Slice(curve.Points, func(i, j int) bool {
		if !curve.Points[i].Date.Equal(curve.Points[j].Date) {
			return curve.Points[i].Date.Before(curve.Points[j].Date)
		}
		return curve.Points[i].Hour < curve.Points[j].Hour
	})
	return curve, nil
}

// CycleCurve fetches the hourly consumption curve of a closed billing cycle.
func (c *Connector) CycleCurve(ctx context.Context, contractID string, ref types.CycleRef) (types.Curve, error) {
	ret, err := c.execute(ctx, "other.WP_Measure_v3_CTRL.getChartPoints=1", action{
		ID:                "1295;a",
		Descriptor:        "apex://WP_Measure_v3_CTRL/ACTION$getChartPoints",
		CallingDescriptor: "markup://c:WP_Measure_Detail_v4",
		Params:            map[string]any{"cupsId": contractID, "dateRange": ref.Label, "cfactura": ref.Value},
		LongRunning:       true,
	})
	if err != nil {
		return types.Curve{}, err
	}
	return c.decodeCurve(ret)
}

// rangeCurve fetches a curve through the by-range chart endpoint. rangeType
// selects the portal's aggregation: 1 day, 2 week, 3 month, 4 custom.
func (c *Connector) rangeCurve(ctx context.Context, contractID, rangeType, startDate, endDate, callingDescriptor string) (types.Curve, error) {
	params := map[string]any{
		"contId":    contractID,
		"type":      rangeType,
		"startDate": startDate,
	}
	if endDate != "" {
		params["endDate"] = endDate
	}
	ret, err := c.execute(ctx, "other.WP_Measure_v3_CTRL.getChartPointsByRange=1", action{
		ID:                "981;a",
		Descriptor:        "apex://WP_Measure_v3_CTRL/ACTION$getChartPointsByRange",
		CallingDescriptor: callingDescriptor,
		Params:            params,
		LongRunning:       true,
	})
	if err != nil {
		return types.Curve{}, err
	}
	return c.decodeCurve(ret)
}

// CustomCurve fetches the hourly curve for an arbitrary civil date range,
// inclusive on both ends.
func (c *Connector) CustomCurve(ctx context.Context, contractID string, start, end time.Time) (types.Curve, error) {
	return c.rangeCurve(ctx, contractID, "4",
		start.Format("2006-01-02"), end.Format("2006-01-02"),
		"markup://c:WP_Measure_Detail_Filter_Advanced_v3")
}

// DayCurve fetches the hourly curve for a single civil day.
func (c *Connector) DayCurve(ctx context.Context, contractID string, day time.Time) (types.Curve, error) {
	return c.rangeCurve(ctx, contractID, "1",
		day.Format("2006-01-02"), "",
		"markup://c:WP_Measure_Detail_Filter_By_Dates_v3")
}

// WeekCurve fetches the curve for the week starting at the given day.
func (c *Connector) WeekCurve(ctx context.Context, contractID string, start time.Time) (types.Curve, error) {
	return c.rangeCurve(ctx, contractID, "2",
		start.Format("2006-01-02"), "",
		"markup://c:WP_Measure_Detail_Filter_By_Dates_v3")
}

// MonthCurve fetches the curve for the month starting at the given day.
func (c *Connector) MonthCurve(ctx context.Context, contractID string, start time.Time) (types.Curve, error) {
	return c.rangeCurve(ctx, contractID, "3",
		start.Format("2006-01-02"), "",
		"markup://c:WP_Measure_Detail_Filter_By_Dates_v3")
}

// Maximeter fetches the monthly peak-demand histogram between two months.
func (c *Connector) Maximeter(ctx context.Context, cupsID string, start, end time.Time) ([]types.MaximeterSample, error) {
	accountID, err := c.accountID(ctx)
	if err != nil {
		return nil, err
	}
	ret, err := c.execute(ctx, "other.WP_MaximeterHistogram_CTRL.getHistogramPoints=1", action{
		ID:                "688;a",
		Descriptor:        "apex://WP_MaximeterHistogram_CTRL/ACTION$getHistogramPoints",
		CallingDescriptor: "markup://c:WP_MaximeterHistogramDetail",
		Params: map[string]any{
			"mapParams": map[string]any{
				"startDate":      start.Format("01/2006"),
				"endDate":        end.Format("01/2006"),
				"id":             cupsID,
				"sIdentificador": accountID,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data struct {
			Samples []struct {
				Date  string  `json:"date"`
				Hour  string  `json:"hour"`
				Value float64 `json:"value"`
				Valid bool    `json:"valid"`
			} `json:"lstData"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ret, &payload); err != nil {
		return nil, &ProtocolError{Reason: "bad maximeter payload: " + err.Error()}
	}
	samples := make([]types.MaximeterSample, 0, len(payload.Data.Samples))
	for _, s := range payload.Data.Samples {
		sample := types.MaximeterSample{ValueKW: s.Value, Valid: s.Valid}
		if s.Date != "" {
			ts, err := parseMaximeterTS(s.Date, s.Hour)
			if err == nil {
				sample.TS = ts
			}
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// ReconnectICP asks the portal to re-close the supply breaker after a
// power-limit trip. The portal needs the request and a confirmation call;
// success is best-effort with no verification read-back.
func (c *Connector) ReconnectICP(ctx context.Context, cupsID string) error {
	_, err := c.execute(ctx, "other.WP_ContadorICP_F2_CTRL.reconectarICP=1", action{
		ID:                "261;a",
		Descriptor:        "apex://WP_ContadorICP_F2_CTRL/ACTION$reconectarICP",
		CallingDescriptor: "markup://c:WP_Reconnect_Detail_F2",
		Params:            map[string]any{"cupsId": cupsID},
	})
	if err != nil {
		return err
	}
	_, err = c.execute(ctx, "other.WP_ContadorICP_CTRL.goToReconectarICP=1", action{
		ID:                "287;a",
		Descriptor:        "apex://WP_ContadorICP_CTRL/ACTION$goToReconectarICP",
		CallingDescriptor: "markup://c:WP_Reconnect_Modal",
		Params:            map[string]any{"cupsId": cupsID},
	})
	return err
}
