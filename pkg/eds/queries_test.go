package eds

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupplyPoints(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)

	var gotMessage string
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		require.Equal(t, "other.WP_Measure_v3_CTRL.getListCups=1", marker)
		gotMessage = form.Get("message")
		return "application/json", successEnvelope(`{"data":{
			"lstCups":[
				{"Id":"C1","CUPs__r":{"Name":"ES0031000000000001XX","Id":"CU1"},"Requested_power_1__c":4.6},
				{"Id":"C2","CUPs__r":{"Name":"ES0031000000000002XX","Id":"CU2"},"Requested_power_1__c":3.45,"Version_end_date__c":"2020-01-01"},
				{"Id":"C3","CUPs__r":{"Name":"ES0031000000000003XX","Id":"CU3"},"Requested_power_1__c":5.75}
			],
			"lstIds":["C1","C2"]
		}}`)
	}

	c := newTestConnector(t, portal, nil)
	points, err := c.SupplyPoints(ctx)
	require.NoError(t, err)

	// only the allow-listed intersection comes back
	require.Len(t, points, 2)
	assert.Equal(t, "ES0031000000000001XX", points[0].CUPS)
	assert.Equal(t, "CU1", points[0].CUPSID)
	assert.Equal(t, "C1", points[0].ContractID)
	assert.True(t, points[0].Active)
	assert.Equal(t, 4.6, points[0].PowerKW)
	assert.Equal(t, 4.6, points[0].PowerKWP1)
	assert.Equal(t, 4.6, points[0].PowerKWP2)
	assert.False(t, points[1].Active)

	assert.Contains(t, gotMessage, testAccountID)
}

func TestCycleList(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		return "application/json", successEnvelope(`{"data":{"lstCycles":[
			{"label":"01/05/2024 - 31/05/2024","value":"F-0524"},
			{"label":"01/04/2024 - 30/04/2024","value":"F-0424"}
		]}}`)
	}

	c := newTestConnector(t, portal, nil)
	refs, err := c.CycleList(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "01/05/2024 - 31/05/2024", refs[0].Label)
	assert.Equal(t, "F-0524", refs[0].Value)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, common.Madrid), refs[0].Start)
	assert.Equal(t, time.Date(2024, 5, 31, 0, 0, 0, 0, common.Madrid), refs[0].End)
}

func TestCustomCurve(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)

	var gotMessage string
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		gotMessage = form.Get("message")
		return "application/json", successEnvelope(`{"data":{
			"startDt":"2024-05-31T22:00:00.000Z",
			"endDt":"2024-06-14T22:00:00.000Z",
			"totalValue":"100,5",
			"mapHourlyPoints":{
				"02-06-2024":[{"hour":"00 - 01 h","value":0.4,"real":true}],
				"01-06-2024":[
					{"hour":"01 - 02 h","value":0.3,"real":true},
					{"hour":"00 - 01 h","value":0.5,"real":true}
				]
			}
		}}`)
	}

	c := newTestConnector(t, portal, nil)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, common.Madrid)
	end := time.Date(2024, 6, 15, 0, 0, 0, 0, common.Madrid)
	curve, err := c.CustomCurve(ctx, "C1", start, end)
	require.NoError(t, err)

	assert.Contains(t, gotMessage, `"startDate":"2024-06-01"`)
	assert.Contains(t, gotMessage, `"endDate":"2024-06-15"`)
	assert.Contains(t, gotMessage, `"type":"4"`)

	// boundary instants normalize to civil label dates
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, common.Madrid), curve.Start)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, common.Madrid), curve.End)
	assert.Equal(t, 100.5, curve.TotalKWH)

	// points come back sorted by date then hour
	require.Len(t, curve.Points, 3)
	assert.Equal(t, 0, curve.Points[0].Hour)
	assert.Equal(t, 0.5, curve.Points[0].ValueKWH)
	assert.Equal(t, 1, curve.Points[1].Hour)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, common.Madrid), curve.Points[2].Date)
}

func TestRangeCurveTypes(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)

	var gotMessages []string
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		require.Equal(t, "other.WP_Measure_v3_CTRL.getChartPointsByRange=1", marker)
		gotMessages = append(gotMessages, form.Get("message"))
		return "application/json", successEnvelope(`{"data":{
			"startDt":"2024-05-31T22:00:00.000Z",
			"endDt":"2024-06-01T22:00:00.000Z",
			"mapHourlyPoints":{}
		}}`)
	}

	c := newTestConnector(t, portal, nil)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, common.Madrid)

	_, err := c.DayCurve(ctx, "C1", day)
	require.NoError(t, err)
	_, err = c.WeekCurve(ctx, "C1", day)
	require.NoError(t, err)
	_, err = c.MonthCurve(ctx, "C1", day)
	require.NoError(t, err)

	// each aggregation maps to its portal range type; only the custom range
	// sends an end date
	require.Len(t, gotMessages, 3)
	assert.Contains(t, gotMessages[0], `"type":"1"`)
	assert.Contains(t, gotMessages[1], `"type":"2"`)
	assert.Contains(t, gotMessages[2], `"type":"3"`)
	for _, msg := range gotMessages {
		assert.Contains(t, msg, `"startDate":"2024-06-01"`)
		assert.NotContains(t, msg, "endDate")
	}
}

func TestCUPSStatus(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		require.Equal(t, "other.WP_CUPSDetail_CTRL.getStatus=1", marker)
		assert.Contains(t, form.Get("message"), "CU1")
		return "application/json", successEnvelope(`{"icpStatus":"connected","power":4.6}`)
	}

	c := newTestConnector(t, portal, nil)
	raw, err := c.CUPSStatus(ctx, "CU1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"icpStatus":"connected","power":4.6}`, string(raw))
}

func TestMaximeter(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		return "application/json", successEnvelope(`{"data":{"lstData":[
			{"date":"15-03-2024","hour":"10:20","value":3.1,"valid":true},
			{"date":"10-04-2024","hour":"21:00","value":9.9,"valid":true},
			{"date":"05-05-2024","hour":"08:15","value":5.0,"valid":false}
		]}}`)
	}

	c := newTestConnector(t, portal, nil)
	samples, err := c.Maximeter(ctx, "CU1",
		time.Date(2023, 5, 1, 0, 0, 0, 0, common.Madrid),
		time.Date(2024, 6, 1, 0, 0, 0, 0, common.Madrid))
	require.NoError(t, err)

	require.Len(t, samples, 3)
	assert.Equal(t, 3.1, samples[0].ValueKW)
	assert.True(t, samples[0].Valid)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 20, 0, 0, common.Madrid), samples[0].TS)
	assert.False(t, samples[2].Valid)
}

func TestReconnectICP(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)

	var markers []string
	portal.actionFn = func(marker string, form url.Values) (string, string) {
		markers = append(markers, marker)
		return "application/json", successEnvelope(`{}`)
	}

	c := newTestConnector(t, portal, nil)
	require.NoError(t, c.ReconnectICP(ctx, "CU1"))
	assert.Equal(t, []string{
		"other.WP_ContadorICP_F2_CTRL.reconectarICP=1",
		"other.WP_ContadorICP_CTRL.goToReconectarICP=1",
	}, markers)
}
