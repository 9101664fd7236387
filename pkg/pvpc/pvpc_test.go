package pvpc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edsmon/edsmon/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricesForDay(t *testing.T) {
	ctx := context.Background()

	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		assert.Equal(t, "es", r.URL.Query().Get("locale"))
		assert.Equal(t, "2024-06-15", r.URL.Query().Get("date"))
		fmt.Fprint(w, `{"PVPC":[
			{"Dia":"15/06/2024","Hora":"00-01","PCB":"118,46"},
			{"Dia":"15/06/2024","Hora":"01-02","PCB":"95,00"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	day := time.Date(2024, 6, 15, 0, 0, 0, 0, common.Madrid)

	prices, err := c.PricesForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, prices, 2)

	assert.Equal(t, day, prices[0].TSStart)
	assert.Equal(t, day.Add(time.Hour), prices[0].TSEnd)
	assert.InDelta(t, 0.11846, prices[0].EurosPerKWH, 1e-9)
	assert.Equal(t, day.Add(time.Hour), prices[1].TSStart)
	assert.InDelta(t, 0.095, prices[1].EurosPerKWH, 1e-9)

	// second call for the same day hits the cache
	_, err = c.PricesForDay(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 1, fetches)
}

func TestPricesForRangeSkipsMissingDays(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2024-06-16" {
			// tomorrow is not published yet
			w.WriteHeader(http.StatusNotFound)
			return
		}
		day := r.URL.Query().Get("date")
		fmt.Fprintf(w, `{"PVPC":[{"Dia":"%s/%s/%s","Hora":"00-01","PCB":"100,00"}]}`,
			day[8:10], day[5:7], day[0:4])
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, common.Madrid)

	prices, err := c.PricesForRange(ctx, start, start.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, start, prices[0].TSStart)
}

func TestPricesForRangeAllMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	start := time.Date(2024, 6, 15, 0, 0, 0, 0, common.Madrid)
	_, err := c.PricesForRange(context.Background(), start, start)
	assert.Error(t, err)
}
