package common

import "time"

// Madrid is the civil time zone of the Spanish mainland grid. Hourly data
// from the portal and the PVPC feed is labeled in this zone.
var Madrid *time.Location

func init() {
	var err error
	Madrid, err = time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(err)
	}
}
