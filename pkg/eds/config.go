package eds

import (
	"fmt"

	"github.com/edsmon/edsmon/pkg/storage"
	"github.com/levenlabs/go-lflag"
)

// Configured sets up the portal connector based on flags.
func Configured(store storage.Store) *Connector {
	username := lflag.String("eds-username", "", "Portal account username (email)")
	password := lflag.String("eds-password", "", "Portal account password")
	baseURL := lflag.String("eds-base-url", defaultBaseURL, "Portal origin, override for testing")
	freshness := lflag.Duration("eds-token-freshness", defaultFreshness, "How long a login token is trusted before re-login")

	c := &Connector{}

	lflag.Do(func() {
		err := c.init(Opts{
			Username:  *username,
			Password:  *password,
			BaseURL:   *baseURL,
			Freshness: *freshness,
			Store:     store,
		})
		if err != nil {
			panic(fmt.Sprintf("connector init failed: %v", err))
		}
	})

	return c
}
