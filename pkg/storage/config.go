package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// Discard is a Store that never persists anything. Every load returns
// ErrNotFound, forcing a fresh login each run.
type Discard struct{}

func (Discard) LoadAccess(ctx context.Context, account string) (Access, error) {
	return Access{}, ErrNotFound
}

func (Discard) SaveAccess(ctx context.Context, account string, access Access) error {
	return nil
}

func (Discard) LoadCookies(ctx context.Context, account string) ([]Cookie, error) {
	return nil, ErrNotFound
}

func (Discard) SaveCookies(ctx context.Context, account string, cookies []Cookie) error {
	return nil
}

func (Discard) Close() error { return nil }

// Configured sets up the Store provider based on flags.
func Configured() Store {
	provider := lflag.String("storage-provider", "file", "Session storage provider to use (available: file, firestore, none)")

	var p struct{ Store }

	f := configuredFile()
	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "file":
			if err := f.Validate(); err != nil {
				panic(fmt.Sprintf("file storage validation failed: %v", err))
			}
			p.Store = f
			if err := f.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("file storage init failed: %v", err))
			}
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Store = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "none":
			p.Store = Discard{}
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
