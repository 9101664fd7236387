package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store using Google Cloud Firestore. Each account
// gets a document under the "accounts" collection holding the session state.
type FirestoreStore struct {
	client          *firestore.Client
	projectID       string
	database        string
	credentialsFile string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreStore {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	credentials := lflag.String("firestore-credentials-file", "", "Path to a service account credentials JSON file")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreStore{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.credentialsFile = *credentials

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreStore) Validate() error {
	// Project ID may be empty when it can be inferred from the environment.
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreStore) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	var opts []option.ClientOption
	if f.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.credentialsFile))
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreStore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreStore) doc(account, name string) (*firestore.DocumentRef, error) {
	if account == "" {
		return nil, fmt.Errorf("account cannot be empty")
	}
	return f.client.Collection("accounts").Doc(sanitizeAccount(account)).Collection("session").Doc(name), nil
}

// loadJSON reads the "json" field of the named session document.
func (f *FirestoreStore) loadJSON(ctx context.Context, account, name string, v any) error {
	ref, err := f.doc(account, name)
	if err != nil {
		return err
	}
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to fetch %s doc: %w", name, err)
	}
	val, err := doc.DataAt("json")
	if err != nil {
		return fmt.Errorf("%s document missing 'json' field: %w", name, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		return fmt.Errorf("%s 'json' field is not a string", name)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s json: %w", name, err)
	}
	return nil
}

// saveJSON stores v as a JSON string in the "json" field for portability.
func (f *FirestoreStore) saveJSON(ctx context.Context, account, name string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	ref, err := f.doc(account, name)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]interface{}{
		"json":    string(b),
		"updated": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (f *FirestoreStore) LoadAccess(ctx context.Context, account string) (Access, error) {
	var a Access
	if err := f.loadJSON(ctx, account, "access", &a); err != nil {
		return Access{}, err
	}
	return a, nil
}

func (f *FirestoreStore) SaveAccess(ctx context.Context, account string, access Access) error {
	return f.saveJSON(ctx, account, "access", access)
}

func (f *FirestoreStore) LoadCookies(ctx context.Context, account string) ([]Cookie, error) {
	var c []Cookie
	if err := f.loadJSON(ctx, account, "cookies", &c); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *FirestoreStore) SaveCookies(ctx context.Context, account string, cookies []Cookie) error {
	return f.saveJSON(ctx, account, "cookies", cookies)
}
