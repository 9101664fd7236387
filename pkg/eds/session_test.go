package eds

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/edsmon/edsmon/pkg/storage"
	"github.com/edsmon/edsmon/pkg/storage/storagemock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoginToleratesStorageFailures(t *testing.T) {
	ctx := context.Background()
	portal := newFakePortal(t)

	boom := errors.New("backend unavailable")
	ms := &storagemock.MockStore{}
	ms.On("LoadAccess", mock.Anything, "user@example.com").Return(storage.Access{}, boom)
	ms.On("SaveAccess", mock.Anything, "user@example.com", mock.Anything).Return(boom)
	ms.On("SaveCookies", mock.Anything, "user@example.com", mock.Anything).Return(boom)

	c := newTestConnector(t, portal, ms)
	require.NoError(t, c.Login(ctx))
	assert.Equal(t, testToken, c.sess.token)
	assert.Equal(t, 1, portal.loginPageGets)
	ms.AssertExpectations(t)
}

func TestRestoreWithoutSavedCookies(t *testing.T) {
	portal := newFakePortal(t)

	ms := &storagemock.MockStore{}
	ms.On("LoadAccess", mock.Anything, "user@example.com").Return(storage.Access{
		Token:      "SAVED",
		Identities: map[string]string{"account_id": "ACC9", "name": "Jane Doe"},
		Context:    json.RawMessage(`{"mode":"PROD"}`),
		SavedAt:    time.Now(),
	}, nil)
	ms.On("LoadCookies", mock.Anything, "user@example.com").Return(nil, storage.ErrNotFound)

	c := newTestConnector(t, portal, ms)
	require.NoError(t, c.Login(context.Background()))
	assert.Equal(t, 0, portal.loginPageGets, "a fresh saved session needs no handshake")
	assert.Equal(t, "SAVED", c.sess.token)
	assert.Equal(t, "ACC9", c.sess.accountID())
	ms.AssertExpectations(t)
}
