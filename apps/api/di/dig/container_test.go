package dig_container

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/teachhub/backend/apps/api/echo"
	"github.com/teachhub/backend/core"
	"github.com/teachhub/backend/core/assistant"
)

func TestNew_memory(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Debug = true
	c := New(func() *core.Config { return conf })

	err := c.Invoke(func(db *sql.DB, archive assistant.Archive, server *echoapi.Server) {
		assert.Nil(t, db)
		assert.NotNil(t, archive)

		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	require.NoError(t, err)
}

func TestNewRepositories_unknownDriver(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage.Driver = "mongo"
	_, err := newRepositories(conf, nil)
	assert.EqualError(t, err, `unknown storage driver "mongo"`)
}
