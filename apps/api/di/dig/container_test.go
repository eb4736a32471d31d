package dig_container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	schedsvc "github.com/trezcool/darasa/services/scheduler"
)

func TestNew(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_DATABASE_ENGINE", "memory")
	t.Setenv("TEST_SERVER_DISABLEREQLOGS", "true")

	c := New()
	err := c.Invoke(func(server *echoapi.Server, scheduler *schedsvc.Scheduler) {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotNil(t, scheduler)
	})
	require.NoError(t, err)
}
