package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressApi(t *testing.T) {
	app := setup(t)
	stu := app.token(t, "stu-1")

	t.Run("start step", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/progress/modules/m1/steps/s1/start", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "in_progress", data["status"])
		assert.Equal(t, "s1", data["step_id"])
		assert.Nil(t, data["completed_at"])
		mp := data["module_progress"].(map[string]interface{})
		assert.EqualValues(t, 1, mp["in_progress_steps"])
		assert.Equal(t, true, mp["is_started"])
	})

	t.Run("complete step with notes", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/progress/modules/m1/steps/s1/complete", stu, []byte(`{"notes": " done "}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "completed", data["status"])
		assert.Equal(t, "done", data["notes"])
		assert.NotNil(t, data["completed_at"])
		mp := data["module_progress"].(map[string]interface{})
		assert.EqualValues(t, 1, mp["completed_steps"])
		assert.EqualValues(t, 0, mp["in_progress_steps"])
		assert.EqualValues(t, 50, mp["completion_percentage"])
	})

	t.Run("complete without body", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/progress/modules/m1/steps/s2/complete", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, decode(t, rec)["module_progress"].(map[string]interface{})["is_completed"])
	})

	t.Run("module progress", func(t *testing.T) {
		tt := httpTest{
			path: "/v1/progress/modules/m1", token: stu, wantCode: http.StatusOK,
			wantData: []byte(`{
				"module_id": "m1", "total_steps": 2, "completed_steps": 2, "in_progress_steps": 0,
				"completion_percentage": 100, "is_completed": true, "is_started": true
			}`),
		}
		checkCodeAndData(t, tt, app.do(http.MethodGet, tt.path, tt.token))
	})

	t.Run("next step", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/progress/next", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "m2", data["module"].(map[string]interface{})["id"])
		assert.Equal(t, "s3", data["step"].(map[string]interface{})["id"])
	})

	t.Run("export", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/progress", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "stu-1", data["user_id"])
		summary := data["summary"].(map[string]interface{})
		assert.EqualValues(t, 1, summary["completed_modules"])
		assert.EqualValues(t, 2, summary["total_modules"])
		assert.Len(t, data["modules"], 2)
	})

	t.Run("next step when done is null", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/progress/modules/m2/steps/s3/complete", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = app.do(http.MethodGet, "/v1/progress/next", stu)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "null", string(trimNewline(rec.Body.Bytes())))
	})
}

func TestProgressApi_notFound(t *testing.T) {
	app := setup(t)

	tests := []httpTest{
		{
			name: "unknown module", method: http.MethodPost, path: "/v1/progress/modules/nope/steps/s1/start",
			token: app.token(t, "stu-1"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "module not found"}),
		},
		{
			name: "step of another module", method: http.MethodPost, path: "/v1/progress/modules/m2/steps/s1/start",
			token: app.token(t, "stu-1"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "step not found"}),
		},
		{
			name: "not enrolled", method: http.MethodPost, path: "/v1/progress/modules/py1/steps/py1-1/complete",
			token: app.token(t, "stu-1"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "module not found"}),
		},
		{
			name: "inactive enrollment", method: http.MethodPost, path: "/v1/progress/modules/m1/steps/s1/start",
			token: app.token(t, "stu-3"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "module not found"}),
		},
		{
			name: "module outside the session", path: "/v1/progress/modules/py1",
			token: app.token(t, "stu-1"), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "module not found"}),
		},
	}
	runHTTPTests(t, app, tests)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
