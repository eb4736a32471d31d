package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
)

func TestSubmissionApi_submit(t *testing.T) {
	app := setup(t)
	stu := app.token(t, "stu-1")
	path := "/v1/assignments/a-ai/submissions"

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "deliverable required", method: http.MethodPost, path: path, token: stu, body: []byte(`{"notes": "hi"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{
				"file_ref": "file_ref is required when submission_url is not provided",
				"submission_url": "submission_url is required when file_ref is not provided"
			}`),
		},
		{
			name: "invalid url", method: http.MethodPost, path: path, token: stu, body: []byte(`{"submission_url": "not a url"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"submission_url": "enter a valid URL"}`),
		},
		{
			name: "unknown assignment", method: http.MethodPost, path: "/v1/assignments/nope/submissions", token: stu,
			body:     []byte(`{"submission_url": "https://example.com/form"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
		{
			name: "not enrolled", method: http.MethodPost, path: path, token: app.token(t, "stu-3"),
			body:     []byte(`{"submission_url": "https://example.com/form"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "assignment not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("auto graded", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, stu, []byte(`{"submission_url": "https://example.com/form", "notes": "see README"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "graded", data["status"])
		assert.Equal(t, "url", data["submission_type"])
		assert.Equal(t, "stu-1", data["student_id"])
		assert.NotContains(t, data, "grading_error")
		assert.Equal(t, "see README", app.oracle.LastContext().StudentNotes)
	})

	t.Run("graded submissions cannot be replaced", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, stu, []byte(`{"file_ref": "https://files.darasa.test/form.zip"}`))
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	})
}

func TestSubmissionApi_gradingFailure(t *testing.T) {
	app := setup(t)
	app.oracle.Err = errOracleStatus()
	stu := app.token(t, "stu-2")

	rec := app.do(http.MethodPost, "/v1/assignments/a-ai/submissions", stu, []byte(`{"file_ref": "https://files.darasa.test/form.png"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)
	assert.Equal(t, "pending", data["status"])
	assert.Equal(t, "file", data["submission_type"])
	assert.Equal(t, "status", data["grading_error"])
	id := data["id"].(string)

	t.Run("retry fails again", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/submissions/"+id+"/grading", stu)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "status", decode(t, rec)["kind"])
	})

	t.Run("others cannot retry", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/submissions/"+id+"/grading", app.token(t, "stu-1"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("retry succeeds", func(t *testing.T) {
		app.oracle.Err = nil
		rec := app.do(http.MethodPost, "/v1/submissions/"+id+"/grading", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "graded", decode(t, rec)["status"])
	})

	t.Run("graded is returned as is", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/submissions/"+id+"/grading", stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "graded", decode(t, rec)["status"])
		assert.Equal(t, 3, app.oracle.Calls())
	})
}

func TestSubmissionApi_manualGrading(t *testing.T) {
	app := setup(t)
	stu := app.token(t, "stu-1")
	trainer := app.token(t, "trainer-1", echoapi.RoleTrainer)

	rec := app.do(http.MethodPost, "/v1/assignments/a-manual/submissions", stu, []byte(`{"submission_url": "https://example.com/page"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"].(string)
	assert.Equal(t, 0, app.oracle.Calls())

	grades := "/v1/submissions/" + id + "/grades"
	regrades := "/v1/submissions/" + id + "/regrades"

	tests := []httpTest{
		{
			name: "trainer required", method: http.MethodPost, path: grades, token: stu,
			body: []byte(`{"score": 5, "feedback": "Mine"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "feedback required", method: http.MethodPost, path: grades, token: trainer,
			body: []byte(`{"score": 5}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"feedback": "this field is required"}`),
		},
		{
			name: "score out of range", method: http.MethodPost, path: grades, token: trainer,
			body: []byte(`{"score": 6, "feedback": "Great"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "regrade requires a graded submission", method: http.MethodPost, path: regrades, token: trainer,
			body: []byte(`{"score": 3, "feedback": "Hmm"}`), wantCode: http.StatusConflict,
		},
		{
			name: "unknown submission", method: http.MethodPost, path: "/v1/submissions/nope/grades", token: trainer,
			body:     []byte(`{"score": 3, "feedback": "Hmm"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "submission not found"}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("graded", func(t *testing.T) {
		rec := app.do(http.MethodPost, grades, trainer, []byte(`{"score": 5, "feedback": "Great", "strengths": "Layout"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		data := decode(t, rec)
		assert.Equal(t, "graded", data["submission"].(map[string]interface{})["status"])
		grade := data["grade"].(map[string]interface{})
		assert.EqualValues(t, 5, grade["score"])
		assert.Equal(t, "manual", grade["grader_type"])
		assert.Equal(t, "trainer-1", grade["graded_by"])
	})

	t.Run("graded twice", func(t *testing.T) {
		rec := app.do(http.MethodPost, grades, trainer, []byte(`{"score": 4, "feedback": "Again"}`))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("regraded", func(t *testing.T) {
		rec := app.do(http.MethodPost, regrades, trainer, []byte(`{"score": 3, "feedback": "Second look"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.EqualValues(t, 3, decode(t, rec)["score"])
	})

	t.Run("owner sees grades newest first", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/submissions/"+id, stu)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		data := decode(t, rec)
		list := data["grades"].([]interface{})
		require.Len(t, list, 2)
		assert.Equal(t, "Second look", list[0].(map[string]interface{})["feedback"])
		assert.Equal(t, "Great", list[1].(map[string]interface{})["feedback"])
	})

	t.Run("trainer sees it", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/submissions/"+id, trainer)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other students do not", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/submissions/"+id, app.token(t, "stu-2"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
