package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliproom/cliproom/dispatch"
	"github.com/cliproom/cliproom/services/processor"
	"github.com/cliproom/cliproom/session"
	"github.com/cliproom/cliproom/utils/testutils"
)

func newTestAPI(t *testing.T) (*testutils.FakeProcessor, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := testutils.NewFakeProcessor(t)
	client := processor.NewClient(fake.URL())
	dispatcher := dispatch.NewDispatcher(client, 0)
	sessions := session.NewManager(dispatcher, t.TempDir(), 0, 20)
	t.Cleanup(sessions.Shutdown)

	srv := &server{sessions: sessions, client: client}
	router := gin.New()
	srv.registerRoutes(router)
	return fake, router
}

func doRequest(t *testing.T, router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func multipartRequest(t *testing.T, path, field string, names ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(testutils.Payload(64))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) session.State {
	t.Helper()
	var state session.State
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	return state
}

func createTestSession(t *testing.T, router *gin.Engine) string {
	t.Helper()
	rr := doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decodeState(t, rr).ID
	require.NotEmpty(t, id)
	return id
}

func TestCreateAndFetchSession(t *testing.T) {
	_, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	state := decodeState(t, rr)
	assert.Equal(t, id, state.ID)
	assert.Equal(t, session.ModeSingle, state.Mode)
	assert.Nil(t, state.Clip)
	assert.Empty(t, state.MergeList)
	assert.False(t, state.Operation.Busy)

	rr = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/sessions/unknown", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "session not found")
}

func TestUploadTrimDispatchRoundTrip(t *testing.T) {
	fake, router := newTestAPI(t)
	fake.SetFileID("trimmed_clip.mp4")
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/clip", "video", "clip.mp4"))
	require.Equal(t, http.StatusOK, rr.Code)
	state := decodeState(t, rr)
	require.NotNil(t, state.Clip)
	assert.Equal(t, "clip.mp4", state.Clip.Name)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/clip/duration", gin.H{"duration": 10}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/trim/start", gin.H{"value": 2}))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/trim/end", gin.H{"value": 4.5}))
	require.Equal(t, http.StatusOK, rr.Code)

	var window session.Window
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &window))
	assert.Equal(t, session.Window{Start: 2, End: 4.5, Duration: 10}, window)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/trim?wait=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	state = decodeState(t, rr)
	assert.False(t, state.Operation.Busy)
	require.NotNil(t, state.Operation.Result)
	assert.Equal(t, "trimmed_clip.mp4", state.Operation.Result.FileID)
	assert.Equal(t, "/api/results/trimmed_clip.mp4", state.Operation.Result.RetrievalRef)

	last := fake.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "/trim", last.Path)
	assert.Equal(t, "2", last.Form["startTime"])
	assert.Equal(t, "4.5", last.Form["endTime"])
	assert.Equal(t, "clip.mp4", last.Files["video"])
}

func TestUploadValidation(t *testing.T) {
	fake, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/clip", "video", "notes.txt"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid type")
	assert.Zero(t, fake.HitCount())

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/clip", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no video file provided")
}

func TestDispatchNeedsClip(t *testing.T) {
	fake, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/convert", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "no clip is loaded")
	assert.Zero(t, fake.HitCount())
}

func TestDispatchConflict(t *testing.T) {
	fake, router := newTestAPI(t)
	fake.SetDelay(150 * time.Millisecond)
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/clip", "video", "clip.mp4"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/convert", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, decodeState(t, rr).Operation.Busy)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/convert", nil))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already running")
}

func TestMergeEndpoints(t *testing.T) {
	fake, router := newTestAPI(t)
	fake.SetFileID("merged.mp4")
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/merge/clips", "videos", "a.mp4", "b.mp4", "notes.txt"))
	require.Equal(t, http.StatusOK, rr.Code)
	var added struct {
		Accepted int `json:"accepted"`
		Rejected []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"rejected"`
		State session.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &added))
	assert.Equal(t, 2, added.Accepted)
	require.Len(t, added.Rejected, 1)
	assert.Equal(t, "notes.txt", added.Rejected[0].Name)
	assert.Contains(t, added.Rejected[0].Error, "invalid type")
	require.Len(t, added.State.MergeList, 2)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/merge/clips/1/move", gin.H{"direction": "up"}))
	require.Equal(t, http.StatusOK, rr.Code)
	var moved struct {
		Moved bool          `json:"moved"`
		State session.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &moved))
	assert.True(t, moved.Moved)
	assert.Equal(t, "b.mp4", moved.State.MergeList[0].Name)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/mode", gin.H{"mode": "merge"}))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/merge?wait=true", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	state := decodeState(t, rr)
	require.NotNil(t, state.Operation.Result)
	assert.Equal(t, "merged.mp4", state.Operation.Result.FileID)
	assert.Equal(t, dispatch.KindMerge, state.Operation.Result.Kind)

	last := fake.LastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "/merge", last.Path)
	assert.Equal(t, "2", last.Form["videoCount"])
	assert.Equal(t, "b.mp4", last.Files["video0"])
	assert.Equal(t, "a.mp4", last.Files["video1"])
}

func TestMergeNeedsEnoughClips(t *testing.T) {
	fake, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/merge/clips", "videos", "only.mp4"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/dispatch/merge", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "at least two clips")
	assert.Zero(t, fake.HitCount())
}

func TestMergeListIndexHandling(t *testing.T) {
	_, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, multipartRequest(t, "/api/sessions/"+id+"/merge/clips", "videos", "a.mp4", "b.mp4"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodDelete, "/api/sessions/"+id+"/merge/clips/5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var removal struct {
		Removed bool          `json:"removed"`
		State   session.State `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &removal))
	assert.False(t, removal.Removed)
	assert.Len(t, removal.State.MergeList, 2)

	rr = doRequest(t, router, jsonRequest(t, http.MethodDelete, "/api/sessions/"+id+"/merge/clips/abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPost, "/api/sessions/"+id+"/merge/clips/0/move", gin.H{"direction": "sideways"}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "up or down")
}

func TestModeEndpoint(t *testing.T) {
	_, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/mode", gin.H{"mode": "merge"}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, session.ModeMerge, decodeState(t, rr).Mode)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/mode", gin.H{"mode": "paint"}))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, router, jsonRequest(t, http.MethodPut, "/api/sessions/"+id+"/mode", gin.H{}))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "mode is required")
}

func TestResultProxyStreams(t *testing.T) {
	fake, router := newTestAPI(t)
	fake.AddRendition("merged_123.mp4", testutils.Payload(128))

	rr := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/results/merged_123.mp4", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testutils.Payload(128), rr.Body.Bytes())
	assert.Equal(t, "video/mp4", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "merged_123.mp4")

	rr = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/results/nope.mp4", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "File not found")
}

func TestHealthEndpoint(t *testing.T) {
	_, router := newTestAPI(t)

	rr := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.Contains(t, rr.Body.String(), `"processor":"healthy"`)
}

func TestCloseSessionEndpoint(t *testing.T) {
	_, router := newTestAPI(t)
	id := createTestSession(t, router)

	rr := doRequest(t, router, jsonRequest(t, http.MethodDelete, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}
