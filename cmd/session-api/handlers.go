package main

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/ansel1/merry/v2"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/cliproom/cliproom/clips"
	"github.com/cliproom/cliproom/dispatch"
	"github.com/cliproom/cliproom/services/processor"
	"github.com/cliproom/cliproom/session"
)

type server struct {
	sessions *session.Manager
	client   *processor.Client
}

func (s *server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.DELETE("/sessions/:id", s.closeSession)
	api.PUT("/sessions/:id/mode", s.setMode)

	api.POST("/sessions/:id/clip", s.uploadClip)
	api.DELETE("/sessions/:id/clip", s.clearClip)
	api.PUT("/sessions/:id/clip/duration", s.setClipDuration)
	api.PUT("/sessions/:id/trim/start", s.setTrimStart)
	api.PUT("/sessions/:id/trim/end", s.setTrimEnd)

	api.POST("/sessions/:id/merge/clips", s.addMergeClips)
	api.DELETE("/sessions/:id/merge/clips/:index", s.removeMergeClip)
	api.POST("/sessions/:id/merge/clips/:index/move", s.moveMergeClip)

	api.POST("/sessions/:id/dispatch/convert", s.dispatchConvert)
	api.POST("/sessions/:id/dispatch/trim", s.dispatchTrim)
	api.POST("/sessions/:id/dispatch/merge", s.dispatchMerge)

	api.GET("/results/:fileID", s.fetchResult)
	r.GET("/healthz", s.healthz)
}

func userMessage(err error) string {
	if msg := merry.UserMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoClip),
		errors.Is(err, session.ErrNoTrimRange),
		errors.Is(err, session.ErrNotEnoughClips):
		return http.StatusUnprocessableEntity
	case errors.Is(err, clips.ErrInvalidType), errors.Is(err, clips.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, processor.ErrUnreachable):
		return http.StatusBadGateway
	}
	return merry.HTTPCode(err)
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
}

// lookup resolves the session named in the route, answering 404 itself when
// there is none.
func (s *server) lookup(c *gin.Context) *session.Session {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil
	}
	return sess
}

func (s *server) createSession(c *gin.Context) {
	sess := s.sessions.Create()
	c.JSON(http.StatusCreated, sess.State())
}

func (s *server) getSession(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

func (s *server) closeSession(c *gin.Context) {
	if err := s.sessions.Close(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) setMode(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	var input struct {
		Mode session.Mode `json:"mode"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err)})
		return
	}
	if input.Mode == (session.Mode{}) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}
	sess.SetMode(input.Mode)
	c.JSON(http.StatusOK, sess.State())
}

func (s *server) uploadClip(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no video file provided"})
		return
	}
	src, err := file.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer src.Close()

	_, err = sess.SelectClip(clips.Descriptor{
		Name: filepath.Base(file.Filename),
		Size: file.Size,
		Mime: file.Header.Get("Content-Type"),
	}, src)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

func (s *server) clearClip(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	sess.ClearClip()
	c.JSON(http.StatusOK, sess.State())
}

func (s *server) setClipDuration(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	var input struct {
		Duration float64 `json:"duration"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err)})
		return
	}
	window, err := sess.SetClipDuration(input.Duration)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, window)
}

func (s *server) setTrimStart(c *gin.Context) {
	s.setTrimBound(c, (*session.Session).SetTrimStart)
}

func (s *server) setTrimEnd(c *gin.Context) {
	s.setTrimBound(c, (*session.Session).SetTrimEnd)
}

func (s *server) setTrimBound(c *gin.Context, set func(*session.Session, float64) (session.Window, error)) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	var input struct {
		Value float64 `json:"value"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err)})
		return
	}
	window, err := set(sess, input.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, window)
}

func (s *server) addMergeClips(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err)})
		return
	}
	files := form.File["videos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no video files provided"})
		return
	}

	batch := make([]session.Candidate, 0, len(files))
	for _, file := range files {
		src, err := file.Open()
		if err != nil {
			fail(c, err)
			return
		}
		defer src.Close()
		batch = append(batch, session.Candidate{
			Descriptor: clips.Descriptor{
				Name: filepath.Base(file.Filename),
				Size: file.Size,
				Mime: file.Header.Get("Content-Type"),
			},
			Body: src,
		})
	}

	accepted, rejected, err := sess.AddMergeClips(batch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted": len(accepted),
		"rejected": lo.Map(rejected, func(r session.AddError, _ int) gin.H {
			return gin.H{"name": r.Name, "error": userMessage(r.Err)}
		}),
		"state": sess.State(),
	})
}

func (s *server) removeMergeClip(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	removed := sess.RemoveMergeClip(index)
	c.JSON(http.StatusOK, gin.H{"removed": removed, "state": sess.State()})
}

func (s *server) moveMergeClip(c *gin.Context) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	var input struct {
		Direction string `json:"direction"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": userMessage(err)})
		return
	}

	var moved bool
	switch input.Direction {
	case "up":
		moved = sess.MoveMergeClipUp(index)
	case "down":
		moved = sess.MoveMergeClipDown(index)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be up or down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"moved": moved, "state": sess.State()})
}

func (s *server) dispatchConvert(c *gin.Context) {
	s.dispatch(c, session.ModeSingle, (*session.Session).DispatchConvert)
}

func (s *server) dispatchTrim(c *gin.Context) {
	s.dispatch(c, session.ModeSingle, (*session.Session).DispatchTrim)
}

func (s *server) dispatchMerge(c *gin.Context) {
	s.dispatch(c, session.ModeMerge, (*session.Session).DispatchMerge)
}

// dispatch runs one of the session's dispatch operations. The default answer
// is 202 with the busy state; ?wait=true blocks until the outcome has landed
// in the slot and answers 200 with the final state.
func (s *server) dispatch(c *gin.Context, mode session.Mode, start func(*session.Session) (*dispatch.Task[*processor.ProcessResult], error)) {
	sess := s.lookup(c)
	if sess == nil {
		return
	}
	if _, err := start(sess); err != nil {
		fail(c, err)
		return
	}
	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, sess.State())
		return
	}
	if err := sess.AwaitSettled(c.Request.Context(), mode); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.State())
}

// fetchResult streams a finished rendition through from the processing
// service, so the presentation layer only ever talks to this API.
func (s *server) fetchResult(c *gin.Context) {
	retrieval, err := s.client.Retrieve(c.Request.Context(), c.Param("fileID"))
	if err != nil {
		fail(c, err)
		return
	}
	defer retrieval.Body.Close()

	extra := map[string]string{}
	if retrieval.Disposition != "" {
		extra["Content-Disposition"] = retrieval.Disposition
	}
	c.DataFromReader(http.StatusOK, retrieval.ContentLength, retrieval.ContentType, retrieval.Body, extra)
}

func (s *server) healthz(c *gin.Context) {
	status, err := s.client.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "processor": "unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "processor": status.Status})
}
