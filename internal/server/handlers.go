package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/diogo/nanogenius/internal/chat"
	"github.com/diogo/nanogenius/internal/media"
	"github.com/diogo/nanogenius/internal/models"
)

// sendRequest is the JSON body of /api/send
type sendRequest struct {
	Text string `json:"text"`
}

// eventPayload is the data of one SSE frame
type eventPayload struct {
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"busy":     s.coord.Busy(),
	})
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions":  s.sessions.Sessions(),
		"currentId": s.sessions.CurrentID(),
	})
}

// watchSessions streams the session list as a "sessions" event on connect
// and again after every change, until the client goes away
func (s *Server) watchSessions(c *gin.Context) {
	changes, stop := s.notifier.Watch()
	defer stop()

	snapshot := func() gin.H {
		return gin.H{
			"sessions":  s.sessions.Sessions(),
			"currentId": s.sessions.CurrentID(),
		}
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("sessions", snapshot())
	c.Writer.Flush()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-changes:
			c.SSEvent("sessions", snapshot())
			return true
		case <-done:
			return false
		}
	})
}

func (s *Server) createSession(c *gin.Context) {
	c.JSON(http.StatusCreated, s.sessions.Create())
}

func (s *Server) deleteSession(c *gin.Context) {
	if !s.sessions.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) selectSession(c *gin.Context) {
	if !s.sessions.Select(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// send runs one coordinator operation and streams its events as SSE.
// The operation is detached from the request so a reply still lands in
// its session when the client goes away.
func (s *Server) send(c *gin.Context) {
	if !s.sendMu.TryLock() {
		c.JSON(http.StatusConflict, gin.H{"error": chat.ErrBusy.Error()})
		return
	}
	unlock := true
	defer func() {
		if unlock {
			s.sendMu.Unlock()
		}
	}()

	in, cleanup, err := s.readInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(in.Text) == "" && in.Attachment == nil {
		cleanup()
		c.JSON(http.StatusBadRequest, gin.H{"error": chat.ErrEmptyInput.Error()})
		return
	}
	if s.coord.Busy() {
		cleanup()
		c.JSON(http.StatusConflict, gin.H{"error": chat.ErrBusy.Error()})
		return
	}

	events := make(chan chat.Event, 64)
	s.subscribe(events)
	errc := make(chan error, 1)
	unlock = false

	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		defer s.sendMu.Unlock()
		defer cleanup()

		err := s.coord.Send(ctx, in)
		s.subscribe(nil)
		errc <- err
		close(events)
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			if err := <-errc; err != nil && isPrecondition(err) {
				c.SSEvent("error", eventPayload{Error: err.Error()})
			}
			return false
		}
		c.SSEvent(ev.Kind.String(), payloadFor(ev))
		return true
	})
}

// readInput parses a JSON or multipart send request. The returned cleanup
// removes any uploaded temp file and must run after the send completes.
func (s *Server) readInput(c *gin.Context) (chat.Input, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return chat.Input{}, noop, err
		}
		return chat.Input{Text: req.Text}, noop, nil
	}

	in := chat.Input{Text: c.PostForm("text")}
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, noop, nil
	}
	if err != nil {
		return chat.Input{}, noop, err
	}

	dir, err := os.MkdirTemp("", "nanogenius-upload-")
	if err != nil {
		return chat.Input{}, noop, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(fh.Filename))
	if err := c.SaveUploadedFile(fh, path); err != nil {
		cleanup()
		return chat.Input{}, noop, err
	}
	att, err := media.LoadAttachment(path)
	if err != nil {
		cleanup()
		return chat.Input{}, noop, err
	}
	in.Attachment = att
	return in, cleanup, nil
}

func payloadFor(ev chat.Event) eventPayload {
	p := eventPayload{
		SessionID: ev.SessionID,
		MessageID: ev.MessageID,
		Text:      ev.Text,
		ImageURL:  ev.ImageURL,
	}
	if ev.Err != nil {
		p.Error = ev.Err.Error()
		if p.Text == "" {
			p.Text = models.ErrorReplyText
		}
	}
	return p
}

func isPrecondition(err error) bool {
	return errors.Is(err, chat.ErrBusy) || errors.Is(err, chat.ErrEmptyInput) || errors.Is(err, chat.ErrNoSession)
}
