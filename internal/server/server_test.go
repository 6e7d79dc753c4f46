package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diogo/nanogenius/internal/api"
	"github.com/diogo/nanogenius/internal/models"
	"github.com/diogo/nanogenius/internal/session"
)

type memStore struct {
	loaded []models.ChatSession
}

func (s *memStore) Load() []models.ChatSession { return s.loaded }
func (s *memStore) Save(_ []models.ChatSession) {}

type sessionsResponse struct {
	Sessions  []models.ChatSession `json:"sessions"`
	CurrentID string               `json:"currentId"`
}

func setupServer(t *testing.T, mock *api.MockClient, preload ...models.ChatSession) (*httptest.Server, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mgr := session.New(&memStore{loaded: preload})
	srv := httptest.NewServer(New(mgr, mock).Handler())
	t.Cleanup(srv.Close)
	return srv, mgr
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, &api.MockClient{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readAll(t, resp), `"status":"ok"`)
}

func TestSessionRoutes(t *testing.T) {
	srv, mgr := setupServer(t, &api.MockClient{})

	// list
	resp, err := http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	var list sessionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Len(t, list.Sessions, 1)
	assert.Equal(t, mgr.CurrentID(), list.CurrentID)

	// create
	resp = postJSON(t, srv.URL+"/api/sessions", "")
	var created models.ChatSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.DefaultSessionTitle, created.Title)
	assert.Equal(t, created.ID, mgr.CurrentID())
	assert.Equal(t, 2, mgr.Len())

	// select the older session
	older := list.Sessions[0].ID
	resp = postJSON(t, srv.URL+"/api/sessions/"+older+"/select", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, older, mgr.CurrentID())

	// delete
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+created.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, mgr.Len())
}

func TestSessionRoutesNotFound(t *testing.T) {
	srv, _ := setupServer(t, &api.MockClient{})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"delete", http.MethodDelete, "/api/sessions/missing"},
		{"select", http.MethodPost, "/api/sessions/missing/select"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestSendStreamsEvents(t *testing.T) {
	mock := &api.MockClient{Chunks: []string{"Hel", "lo"}}
	srv, mgr := setupServer(t, mock)

	resp := postJSON(t, srv.URL+"/api/send", `{"text":"Say hello"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	body := readAll(t, resp)
	for _, kind := range []string{"event:user_message", "event:placeholder", "event:reply", "event:done"} {
		assert.Contains(t, body, kind)
	}
	assert.Less(t, strings.Index(body, "event:reply"), strings.Index(body, "event:done"))

	cur, ok := mgr.Current()
	require.True(t, ok)
	require.Len(t, cur.Messages, 2)
	assert.Equal(t, "Hello", cur.Messages[1].Text)
	assert.Equal(t, "Say hello", mock.LastText)
}

func TestSendRejectsEmpty(t *testing.T) {
	mock := &api.MockClient{}
	srv, _ := setupServer(t, mock)

	tests := []struct {
		name string
		body string
	}{
		{"empty text", `{"text":""}`},
		{"whitespace", `{"text":"   "}`},
		{"malformed", `{"text":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/send", tt.body)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Zero(t, mock.StreamCalls)
}

func TestSendConflictWhileBusy(t *testing.T) {
	mock := &api.MockClient{Chunks: []string{"done"}, Block: make(chan struct{})}
	srv, mgr := setupServer(t, mock)

	// headers arrive with the first event, before the service unblocks
	first := postJSON(t, srv.URL+"/api/send", `{"text":"first"}`)
	require.Equal(t, http.StatusOK, first.StatusCode)

	second := postJSON(t, srv.URL+"/api/send", `{"text":"second"}`)
	second.Body.Close()
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	close(mock.Block)
	assert.Contains(t, readAll(t, first), "event:done")

	cur, _ := mgr.Current()
	require.Len(t, cur.Messages, 2)
	assert.Equal(t, "first", cur.Messages[0].Text)
}

func TestSendMultipartImage(t *testing.T) {
	mock := &api.MockClient{ImageResult: &models.GenerationResult{ImageURL: "data:image/png;base64,AAAA"}}
	srv, mgr := setupServer(t, mock)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", "make it vintage"))
	part, err := w.CreateFormFile("image", "photo.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	resp, err := http.Post(srv.URL+"/api/send", w.FormDataContentType(), &buf)
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "event:reply")

	assert.Equal(t, 1, mock.ImageCalls)
	require.NotNil(t, mock.LastInput)
	assert.Equal(t, "image/png", mock.LastInput.MIMEType)

	cur, _ := mgr.Current()
	require.Len(t, cur.Messages, 2)
	assert.True(t, strings.HasPrefix(cur.Messages[0].ImageURL, "file://"))
	assert.Equal(t, "data:image/png;base64,AAAA", cur.Messages[1].ImageURL)
}

func TestSendServiceFailure(t *testing.T) {
	mock := &api.MockClient{StreamErr: assert.AnError}
	srv, mgr := setupServer(t, mock)

	body := readAll(t, postJSON(t, srv.URL+"/api/send", `{"text":"hi"}`))
	assert.Contains(t, body, "event:failed")
	assert.Contains(t, body, "event:done")

	cur, _ := mgr.Current()
	require.Len(t, cur.Messages, 2)
	assert.True(t, cur.Messages[1].IsError)
}

// nextEvent reads SSE lines until a complete event and returns its name and data
func nextEvent(t *testing.T, r *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestWatchSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	notifier := NewNotifier()
	mgr := session.New(&memStore{}, session.WithOnChange(notifier.Notify))
	srv := httptest.NewServer(New(mgr, &api.MockClient{}, WithNotifier(notifier)).Handler())
	t.Cleanup(srv.Close)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(srv.URL + "/api/sessions/watch")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	reader := bufio.NewReader(resp.Body)
	name, data := nextEvent(t, reader)
	assert.Equal(t, "sessions", name)
	assert.Contains(t, data, mgr.CurrentID())

	created := mgr.Create()
	name, data = nextEvent(t, reader)
	assert.Equal(t, "sessions", name)

	var snap sessionsResponse
	require.NoError(t, json.Unmarshal([]byte(data), &snap))
	assert.Len(t, snap.Sessions, 2)
	assert.Equal(t, created.ID, snap.CurrentID)
}

func TestWatchSessionsDisabledWithoutNotifier(t *testing.T) {
	srv, _ := setupServer(t, &api.MockClient{})

	resp, err := http.Get(srv.URL + "/api/sessions/watch")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	ch, stop := n.Watch()

	n.Notify()
	n.Notify()
	<-ch
	select {
	case <-ch:
		t.Fatal("bursts should coalesce into one wakeup")
	default:
	}

	stop()
	n.Notify()
	select {
	case <-ch:
		t.Fatal("stopped watcher was notified")
	default:
	}
}
