package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/gallery/internal/server"
	"github.com/sakif/gallery/internal/storage"
)

// fakeUploader stands in for the ImageKit client. Every upload succeeds
// with a predictable URL unless failWith is set.
type fakeUploader struct {
	uploads  int
	failWith error
}

func (f *fakeUploader) Upload(_ context.Context, file io.Reader, fileName, contentType string) (*storage.UploadResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if _, err := io.Copy(io.Discard, file); err != nil {
		return nil, err
	}
	f.uploads++
	return &storage.UploadResult{
		URL:    "https://cdn.example.com/" + fileName,
		Name:   fileName,
		FileID: "file-1",
	}, nil
}

func newTestServer(t *testing.T) (http.Handler, *fakeUploader) {
	t.Helper()

	uploader := &fakeUploader{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := server.New(server.Config{
		Port:      0,
		DBPath:    ":memory:",
		JWTSecret: "test-secret-at-least-16-chars!!",
		TokenTTL:  30 * time.Minute,
	}, logger, uploader)
	require.NoError(t, err)

	return srv.Handler(), uploader
}

// ---------------------------------------------------------------------
// request helpers
// ---------------------------------------------------------------------

func doJSON(h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doForm(h http.Handler, method, path, token string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func doUpload(t *testing.T, h http.Handler, token, fileName, contentType, content, caption string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// CreatePart (not CreateFormFile) so the part carries a real MIME
	// type, the way browsers send it.
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := mw.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	if caption != "" {
		require.NoError(t, mw.WriteField("caption", caption))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func register(t *testing.T, h http.Handler, username, email, password string) map[string]any {
	t.Helper()
	rr := doJSON(h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rr.Code, "register %s: %s", username, rr.Body.String())
	return decode(t, rr)
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rr := doForm(h, http.MethodPost, "/auth/login", "", url.Values{
		"username": {username},
		"password": {password},
	})
	require.Equal(t, http.StatusOK, rr.Code, "login %s: %s", username, rr.Body.String())
	body := decode(t, rr)
	require.Equal(t, "bearer", body["token_type"])
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

// ---------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------

func TestRootAndHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rr := doJSON(h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", decode(t, rr)["status"])
}

func TestRegister_ResponseShape(t *testing.T) {
	h, _ := newTestServer(t)

	body := register(t, h, "alice", "a@x.com", "secret1")

	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.Equal(t, true, body["is_active"])
	assert.NotEmpty(t, body["created_at"])
	assert.NotContains(t, body, "password_hash", "the hash must never be serialized")
	assert.NotContains(t, body, "password")
}

func TestRegister_Duplicates(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")

	rr := doJSON(h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "other@x.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "duplicate username")

	rr = doJSON(h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "bob", "email": "a@x.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "duplicate email")
}

func TestLogin_BadCredentials(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")

	wrongPassword := doForm(h, http.MethodPost, "/auth/login", "", url.Values{
		"username": {"alice"}, "password": {"wrong"},
	})
	unknownUser := doForm(h, http.MethodPost, "/auth/login", "", url.Values{
		"username": {"nobody"}, "password": {"secret1"},
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// The two failures must be indistinguishable on the wire.
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestMe(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")
	token := login(t, h, "alice", "secret1")

	rr := doJSON(h, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", decode(t, rr)["username"])

	rr = doJSON(h, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(h, http.MethodGet, "/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpload_RequiresAuth(t *testing.T) {
	h, uploader := newTestServer(t)

	rr := doUpload(t, h, "", "cat.png", "image/png", "png-bytes", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, uploader.uploads, "unauthenticated uploads must not reach the delegate")
}

func TestUpload_DelegateFailure(t *testing.T) {
	h, uploader := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")
	token := login(t, h, "alice", "secret1")

	uploader.failWith = errors.New("connection refused")
	rr := doUpload(t, h, token, "cat.png", "image/png", "png-bytes", "hi")
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	// No partial record.
	list := doJSON(h, http.MethodGet, "/items/", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Equal(t, float64(0), decode(t, list)["total"])
}

func TestListOrdering(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")
	token := login(t, h, "alice", "secret1")

	first := doUpload(t, h, token, "first.png", "image/png", "a", "")
	require.Equal(t, http.StatusCreated, first.Code)
	time.Sleep(5 * time.Millisecond)
	second := doUpload(t, h, token, "second.png", "image/png", "b", "")
	require.Equal(t, http.StatusCreated, second.Code)

	rr := doJSON(h, http.MethodGet, "/items/", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, float64(2), body["total"])

	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "second.png", items[0].(map[string]any)["file_name"])
	assert.Equal(t, "first.png", items[1].(map[string]any)["file_name"])
}

func TestMalformedIDs(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "a@x.com", "secret1")
	token := login(t, h, "alice", "secret1")

	for _, id := range []string{
		"not-a-uuid",
		"123e4567-e89b-12d3-a456",
		"123e4567-e89b-12d3-a456-42661417400g",
	} {
		rr := doJSON(h, http.MethodGet, "/items/"+id, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "GET %s", id)

		rr = doForm(h, http.MethodPatch, "/items/"+id, token, url.Values{"caption": {"x"}})
		assert.Equal(t, http.StatusBadRequest, rr.Code, "PATCH %s", id)

		rr = doJSON(h, http.MethodDelete, "/items/"+id, token, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "DELETE %s", id)
	}
}

// TestEndToEnd runs the whole lifecycle: register, login, upload with
// caption, read it back, update the caption, have a stranger fail to
// delete it, delete it as the owner, and confirm it is gone.
func TestEndToEnd(t *testing.T) {
	h, _ := newTestServer(t)

	alice := register(t, h, "alice", "a@x.com", "secret1")
	aliceToken := login(t, h, "alice", "secret1")
	register(t, h, "mallory", "m@x.com", "secret2")
	malloryToken := login(t, h, "mallory", "secret2")

	// Upload as alice.
	rr := doUpload(t, h, aliceToken, "cat.png", "image/png", "png-bytes", "hi")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	post := decode(t, rr)
	postID, _ := post["id"].(string)
	require.NotEmpty(t, postID)
	assert.Equal(t, alice["id"], post["user_id"])
	assert.Equal(t, "hi", post["caption"])
	assert.Equal(t, "image/png", post["file_type"])
	assert.Equal(t, "https://cdn.example.com/cat.png", post["url"])

	// Anyone can read it.
	rr = doJSON(h, http.MethodGet, "/items/"+postID, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Owner updates the caption.
	rr = doForm(h, http.MethodPatch, "/items/"+postID, aliceToken, url.Values{"caption": {"bye"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "bye", decode(t, rr)["caption"])

	// A different authenticated user may not touch it.
	rr = doForm(h, http.MethodPatch, "/items/"+postID, malloryToken, url.Values{"caption": {"mine now"}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = doJSON(h, http.MethodDelete, "/items/"+postID, malloryToken, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// An anonymous caller may not touch it either.
	rr = doForm(h, http.MethodPatch, "/items/"+postID, "", url.Values{"caption": {"x"}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Owner deletes it.
	rr = doJSON(h, http.MethodDelete, "/items/"+postID, aliceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, postID, body["id"])
	assert.NotEmpty(t, body["message"])

	// Gone: delete again → 404, read → 404.
	rr = doJSON(h, http.MethodDelete, "/items/"+postID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(h, http.MethodGet, "/items/"+postID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
