package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/gallery/internal/auth"
	"github.com/sakif/gallery/internal/model"
	"github.com/sakif/gallery/internal/service"
)

// maxUploadBytes caps how much of a multipart body is buffered in memory
// before spilling to temp files. The frontend rejects files over 10 MB;
// the server allows a little headroom for the form overhead.
const maxUploadBytes = 12 << 20

// PostHandler exposes the gallery listing, uploads, and per-post
// mutation/deletion.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// listResponse wraps the listing so the total rides along with the items.
type listResponse struct {
	Items []model.Post `json:"items"`
	Total int          `json:"total"`
}

type deleteResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// HandleList returns all posts, newest first.
//
// HTTP: GET /items/ (public)
func (h *PostHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items: posts,
		Total: len(posts),
	})
}

// HandleGet returns a single post.
//
// HTTP: GET /items/{id} (public)
// 400 for a malformed id, 404 for a well-formed id with no record.
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleUpload accepts a multipart file, pushes it to the storage
// provider, and records the post with the caller as owner.
//
// HTTP: POST /upload (behind RequireAuth)
// Body: multipart/form-data with "file" and an optional "caption".
// 201 with the created post; a delegate failure is 502 and leaves no
// record behind.
func (h *PostHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.logger.Warn("invalid multipart body", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid multipart body",
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "a file field is required",
		})
		return
	}
	defer file.Close()

	// An absent caption stays NULL; an empty submitted caption is kept as
	// an empty string. The two are distinguishable in the listing.
	var caption *string
	if values, ok := r.MultipartForm.Value["caption"]; ok && len(values) > 0 {
		caption = &values[0]
	}

	post, err := h.posts.Upload(
		r.Context(),
		owner,
		file,
		header.Filename,
		header.Header.Get("Content-Type"),
		caption,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// HandleUpdate changes a post's caption.
//
// HTTP: PATCH /items/{id} (behind RequireAuth)
// Body: form field "caption". Only the owner may update an owned post.
func (h *PostHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.UserFromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "invalid form body",
		})
		return
	}

	if _, ok := r.PostForm["caption"]; !ok {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "a caption field is required",
		})
		return
	}
	caption := r.PostFormValue("caption")

	post, err := h.posts.UpdateCaption(r.Context(), chi.URLParam(r, "id"), &caption, requester)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, post)
}

// HandleDelete permanently removes a post.
//
// HTTP: DELETE /items/{id} (behind RequireAuth)
// Same ownership rule as update. A repeat delete of the same id is 404.
func (h *PostHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.posts.Delete(r.Context(), id, requester); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteResponse{
		Message: "post deleted",
		ID:      id,
	})
}
