package http

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/privchat-server/internal/proto"
	"github.com/vovakirdan/privchat-server/internal/store"
)

// UploadHandlers provides the file upload endpoint. Uploaded files are only
// referenced by id from FileMessage frames; delivery happens over the chat
// protocol.
type UploadHandlers struct {
	store     store.FileStore
	uploadDir string
	log       *zerolog.Logger
}

// NewUploadHandlers creates a new upload handlers instance.
func NewUploadHandlers(st store.FileStore, uploadDir string, logger *zerolog.Logger) *UploadHandlers {
	return &UploadHandlers{
		store:     st,
		uploadDir: uploadDir,
		log:       logger,
	}
}

// Upload accepts one or more multipart files and records them.
// POST /api/upload
func (h *UploadHandlers) Upload(c *gin.Context) {
	uid, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no files provided"})
		return
	}

	// Files land under <upload_dir>/user_<id>/.
	userDir := filepath.Join(h.uploadDir, fmt.Sprintf("user_%d", uid))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		h.log.Error().Err(err).Str("dir", userDir).Msg("failed to create upload dir")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]proto.FileDescriptor, 0, len(files))
	for _, header := range files {
		id := uuid.NewString()
		name := filepath.Base(header.Filename)
		dst := filepath.Join(userDir, id+"_"+name)

		src, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable file"})
			return
		}

		written, err := writeFile(dst, src)
		src.Close()
		if err != nil {
			h.log.Error().Err(err).Str("dst", dst).Msg("failed to write upload")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		record := &store.UploadedFile{
			ID:         id,
			UploadedBy: uid,
			URL:        "/" + filepath.ToSlash(dst),
			Size:       written,
			Name:       name,
		}
		if err := h.store.SaveFile(c.Request.Context(), record); err != nil {
			h.log.Error().Err(err).Str("file_id", id).Msg("failed to save file record")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}

		h.log.Info().Str("file_id", id).Int64("user_id", uid).Int64("size", written).Msg("file uploaded")
		out = append(out, proto.FileDescriptor{ID: id, URL: record.URL, Size: written, Name: name})
	}

	c.JSON(http.StatusOK, out)
}

func writeFile(dst string, src io.Reader) (int64, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(f, src)
}
