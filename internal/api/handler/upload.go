package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/kiranshivaraju/explainer/internal/api/response"
)

// DefaultMaxUploadBytes bounds multipart uploads.
const DefaultMaxUploadBytes int64 = 32 << 20

const multipartMemory = 8 << 20

var errMissingFile = errors.New("file is required")

type upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// readUpload reads the multipart file in field. The body is capped at
// maxBytes.
func readUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (upload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return upload{}, err
	}

	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return upload{}, errMissingFile
	}
	if err != nil {
		return upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return upload{}, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return upload{}, errMissingFile
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return upload{
		Name:        filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// writeUploadError maps readUpload failures to client errors.
func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit), nil)
	case errors.Is(err, errMissingFile):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "A non-empty multipart file field is required", nil)
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Request must be multipart/form-data", nil)
	}
}
