package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/explainer/internal/api/response"
	"github.com/kiranshivaraju/explainer/internal/render"
)

// RepositoryExtractor finds code repository links in a document.
type RepositoryExtractor interface {
	ExtractRepositories(ctx context.Context, req render.ExtractRequest) (*render.RepositoryReport, error)
}

// NewRepositoriesHandler returns an http.HandlerFunc for POST /api/v1/repositories.
func NewRepositoriesHandler(x RepositoryExtractor, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		up, err := readUpload(w, r, "file", maxUploadBytes)
		if err != nil {
			writeUploadError(w, err)
			return
		}

		fetch, err := formBool(r, "fetch_readmes")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "fetch_readmes must be a boolean", nil)
			return
		}
		simplify, err := formBool(r, "simplify_readmes")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "simplify_readmes must be a boolean", nil)
			return
		}

		report, err := x.ExtractRepositories(r.Context(), render.ExtractRequest{
			Filename:        up.Name,
			Content:         up.Data,
			FetchReadmes:    fetch,
			SimplifyReadmes: simplify,
		})
		if err != nil {
			writeJobError(w, r, err)
			return
		}
		response.JSON(w, report)
	}
}

func formBool(r *http.Request, key string) (bool, error) {
	v := r.FormValue(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
