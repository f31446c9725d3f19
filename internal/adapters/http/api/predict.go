package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/okian/oralscan/internal/domain/types"
)

// imageFields are the multipart fields accepted for the upload, in order.
var imageFields = []string{"file", "image"}

// HandlePredict handles POST /predict multipart uploads.
func (s *Server) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large"):
			s.fail(r.Context(), w, WrapKind(op, ErrTooLarge, err))
			return
		case errors.Is(err, http.ErrNotMultipart):
			// No upload at all; the service reports the missing identity or image.
		default:
			s.fail(r.Context(), w, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	identity, err := s.identity(r)
	if err != nil {
		s.fail(r.Context(), w, WrapKind(op, ErrUnauthorized, err))
		return
	}

	image, err := readImage(r.MultipartForm)
	if err != nil {
		s.fail(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := s.deps.Predict(r.Context(), identity, image)
	if err != nil {
		s.fail(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewPredictResponse(res, s.loc))
}

// readImage returns the first uploaded image field, or nil when none was sent.
func readImage(form *multipart.Form) ([]byte, error) {
	if form == nil {
		return nil, nil
	}
	for _, field := range imageFields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return io.ReadAll(f)
	}
	return nil, nil
}
