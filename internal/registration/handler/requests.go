package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"regform/internal/registration/form"
	"regform/internal/registration/models"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/httputil"
)

// fieldInputRequest carries either a single value or, for grouped inputs
// such as the gender radios, every selected value.
type fieldInputRequest struct {
	Value  string   `json:"value"`
	Values []string `json:"values,omitempty"`
}

// resolve collapses the request to one field value. More than one selected
// value is not a selection at all and reads as empty.
func (r fieldInputRequest) resolve() string {
	switch len(r.Values) {
	case 0:
		return r.Value
	case 1:
		return r.Values[0]
	default:
		return ""
	}
}

type photoRequest struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

type scrollRequest struct {
	Y int `json:"y"`
}

type strengthRequest struct {
	Password string `json:"password"`
}

type blurResponse struct {
	Applied bool                      `json:"applied"`
	Outcome *models.ValidationOutcome `json:"outcome,omitempty"`
	State   form.State                `json:"state"`
}

type photoResponse struct {
	Accepted bool       `json:"accepted"`
	Alert    string     `json:"alert,omitempty"`
	Display  string     `json:"display"`
	State    form.State `json:"state"`
}

type submitResponse struct {
	Result models.SubmissionResult `json:"result"`
	State  form.State              `json:"state"`
}

type keyResponse struct {
	Submitted bool                     `json:"submitted"`
	Result    *models.SubmissionResult `json:"result,omitempty"`
	State     form.State               `json:"state"`
}

type recordsResponse struct {
	Records []models.RegistrationRecord `json:"records"`
	Count   int                         `json:"count"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// readPhoto extracts the selected file from a multipart "photo" part or a
// JSON descriptor. A nil result means the selection was cleared.
func (h *Handler) readPhoto(w http.ResponseWriter, r *http.Request) (*models.FileDescriptor, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
		return readMultipartPhoto(r)
	}

	if r.ContentLength == 0 {
		return nil, nil
	}
	var req photoRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.SizeBytes < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "size_bytes must not be negative")
	}
	if strings.TrimSpace(req.Name) == "" && req.SizeBytes == 0 {
		return nil, nil
	}
	return &models.FileDescriptor{Name: req.Name, SizeBytes: req.SizeBytes}, nil
}

// readMultipartPhoto streams the "photo" part to count its size without
// buffering it. A photo cut off by the body cap is reported one byte over the
// cap so the upload guard rejects it like any other oversize file.
func readMultipartPhoto(r *http.Request) (*models.FileDescriptor, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, wrapReadError(err)
		}
		if part.FormName() != string(models.FieldPhoto) || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		n, err := io.Copy(io.Discard, part)
		_ = part.Close()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &models.FileDescriptor{Name: part.FileName(), SizeBytes: tooLarge.Limit + 1}, nil
		}
		if err != nil {
			return nil, wrapReadError(err)
		}
		return &models.FileDescriptor{Name: part.FileName(), SizeBytes: n}, nil
	}
}

func wrapReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "upload body too large")
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body")
}
