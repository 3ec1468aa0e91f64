package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"regform/internal/platform/metrics"
	"regform/internal/platform/ratelimit"
	"regform/internal/registration/form"
	"regform/internal/registration/models"
	"regform/internal/registration/service"
	"regform/internal/registration/service/mocks"
	"regform/internal/registration/store"
	"regform/internal/registration/strength"
	"regform/pkg/platform/sentinel"
	httptestutil "regform/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	records  *store.Records
	sessions *form.Sessions
	metrics  *metrics.Metrics
	svc      *service.Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *HandlerSuite) SetupTest() {
	logger := discardLogger()
	s.records = store.NewRecords(store.NewMemory())
	s.svc = service.New(s.records,
		service.WithLogger(logger),
		service.WithResetDelay(time.Hour),
	)
	s.T().Cleanup(s.svc.Close)
	s.sessions = form.NewSessions(form.WithCleanupInterval(0))
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())

	h := New(s.svc, s.sessions, WithLogger(logger), WithMetrics(s.metrics))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return httptestutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) openForm() string {
	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusCreated)
	state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.Require().NotEmpty(state.ID)
	return state.ID
}

func (s *HandlerSuite) input(id string, field models.FieldID, body any) *httptest.ResponseRecorder {
	return s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPut, "/forms/"+id+"/fields/"+string(field), body))
}

func (s *HandlerSuite) fillValid(id string) {
	values := map[models.FieldID]string{
		models.FieldFullName:        "Budi Santoso",
		models.FieldEmail:           "budi@example.com",
		models.FieldPhone:           "081234567890",
		models.FieldBirthDate:       "2000-01-31",
		models.FieldGender:          "male",
		models.FieldAddress:         "Jl. Merdeka 1",
		models.FieldCity:            "jakarta",
		models.FieldPassword:        "Secr3t!pass",
		models.FieldConfirmPassword: "Secr3t!pass",
		models.FieldTerms:           "on",
	}
	for field, v := range values {
		httptestutil.AssertStatus(s.T(), s.input(id, field, map[string]string{"value": v}), http.StatusOK)
	}
}

func (s *HandlerSuite) TestCreateAndGetForm() {
	id := s.openForm()
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ActiveForms))

	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodGet, "/forms/"+id))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.Equal(id, state.ID)
	s.False(state.SuccessVisible)
	s.Len(state.Errors, len(models.Fields()))
	for _, fe := range state.Errors {
		s.False(fe.Visible)
	}
	s.NotEmpty(rr.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestUnknownForm() {
	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodGet, "/forms/missing"))
	httptestutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestDeleteForm() {
	id := s.openForm()
	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodDelete, "/forms/"+id))
	httptestutil.AssertStatus(s.T(), rr, http.StatusNoContent)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.ActiveForms))

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodGet, "/forms/"+id))
	httptestutil.AssertStatus(s.T(), rr, http.StatusNotFound)
}

func (s *HandlerSuite) TestInput() {
	id := s.openForm()

	s.Run("phone is filtered to digits", func() {
		rr := s.input(id, models.FieldPhone, map[string]string{"value": "0812-3456-7890-1234"})
		httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
		state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
		s.Equal("0812345678901", state.Values[models.FieldPhone])
	})

	s.Run("password updates strength", func() {
		rr := s.input(id, models.FieldPassword, map[string]string{"value": "Abcdefgh1!xyz"})
		state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
		s.Equal(strength.LevelStrong, state.Strength.Level)
		s.Equal("100%", state.Strength.Width)
	})

	s.Run("confirm mismatch shows live error", func() {
		rr := s.input(id, models.FieldConfirmPassword, map[string]string{"value": "nope"})
		state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
		s.True(state.Errors[models.FieldConfirmPassword].Visible)
	})

	s.Run("several gender values collapse to none", func() {
		rr := s.input(id, models.FieldGender, map[string]any{"values": []string{"male", "female"}})
		state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
		s.Equal("", state.Values[models.FieldGender])
	})

	s.Run("unknown field", func() {
		rr := s.input(id, "nickname", map[string]string{"value": "x"})
		httptestutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("photo is not a text field", func() {
		rr := s.input(id, models.FieldPhoto, map[string]string{"value": "x"})
		httptestutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPut, "/forms/"+id+"/fields/email", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		httptestutil.AssertStatusAndError(s.T(), s.do(req), http.StatusBadRequest, "bad_request")
	})

	s.Run("wrong content type", func() {
		req := httptest.NewRequest(http.MethodPut, "/forms/"+id+"/fields/email", strings.NewReader("value=x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		httptestutil.AssertStatus(s.T(), s.do(req), http.StatusBadRequest)
	})
}

func (s *HandlerSuite) TestBlur() {
	id := s.openForm()
	s.input(id, models.FieldEmail, map[string]string{"value": "not-an-email"})

	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/fields/email/blur"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := httptestutil.UnmarshalResponse[blurResponse](s.T(), rr)
	s.True(resp.Applied)
	s.Require().NotNil(resp.Outcome)
	s.False(resp.Outcome.Valid)
	s.True(resp.State.Errors[models.FieldEmail].Visible)

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/fields/city/blur"))
	resp = httptestutil.UnmarshalResponse[blurResponse](s.T(), rr)
	s.False(resp.Applied)
	s.Nil(resp.Outcome)
}

func (s *HandlerSuite) TestToggleVisibility() {
	id := s.openForm()

	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/fields/confirmPassword/visibility"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.False(state.Masked[models.FieldConfirmPassword])
	s.True(state.Masked[models.FieldPassword])

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/fields/confirmPassword/visibility"))
	state = httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.True(state.Masked[models.FieldConfirmPassword])

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/fields/email/visibility"))
	httptestutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestSelectPhoto_JSON() {
	id := s.openForm()

	rr := s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/photo",
		photoRequest{Name: "me.png", SizeBytes: 6 * 1024 * 1024}))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.False(resp.Accepted)
	s.Equal(models.MsgFileTooLarge, resp.Alert)
	s.Nil(resp.State.File)
	s.Equal(models.MsgFileTooLarge, resp.State.Alert)
	s.False(resp.State.Errors[models.FieldPhoto].Visible)

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodDelete, "/forms/"+id+"/alert"))
	state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.Empty(state.Alert)

	rr = s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/photo",
		photoRequest{Name: "me.png", SizeBytes: 1024 * 1024}))
	resp = httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.True(resp.Accepted)
	s.Equal("✓ me.png (1.00 MB)", resp.Display)
	s.Require().NotNil(resp.State.File)
	s.Equal("me.png", resp.State.File.Name)

	rr = s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/photo", map[string]any{}))
	resp = httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.Nil(resp.State.File)
	s.Empty(resp.Display)
}

func (s *HandlerSuite) TestSelectPhoto_Multipart() {
	id := s.openForm()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(s.T(), mw.WriteField("note", "ignored"))
	part, err := mw.CreateFormFile("photo", "avatar.jpg")
	require.NoError(s.T(), err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, 2048))
	require.NoError(s.T(), err)
	require.NoError(s.T(), mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/photo", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := s.do(req)

	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.True(resp.Accepted)
	s.Require().NotNil(resp.State.File)
	s.Equal("avatar.jpg", resp.State.File.Name)
	s.Equal(int64(2048), resp.State.File.SizeBytes)
}

func multipartPhoto(t *testing.T, name string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", name)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (s *HandlerSuite) TestSelectPhoto_MultipartOverBodyCapClearsSelection() {
	id := s.openForm()

	rr := s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/photo",
		photoRequest{Name: "ok.png", SizeBytes: 1000}))
	resp := httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.Require().True(resp.Accepted)
	s.NotEmpty(resp.State.FileDisplay)

	body, contentType := multipartPhoto(s.T(), "huge.png", 7*1024*1024)
	req := httptest.NewRequest(http.MethodPost, "/forms/"+id+"/photo", body)
	req.Header.Set("Content-Type", contentType)
	rr = s.do(req)

	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp = httptestutil.UnmarshalResponse[photoResponse](s.T(), rr)
	s.False(resp.Accepted)
	s.Equal(models.MsgFileTooLarge, resp.Alert)
	s.Nil(resp.State.File)
	s.Empty(resp.State.FileDisplay)
	s.Equal(models.MsgFileTooLarge, resp.State.Alert)
}

func (s *HandlerSuite) TestSubmit_Rejected() {
	id := s.openForm()
	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/submit"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := httptestutil.UnmarshalResponse[submitResponse](s.T(), rr)
	s.False(resp.Result.Accepted)
	s.Len(resp.Result.Invalid(), 9)
	s.False(resp.State.SuccessVisible)

	records, err := s.records.Load(context.Background(), store.DefaultKey)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *HandlerSuite) TestSubmit_AcceptedThenListed() {
	id := s.openForm()
	s.fillValid(id)

	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodPost, "/forms/"+id+"/submit"))
	resp := httptestutil.UnmarshalResponse[submitResponse](s.T(), rr)
	s.True(resp.Result.Accepted)
	s.Empty(resp.Result.Warnings)
	s.True(resp.State.SuccessVisible)

	rr = s.do(httptestutil.NewRequest(s.T(), http.MethodGet, "/registrations"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	list := httptestutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal(1.0, (*list)["count"])
	records := (*list)["records"].([]any)
	first := records[0].(map[string]any)
	s.Equal("budi@example.com", first["email"])
	s.NotEmpty(first["registrationDate"])
}

func (s *HandlerSuite) TestKeys() {
	id := s.openForm()

	rr := s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/keys", service.KeyEvent{Key: "a"}))
	resp := httptestutil.UnmarshalResponse[keyResponse](s.T(), rr)
	s.False(resp.Submitted)
	s.Nil(resp.Result)

	rr = s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/keys", service.KeyEvent{Key: "Enter", Meta: true}))
	resp = httptestutil.UnmarshalResponse[keyResponse](s.T(), rr)
	s.True(resp.Submitted)
	s.Require().NotNil(resp.Result)
	s.False(resp.Result.Accepted)
}

func (s *HandlerSuite) TestScroll() {
	id := s.openForm()
	rr := s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/forms/"+id+"/scroll", scrollRequest{Y: 420}))
	state := httptestutil.UnmarshalResponse[form.State](s.T(), rr)
	s.Equal(420, state.ScrollY)
}

func (s *HandlerSuite) TestStrength() {
	rr := s.do(httptestutil.NewJSONRequest(s.T(), http.MethodPost, "/strength", strengthRequest{Password: "abc"}))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
	ind := httptestutil.UnmarshalResponse[strength.Indicator](s.T(), rr)
	s.Equal(strength.Evaluate("abc"), *ind)
}

func (s *HandlerSuite) TestHealth() {
	rr := s.do(httptestutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)

	h := New(s.svc, s.sessions,
		WithLogger(discardLogger()),
		WithHealthCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
	)
	r := chi.NewRouter()
	h.Register(r)
	rr = httptestutil.DoRequest(r, httptestutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	resp := httptestutil.UnmarshalResponse[healthResponse](s.T(), rr)
	s.Equal("degraded", resp.Status)
	s.Equal("connection refused", resp.Checks["redis"])
}

func (s *HandlerSuite) TestCreateForm_RateLimited() {
	h := New(s.svc, s.sessions,
		WithLogger(discardLogger()),
		WithRateLimiter(ratelimit.New(2, time.Minute)),
	)
	r := chi.NewRouter()
	h.Register(r)

	for range 2 {
		rr := httptestutil.DoRequest(r, httptestutil.NewRequest(s.T(), http.MethodPost, "/forms"))
		httptestutil.AssertStatus(s.T(), rr, http.StatusCreated)
	}
	rr := httptestutil.DoRequest(r, httptestutil.NewRequest(s.T(), http.MethodPost, "/forms"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusTooManyRequests)
	s.Equal(2, s.sessions.Count())

	// Only form creation is limited.
	rr = httptestutil.DoRequest(r, httptestutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	httptestutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func TestListRecords_StoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	records := mocks.NewMockRecordStore(ctrl)
	records.EXPECT().Load(gomock.Any(), service.DefaultStoreKey).
		Return(nil, sentinel.ErrUnavailable)

	svc := service.New(records, service.WithLogger(discardLogger()))
	t.Cleanup(svc.Close)
	h := New(svc, form.NewSessions(), WithLogger(discardLogger()))
	r := chi.NewRouter()
	h.Register(r)

	rr := httptestutil.DoRequest(r, httptestutil.NewRequest(t, http.MethodGet, "/registrations"))
	body := rr.Body.String()
	httptestutil.AssertStatusAndError(t, rr, http.StatusServiceUnavailable, "unavailable")
	assert.Contains(t, body, "record store unavailable")
}

func TestFieldInputRequest_Resolve(t *testing.T) {
	tests := []struct {
		name string
		req  fieldInputRequest
		want string
	}{
		{"single value", fieldInputRequest{Value: "male"}, "male"},
		{"one of values", fieldInputRequest{Values: []string{"female"}}, "female"},
		{"values win over value", fieldInputRequest{Value: "x", Values: []string{"female"}}, "female"},
		{"two selections", fieldInputRequest{Values: []string{"male", "female"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.resolve())
		})
	}
}
