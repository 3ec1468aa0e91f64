package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"regform/internal/audit"
	"regform/internal/registration/form"
	"regform/internal/registration/metrics"
	"regform/internal/registration/models"
	"regform/internal/registration/service/mocks"
	"regform/internal/registration/strength"
	"regform/internal/registration/upload"
	dErrors "regform/pkg/domain-errors"
	"regform/pkg/platform/sentinel"
	"regform/pkg/requestcontext"
)

var submittedAt = time.Date(2024, 6, 15, 9, 30, 0, 123456789, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockRecordStore
	audit     *mocks.MockAuditPublisher
	clock     *manualClock
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context
	auditSeen []audit.Event
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockRecordStore(s.ctrl)
	s.audit = mocks.NewMockAuditPublisher(s.ctrl)
	s.clock = &manualClock{}
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.auditSeen = nil
	s.audit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		s.auditSeen = append(s.auditSeen, e)
		return nil
	}).AnyTimes()
	s.service = s.newService(s.store)
	s.ctx = requestcontext.WithTime(context.Background(), submittedAt)
}

func (s *ServiceSuite) newService(records RecordStore, opts ...Option) *Service {
	base := []Option{
		WithScheduler(NewScheduler(s.clock.AfterFunc)),
		WithAuditPublisher(s.audit),
		WithMetrics(s.metrics),
	}
	return New(records, append(base, opts...)...)
}

func fillValid(f *form.Form) {
	f.SetValue(models.FieldFullName, "Budi Santoso")
	f.SetValue(models.FieldEmail, "budi@example.com")
	f.SetValue(models.FieldPhone, "081234567890")
	f.SetValue(models.FieldBirthDate, "2000-01-31")
	f.SetValue(models.FieldGender, "male")
	f.SetValue(models.FieldAddress, "Jl. Merdeka 1")
	f.SetValue(models.FieldCity, "jakarta")
	f.SetValue(models.FieldPassword, "Secr3t!pass")
	f.SetValue(models.FieldConfirmPassword, "Secr3t!pass")
	f.SetValue(models.FieldTerms, "on")
}

func (s *ServiceSuite) actions() []audit.Action {
	var out []audit.Action
	for _, e := range s.auditSeen {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestSubmit_EmptyFormRejected() {
	f := form.New("f1")

	result, err := s.service.Submit(s.ctx, f)

	s.Require().NoError(err)
	s.False(result.Accepted)
	s.Len(result.Outcomes, 11, "ten fields plus the photo")
	s.Len(result.Invalid(), 9)

	state := f.State()
	s.True(state.Errors[models.FieldFullName].Visible)
	s.Equal(models.MsgBirthDateMissing, state.Errors[models.FieldBirthDate].Message)
	s.False(state.Errors[models.FieldConfirmPassword].Flagged)
	s.False(state.Errors[models.FieldPhoto].Flagged)
	s.False(state.SuccessVisible)
	s.Zero(s.clock.count(), "no reset scheduled")
	s.Equal([]audit.Action{audit.ActionRegistrationRejected}, s.actions())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Submissions.WithLabelValues("rejected")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.FieldFailures.WithLabelValues("email")))
}

func (s *ServiceSuite) TestSubmit_OnlyMismatchFlagged() {
	f := form.New("f1")
	fillValid(f)
	f.SetValue(models.FieldConfirmPassword, "different")

	result, err := s.service.Submit(s.ctx, f)

	s.Require().NoError(err)
	s.False(result.Accepted)
	invalid := result.Invalid()
	s.Require().Len(invalid, 1)
	s.Equal(models.FieldConfirmPassword, invalid[0].FieldID)
	for id, slot := range f.State().Errors {
		s.Equal(id == models.FieldConfirmPassword, slot.Flagged, id)
	}
}

func (s *ServiceSuite) TestSubmit_AcceptedAppendsOneRecordPreservingPrevious() {
	f := form.New("f1")
	fillValid(f)
	photo := &models.FileDescriptor{Name: "me.png", SizeBytes: 1024}
	f.SelectFile(photo, s.service.guard.Check(photo))

	previous := models.NewRegistrationRecord(map[string]string{"fullName": "Earlier"}, submittedAt.Add(-time.Hour))
	var saved []models.RegistrationRecord
	gomock.InOrder(
		s.store.EXPECT().Load(gomock.Any(), DefaultStoreKey).Return([]models.RegistrationRecord{previous}, nil),
		s.store.EXPECT().Save(gomock.Any(), DefaultStoreKey, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, records []models.RegistrationRecord) error {
				saved = records
				return nil
			}),
	)

	result, err := s.service.Submit(s.ctx, f)

	s.Require().NoError(err)
	s.True(result.Accepted)
	s.Empty(result.Warnings)
	s.Require().Len(saved, 2)
	s.Equal(previous, saved[0])

	rec := saved[1]
	s.Equal("Budi Santoso", rec.Fields["fullName"])
	s.Equal("Secr3t!pass", rec.Fields["password"])
	s.Equal("on", rec.Fields["terms"])
	s.NotContains(rec.Fields, "photo")
	s.Len(rec.Fields, 10)
	s.True(submittedAt.Truncate(time.Millisecond).Equal(rec.RegistrationDate))

	s.True(f.State().SuccessVisible)
	s.Equal([]audit.Action{audit.ActionRegistrationAccepted}, s.actions())
}

func (s *ServiceSuite) TestSubmit_ResetAfterDelay() {
	f := form.New("f1")
	fillValid(f)
	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Submit(s.ctx, f)
	s.Require().NoError(err)

	s.Require().Equal(1, s.clock.count())
	s.Equal(DefaultResetDelay, s.clock.timer(0).delay)
	s.Equal("Budi Santoso", f.Value(models.FieldFullName), "values stay until the reset fires")

	s.clock.timer(0).fn()

	s.Equal(form.New("f1").State(), f.State())
}

func (s *ServiceSuite) TestSubmit_ResubmitCancelsPendingReset() {
	f := form.New("f1")
	fillValid(f)
	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	_, err := s.service.Submit(s.ctx, f)
	s.Require().NoError(err)
	_, err = s.service.Submit(s.ctx, f)
	s.Require().NoError(err)

	s.Require().Equal(2, s.clock.count())
	s.True(s.clock.timer(0).stopped)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ResetsCancelled))

	s.clock.timer(0).fn()
	s.True(f.State().SuccessVisible, "stale reset must not clear the newer success")

	s.clock.timer(1).fn()
	s.False(f.State().SuccessVisible)
}

func (s *ServiceSuite) TestSubmit_StoreFailureIsWarning() {
	f := form.New("f1")
	fillValid(f)
	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrUnavailable)

	result, err := s.service.Submit(s.ctx, f)

	s.Require().NoError(err)
	s.True(result.Accepted)
	s.Equal([]string{WarnNotSaved}, result.Warnings)
	s.True(f.State().SuccessVisible)
	s.Equal(1, s.clock.count())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StoreFailures.WithLabelValues("load")))
	s.Contains(s.actions(), audit.ActionRegistrationNotSaved)
}

type atomicStore struct {
	*mocks.MockRecordStore
	*mocks.MockAppender
}

func (s *ServiceSuite) TestSubmit_PrefersAtomicAppend() {
	appender := mocks.NewMockAppender(s.ctrl)
	svc := s.newService(atomicStore{MockRecordStore: s.store, MockAppender: appender})
	f := form.New("f1")
	fillValid(f)

	appender.EXPECT().Append(gomock.Any(), DefaultStoreKey, gomock.Any()).Return(nil)

	result, err := svc.Submit(s.ctx, f)
	s.Require().NoError(err)
	s.True(result.Accepted)
}

func (s *ServiceSuite) TestSubmit_SealsPassword() {
	sealer := mocks.NewMockSecretSealer(s.ctrl)
	svc := s.newService(s.store, WithSealer(sealer))
	f := form.New("f1")
	fillValid(f)

	sealer.EXPECT().Seal("Secr3t!pass").Return("$2a$sealed", nil)
	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, nil)
	var saved []models.RegistrationRecord
	s.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, records []models.RegistrationRecord) error {
			saved = records
			return nil
		})

	_, err := svc.Submit(s.ctx, f)
	s.Require().NoError(err)
	s.Require().Len(saved, 1)
	s.Equal("$2a$sealed", saved[0].Fields["password"])
	s.NotContains(saved[0].Fields, "confirmPassword")
}

func (s *ServiceSuite) TestSubmit_SealsLongPassword() {
	sealer := NewBcryptSealer(bcrypt.MinCost)
	svc := s.newService(s.store, WithSealer(sealer))
	f := form.New("f1")
	fillValid(f)
	long := strings.Repeat("Ab1!", 19) // 76 bytes
	f.SetValue(models.FieldPassword, long)
	f.SetValue(models.FieldConfirmPassword, long)

	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, nil)
	var saved []models.RegistrationRecord
	s.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, records []models.RegistrationRecord) error {
			saved = records
			return nil
		})

	result, err := svc.Submit(s.ctx, f)
	s.Require().NoError(err)
	s.True(result.Accepted)
	s.Empty(result.Warnings)
	s.Require().Len(saved, 1)
	s.True(sealer.Verify(saved[0].Fields["password"], long))
}

func (s *ServiceSuite) TestSubmit_SealFailureStoresNothing() {
	sealer := mocks.NewMockSecretSealer(s.ctrl)
	svc := s.newService(s.store, WithSealer(sealer))
	f := form.New("f1")
	fillValid(f)
	sealer.EXPECT().Seal(gomock.Any()).Return("", errors.New("too long"))

	result, err := svc.Submit(s.ctx, f)
	s.Require().NoError(err)
	s.True(result.Accepted)
	s.Equal([]string{WarnNotSaved}, result.Warnings)
}

func (s *ServiceSuite) TestSubmit_OversizePhotoBlocks() {
	f := form.New("f1")
	fillValid(f)
	big := &models.FileDescriptor{Name: "big.png", SizeBytes: 6 << 20}
	// a selection that skipped the guard, e.g. restored from elsewhere
	f.SelectFile(big, upload.Decision{Selected: true, Outcome: models.Pass(models.FieldPhoto)})

	result, err := s.service.Submit(s.ctx, f)
	s.Require().NoError(err)
	s.False(result.Accepted)
	s.Equal(models.FieldPhoto, result.Invalid()[0].FieldID)
	s.True(f.State().Errors[models.FieldPhoto].Visible)
}

func (s *ServiceSuite) TestSubmit_CancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.service.Submit(ctx, form.New("f1"))
	s.ErrorIs(err, context.Canceled)
}

func (s *ServiceSuite) TestInput() {
	f := form.New("f1")

	s.Run("phone is filtered", func() {
		s.Require().NoError(s.service.Input(s.ctx, f, models.FieldPhone, "0812-3456-7890-123"))
		s.Equal("0812345678901", f.Value(models.FieldPhone))
	})

	s.Run("password updates strength", func() {
		s.Require().NoError(s.service.Input(s.ctx, f, models.FieldPassword, "Abcdefgh1!xyz"))
		s.Equal(strength.Evaluate("Abcdefgh1!xyz"), f.State().Strength)
		s.Equal(strength.LevelStrong, f.State().Strength.Level)
	})

	s.Run("confirm is checked live", func() {
		s.Require().NoError(s.service.Input(s.ctx, f, models.FieldConfirmPassword, "Abc"))
		s.True(f.State().Errors[models.FieldConfirmPassword].Flagged)
		s.Require().NoError(s.service.Input(s.ctx, f, models.FieldConfirmPassword, "Abcdefgh1!xyz"))
		s.False(f.State().Errors[models.FieldConfirmPassword].Flagged)
	})

	s.Run("unknown field", func() {
		err := s.service.Input(s.ctx, f, "nickname", "x")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		err = s.service.Input(s.ctx, f, models.FieldPhoto, "x")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestBlur() {
	f := form.New("f1")

	_, applied, err := s.service.Blur(s.ctx, f, models.FieldEmail)
	s.Require().NoError(err)
	s.False(applied)

	f.SetValue(models.FieldEmail, "a@b")
	outcome, applied, err := s.service.Blur(s.ctx, f, models.FieldEmail)
	s.Require().NoError(err)
	s.True(applied)
	s.False(outcome.Valid)
	s.True(f.State().Errors[models.FieldEmail].Visible)

	// clearing the field leaves the shown error in place
	f.SetValue(models.FieldEmail, "")
	_, applied, _ = s.service.Blur(s.ctx, f, models.FieldEmail)
	s.False(applied)
	s.True(f.State().Errors[models.FieldEmail].Visible)
}

func (s *ServiceSuite) TestSelectFile() {
	f := form.New("f1")

	d := s.service.SelectFile(s.ctx, f, &models.FileDescriptor{Name: "me.png", SizeBytes: 5232394})
	s.False(d.Rejected())
	s.Equal("✓ me.png (4.99 MB)", f.State().FileDisplay)

	d = s.service.SelectFile(s.ctx, f, &models.FileDescriptor{Name: "big.png", SizeBytes: 6 << 20})
	s.True(d.Rejected())
	s.Nil(f.State().File)
	s.Equal(models.MsgFileTooLarge, f.State().Alert)
	s.Equal([]audit.Action{audit.ActionUploadRejected}, s.actions())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.UploadsRejected))
}

func (s *ServiceSuite) TestKeyPress() {
	f := form.New("f1")

	_, submitted, err := s.service.KeyPress(s.ctx, f, KeyEvent{Key: "Enter"})
	s.Require().NoError(err)
	s.False(submitted)

	result, submitted, err := s.service.KeyPress(s.ctx, f, KeyEvent{Key: "Enter", Meta: true})
	s.Require().NoError(err)
	s.True(submitted)
	s.False(result.Accepted)
}

func (s *ServiceSuite) TestListRecords() {
	s.Run("ok", func() {
		s.store.EXPECT().Load(gomock.Any(), DefaultStoreKey).Return([]models.RegistrationRecord{{}}, nil)
		records, err := s.service.ListRecords(s.ctx)
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("backend down", func() {
		s.store.EXPECT().Load(gomock.Any(), DefaultStoreKey).Return(nil, sentinel.ErrUnavailable)
		_, err := s.service.ListRecords(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("corrupt data", func() {
		s.store.EXPECT().Load(gomock.Any(), DefaultStoreKey).Return(nil, sentinel.ErrInvalidState)
		_, err := s.service.ListRecords(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestForgetCancelsReset() {
	f := form.New("f1")
	fillValid(f)
	s.store.EXPECT().Load(gomock.Any(), gomock.Any()).Return(nil, nil)
	s.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	_, err := s.service.Submit(s.ctx, f)
	s.Require().NoError(err)

	s.service.Forget("f1")

	s.True(s.clock.timer(0).stopped)
	s.clock.timer(0).fn()
	s.True(f.State().SuccessVisible)
}
