package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/pkg/config"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/export"
	"github.com/arkan-dev/bootcamp-api/pkg/jobs"
	"github.com/arkan-dev/bootcamp-api/pkg/mailer"
)

type certificateStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Certificate, error)
	Create(ctx context.Context, cert *models.Certificate) error
	MarkEmailSent(ctx context.Context, id string, sent bool) error
}

type certificateLedger interface {
	SumPoints(ctx context.Context, userID string) (int, error)
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
}

type certificateCurriculum interface {
	CountWeeks(ctx context.Context) (int, error)
}

type certificateUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type certificateFileStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

type certificateQueue interface {
	Enqueue(job jobs.Job) error
}

type certificateMailer interface {
	Enabled() bool
	Send(msg mailer.Message) error
}

// CertificateService issues completion certificates. Issuance is idempotent:
// the certificates table carries a unique user constraint and a second issue
// attempt returns the original document unchanged.
type CertificateService struct {
	store      certificateStore
	ledger     certificateLedger
	curriculum certificateCurriculum
	users      certificateUserStore
	files      certificateFileStore
	renderer   *export.CertificateRenderer
	signer     submissionURLSigner
	mail       certificateMailer
	queue      certificateQueue
	notifier   progressNotifier
	cfg        config.CertificatesConfig
	logger     *zap.Logger
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(
	store certificateStore,
	ledger certificateLedger,
	curriculum certificateCurriculum,
	users certificateUserStore,
	files certificateFileStore,
	renderer *export.CertificateRenderer,
	signer submissionURLSigner,
	mail certificateMailer,
	queue certificateQueue,
	notifier progressNotifier,
	cfg config.CertificatesConfig,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "CERT"
	}
	return &CertificateService{
		store:      store,
		ledger:     ledger,
		curriculum: curriculum,
		users:      users,
		files:      files,
		renderer:   renderer,
		signer:     signer,
		mail:       mail,
		queue:      queue,
		notifier:   notifier,
		cfg:        cfg,
		logger:     logger,
	}
}

// SetQueue attaches the email job queue. The queue's handler lives on this
// service, so the queue is built after the service and attached here.
func (s *CertificateService) SetQueue(queue certificateQueue) {
	s.queue = queue
}

// IssueIfEligible generates a certificate once every week of the course is
// completed. Calling it for a student who already holds one returns the
// existing certificate.
func (s *CertificateService) IssueIfEligible(ctx context.Context, userID string) (*models.Certificate, error) {
	existing, err := s.store.FindByUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	totalWeeks, err := s.curriculum.CountWeeks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weeks")
	}
	completedWeeks, err := s.ledger.CountCompletedByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed weeks")
	}
	if totalWeeks == 0 || completedWeeks < totalWeeks {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not complete")
	}

	totalPoints, err := s.ledger.SumPoints(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum points")
	}

	now := time.Now().UTC()
	cert := &models.Certificate{
		ID:                   uuid.NewString(),
		UserID:               userID,
		CertificateID:        fmt.Sprintf("%s-%d-%s", s.cfg.IDPrefix, now.Unix(), userID),
		TotalPoints:          totalPoints,
		CompletionPercentage: PointsPercentage(completedWeeks, totalWeeks),
		DurationDays:         durationDays(user.CreatedAt, now),
		IssuedAt:             now,
	}

	pdf, err := s.renderer.Render(export.CertificateData{
		StudentName:          user.FullName,
		CertificateID:        cert.CertificateID,
		IssuedAt:             cert.IssuedAt,
		TotalPoints:          cert.TotalPoints,
		CompletionPercentage: cert.CompletionPercentage,
		DurationDays:         cert.DurationDays,
		ProgramTitle:         "Full-Stack Engineering Bootcamp",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	stored, err := s.files.Save(fmt.Sprintf("certificates/%s.pdf", cert.CertificateID), pdf)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}
	cert.FilePath = stored

	if err := s.store.Create(ctx, cert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist certificate")
	}

	// The insert tolerates a concurrent winner; re-read the canonical row
	// and drop our rendering if someone beat us to it.
	canonical, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload certificate")
	}
	if canonical.ID != cert.ID {
		if err := s.files.Delete(stored); err != nil {
			s.logger.Warn("failed to remove duplicate certificate file", zap.String("path", stored), zap.Error(err))
		}
		return canonical, nil
	}

	s.enqueueEmail(canonical.UserID)
	s.notifier.NotifyUser(ctx, userID, models.NotifyCertificateIssued, map[string]interface{}{
		"certificate_id": canonical.CertificateID,
	})
	return canonical, nil
}

// GetByUser returns the student's certificate if issued.
func (s *CertificateService) GetByUser(ctx context.Context, userID string) (*models.Certificate, error) {
	cert, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not issued")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// DownloadToken issues a signed token for fetching the certificate PDF.
func (s *CertificateService) DownloadToken(ctx context.Context, userID string) (*SignedDownload, error) {
	cert, err := s.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(cert.UserID, cert.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// ResendEmail re-queues the certificate email.
func (s *CertificateService) ResendEmail(ctx context.Context, userID string) error {
	if _, err := s.GetByUser(ctx, userID); err != nil {
		return err
	}
	if !s.mail.Enabled() {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "mail delivery is disabled")
	}
	s.enqueueEmail(userID)
	return nil
}

// HandleEmailJob delivers the certificate by email. Registered as the
// handler of the certificate mail queue; failures are retried by the queue
// and never affect issuance.
func (s *CertificateService) HandleEmailJob(ctx context.Context, job jobs.Job) error {
	userID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	cert, err := s.store.FindByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	pdf, err := s.files.Read(cert.FilePath)
	if err != nil {
		return fmt.Errorf("read certificate file: %w", err)
	}

	msg := mailer.Message{
		To:      []string{user.Email},
		Subject: "Your bootcamp completion certificate",
		HTMLBody: fmt.Sprintf(
			"<p>Congratulations %s!</p><p>You completed the program with %d points. Your certificate <strong>%s</strong> is attached.</p>",
			user.FullName, cert.TotalPoints, cert.CertificateID),
		Attachment: &mailer.Attachment{
			Filename:    cert.CertificateID + ".pdf",
			ContentType: "application/pdf",
			Content:     pdf,
		},
	}
	if err := s.mail.Send(msg); err != nil {
		return fmt.Errorf("send certificate mail: %w", err)
	}

	if err := s.store.MarkEmailSent(ctx, cert.ID, true); err != nil {
		s.logger.Warn("failed to mark certificate email sent", zap.String("certificate_id", cert.CertificateID), zap.Error(err))
	}
	return nil
}

func (s *CertificateService) enqueueEmail(userID string) {
	if s.queue == nil || !s.mail.Enabled() {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "certificate-email",
		Payload: userID,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue certificate email", zap.String("user_id", userID), zap.Error(err))
	}
}

// durationDays counts enrolment days rounded up, never less than one.
func durationDays(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}
