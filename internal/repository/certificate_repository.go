package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

const certificateColumns = `id, user_id, certificate_id, file_path, total_points, completion_percentage, duration_days, email_sent, issued_at`

// CertificateRepository stores issued certificates, one per student.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository creates a new certificate repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindByUser returns the student's certificate if one exists.
func (r *CertificateRepository) FindByUser(ctx context.Context, userID string) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE user_id = $1 LIMIT 1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

// Create inserts a certificate. The unique index on user_id backs the
// issue-at-most-once guarantee.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.IssuedAt.IsZero() {
		cert.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, user_id, certificate_id, file_path, total_points, completion_percentage, duration_days, email_sent, issued_at)
        VALUES (:id, :user_id, :certificate_id, :file_path, :total_points, :completion_percentage, :duration_days, :email_sent, :issued_at)
        ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// MarkEmailSent records successful delivery on the certificate row.
func (r *CertificateRepository) MarkEmailSent(ctx context.Context, id string, sent bool) error {
	const query = `UPDATE certificates SET email_sent = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, sent); err != nil {
		return fmt.Errorf("mark certificate email: %w", err)
	}
	return nil
}

// Count returns the number of issued certificates.
func (r *CertificateRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM certificates`); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return total, nil
}
