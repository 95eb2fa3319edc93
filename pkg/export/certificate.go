package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries everything rendered onto the certificate document.
type CertificateData struct {
	StudentName          string
	CertificateID        string
	IssuedAt             time.Time
	TotalPoints          int
	CompletionPercentage float64
	DurationDays         int
	ProgramTitle         string
}

// CertificateRenderer produces completion certificates as PDF documents.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render draws the certificate onto an A4 landscape page and returns the bytes.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.StudentName == "" {
		return nil, fmt.Errorf("certificate requires a student name")
	}
	if data.CertificateID == "" {
		return nil, fmt.Errorf("certificate requires an identifier")
	}

	title := data.ProgramTitle
	if title == "" {
		title = "Full-Stack Bootcamp Program"
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()

	pdf.SetLineWidth(1.2)
	pdf.SetDrawColor(30, 30, 90)
	pdf.Rect(10, 10, pageW-20, 190, "D")

	pdf.SetY(35)
	pdf.SetFont("Times", "B", 32)
	pdf.SetTextColor(30, 30, 90)
	pdf.CellFormat(0, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Arial", "", 13)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 8, "This certificate is proudly presented to", "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Times", "BI", 28)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 14, data.StudentName, "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Arial", "", 13)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 8, fmt.Sprintf("for successfully completing the %s", title), "", 1, "C", false, 0, "")

	pdf.Ln(6)
	pdf.SetFont("Arial", "", 11)
	summary := fmt.Sprintf("Total points: %d    Completion: %.1f%%    Duration: %d days",
		data.TotalPoints, data.CompletionPercentage, data.DurationDays)
	pdf.CellFormat(0, 7, summary, "", 1, "C", false, 0, "")

	pdf.Ln(14)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("Issued on %s", data.IssuedAt.Format("2 January 2006")), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Certificate ID: %s", data.CertificateID), "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
