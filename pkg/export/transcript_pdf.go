package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/spicer-enrichment/registrar-api/internal/gradeengine"
)

const (
	validityNotice = "The Certificate is valid when it contains the ink signature of the Registrar and the embossed seal of the College."
	noCorrection   = "ISSUED WITHOUT CORRECTION OR ERASURE"
	notAvailable   = "N/A"
)

// TranscriptLayout carries the institution details printed in the transcript header.
type TranscriptLayout struct {
	InstitutionName string
	AddressLines    []string
	Phone           string
	Title           string
}

// TranscriptRenderer renders transcript records as A4 PDF documents.
type TranscriptRenderer struct {
	layout TranscriptLayout
}

// NewTranscriptRenderer constructs a renderer for the given header layout.
func NewTranscriptRenderer(layout TranscriptLayout) *TranscriptRenderer {
	if layout.Title == "" {
		layout.Title = "Enrichment Transcript"
	}
	return &TranscriptRenderer{layout: layout}
}

// Render returns the PDF bytes for record. completedOn is printed as the completion date.
func (r *TranscriptRenderer) Render(record *gradeengine.TranscriptRecord, completedOn time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := r.RenderTo(buf, record, completedOn); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderTo writes the PDF for record to w.
func (r *TranscriptRenderer) RenderTo(w io.Writer, record *gradeengine.TranscriptRecord, completedOn time.Time) error {
	if record == nil {
		return fmt.Errorf("transcript record required")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.SetCreationDate(completedOn)
	pdf.SetTitle(r.layout.Title, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	r.header(pdf, tr)
	identity(pdf, tr, record.Student, completedOn)

	pdf.SetFont("Times", "BU", 10)
	pdf.CellFormat(0, 6, "ACADEMIC RECORD", "", 1, "C", false, 0, "")
	pdf.Ln(3)

	for _, semester := range record.Semesters {
		semesterTable(pdf, tr, semester)
	}

	pdf.Ln(2)
	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(0, 7, "CGPA : "+fixed2(record.CGPA), "", 1, "C", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Times", "I", 10)
	pdf.MultiCell(0, 5, validityNotice, "", "C", false)
	pdf.CellFormat(0, 5, noCorrection, "", 1, "C", false, 0, "")
	pdf.Ln(22)

	pdf.CellFormat(0, 5, "________________________", "", 1, "L", false, 0, "")
	pdf.SetFont("Times", "I", 15)
	pdf.CellFormat(90, 8, "        Registrar", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Date: ____________", "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render transcript pdf: %w", err)
	}
	return nil
}

func (r *TranscriptRenderer) header(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Times", "B", 16)
	pdf.CellFormat(0, 8, tr(r.layout.InstitutionName), "", 1, "C", false, 0, "")
	pdf.SetFont("Times", "B", 12)
	for _, line := range r.layout.AddressLines {
		pdf.CellFormat(0, 6, tr(line), "", 1, "C", false, 0, "")
	}
	if r.layout.Phone != "" {
		pdf.CellFormat(0, 6, "Phone: "+tr(r.layout.Phone), "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetFont("Times", "BU", 14)
	pdf.CellFormat(0, 8, tr(r.layout.Title), "", 1, "C", false, 0, "")
	pdf.Ln(4)
}

func identity(pdf *gofpdf.Fpdf, tr func(string) string, student gradeengine.StudentIdentity, completedOn time.Time) {
	pdf.SetFont("Times", "", 10)
	lines := []string{
		"Name: " + student.Name,
		"ID No: " + orNA(student.RegistrationNumber),
		"Date of Birth: " + orNA(student.DateOfBirth),
		"Completion Date: " + completedOn.Format("2/1/2006"),
		"Basis of Admission: " + orNA(student.BasisOfAdmission),
	}
	for _, line := range lines {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

var columnWidths = [...]float64{28, 86, 18, 18, 24}

func semesterTable(pdf *gofpdf.Fpdf, tr func(string) string, summary gradeengine.SemesterSummary) {
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(0, 6, "Semester "+string(summary.Semester), "", 1, "L", false, 0, "")
	pdf.Ln(1)

	for i, heading := range []string{"Course No", "Course Title", "Hrs", "Gr", "Pts"} {
		pdf.CellFormat(columnWidths[i], 6, heading, "B", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Courier", "", 10)
	for _, result := range summary.Results {
		cells := []string{
			result.Course.Code,
			tr(result.Course.Title),
			strconv.Itoa(result.Course.CreditHours),
			result.LetterGrade,
			fixed2(result.GradePoints),
		}
		for i, cell := range cells {
			pdf.CellFormat(columnWidths[i], 5.5, cell, "", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(2)
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(0, 5, fmt.Sprintf("Total Credits: %d | Total Grade Points: %s", summary.TotalCreditHours, fixed2(summary.TotalGradePoints)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "SGPA: "+fixed2(summary.SGPA), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Result: "+ResultLabel(summary.Passed), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

// ResultLabel renders a semester pass flag the way transcripts print it.
func ResultLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func fixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func orNA(v string) string {
	if v == "" {
		return notAvailable
	}
	return v
}
