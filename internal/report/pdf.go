package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/respireai/respire-web/internal/diagnosis"
	"github.com/respireai/respire-web/internal/errors"
)

// WritePDF writes the PDF report document. Content mirrors the text
// report; only the layout differs.
func WritePDF(w io.Writer, d *Data) error {
	if err := d.Validate(); err != nil {
		return err
	}

	clinic, reportID, generated := d.header()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(clinic+" Respiratory Analysis Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, clinic+" - Respiratory Analysis Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Report ID: "+reportID, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, "Generated: "+generated, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section := func(title string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
	}
	field := func(name, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(48, 6, name, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, value, "", "L", false)
	}

	if p := d.Patient; p != nil {
		section("Patient Information")
		field("Name", p.Name)
		field("Age", fmt.Sprintf("%d", p.Age))
		field("Gender", p.Gender)
		field("Patient ID", p.PatientID)
		if p.DateOfBirth != "" {
			field("Date of Birth", p.DateOfBirth)
		}
		if p.ContactNumber != "" {
			field("Contact Number", p.ContactNumber)
		}
		field("Email", p.Email)
		if p.MedicalHistory != "" {
			field("Medical History", p.MedicalHistory)
		}
		if p.CurrentMedications != "" {
			field("Medications", p.CurrentMedications)
		}
		if p.Allergies != "" {
			field("Allergies", p.Allergies)
		}
		pdf.Ln(3)
	}

	section("Analysis Details")
	field("File Name", d.FileName)
	field("File Size", d.FileSize)
	if !d.UploadTime.IsZero() {
		field("Upload Time", d.UploadTime.Format("2006-01-02 15:04:05"))
	}
	field("Analysis Duration", d.AnalysisTime)
	pdf.Ln(3)

	r := d.Result
	section("Results")
	field("Predicted Condition", diagnosis.Label(r.PredictedClass))
	field("Description", diagnosis.Description(r.PredictedClass))
	field("Confidence", fmt.Sprintf("%s (%s)",
		diagnosis.FormatPercent(r.Confidence), diagnosis.ConfidenceBand(r.Confidence)))
	pdf.Ln(3)

	section("All Class Probabilities")
	for _, row := range diagnosis.ProbabilityRows(r.RawPredictions) {
		pdf.CellFormat(120, 6, row.Label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, row.Percent, "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "DISCLAIMER: "+Disclaimer, "T", "L", false)

	if err := pdf.Output(w); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryReportExport).
			Context("format", "pdf").
			Build()
	}
	return nil
}
