// Package report turns a prediction outcome, its timing metadata and the
// optional patient profile into downloadable text or PDF documents.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/respireai/respire-web/internal/diagnosis"
	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/respireai/respire-web/internal/patient"
)

// Disclaimer printed at the bottom of every report.
const Disclaimer = "This is an early diagnosis tool. For medical diagnosis, please consult a healthcare professional."

// Data is the composite record a report is generated from.
type Data struct {
	Result       *inference.PredictionResult
	FileName     string
	FileSize     string // human readable
	UploadTime   time.Time
	AnalysisTime string // human readable duration
	Patient      *patient.Profile
	ClinicName   string
}

// Validate checks that the data can produce a report.
func (d *Data) Validate() error {
	if d.Result == nil {
		return errors.Newf("no prediction result to export").
			Component("report").
			Category(errors.CategoryReportExport).
			Build()
	}
	return nil
}

// header returns the identifying lines shared by both formats.
func (d *Data) header() (clinic, reportID, generated string) {
	clinic = d.ClinicName
	if clinic == "" {
		clinic = "RespireAI"
	}
	return clinic, uuid.NewString(), time.Now().Format("2006-01-02 15:04:05")
}

// WriteText writes the plain-text report document.
func WriteText(w io.Writer, d *Data) error {
	if err := d.Validate(); err != nil {
		return err
	}

	clinic, reportID, generated := d.header()
	rule := strings.Repeat("=", 56)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "%s - RESPIRATORY ANALYSIS REPORT\n", strings.ToUpper(clinic))
	fmt.Fprintf(&b, "%s\n\n", rule)
	fmt.Fprintf(&b, "Report ID : %s\n", reportID)
	fmt.Fprintf(&b, "Generated : %s\n\n", generated)

	if p := d.Patient; p != nil {
		fmt.Fprintf(&b, "PATIENT INFORMATION\n")
		fmt.Fprintf(&b, "-------------------\n")
		fmt.Fprintf(&b, "Name           : %s\n", p.Name)
		fmt.Fprintf(&b, "Age            : %d\n", p.Age)
		fmt.Fprintf(&b, "Gender         : %s\n", p.Gender)
		fmt.Fprintf(&b, "Patient ID     : %s\n", p.PatientID)
		if p.DateOfBirth != "" {
			fmt.Fprintf(&b, "Date of Birth  : %s\n", p.DateOfBirth)
		}
		if p.ContactNumber != "" {
			fmt.Fprintf(&b, "Contact Number : %s\n", p.ContactNumber)
		}
		fmt.Fprintf(&b, "Email          : %s\n", p.Email)
		if p.Address != "" {
			fmt.Fprintf(&b, "Address        : %s\n", p.Address)
		}
		if p.MedicalHistory != "" {
			fmt.Fprintf(&b, "Medical History: %s\n", p.MedicalHistory)
		}
		if p.CurrentMedications != "" {
			fmt.Fprintf(&b, "Medications    : %s\n", p.CurrentMedications)
		}
		if p.Allergies != "" {
			fmt.Fprintf(&b, "Allergies      : %s\n", p.Allergies)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "ANALYSIS DETAILS\n")
	fmt.Fprintf(&b, "----------------\n")
	fmt.Fprintf(&b, "File Name         : %s\n", d.FileName)
	fmt.Fprintf(&b, "File Size         : %s\n", d.FileSize)
	if !d.UploadTime.IsZero() {
		fmt.Fprintf(&b, "Upload Time       : %s\n", d.UploadTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(&b, "Analysis Duration : %s\n\n", d.AnalysisTime)

	r := d.Result
	band := diagnosis.ConfidenceBand(r.Confidence)
	fmt.Fprintf(&b, "RESULTS\n")
	fmt.Fprintf(&b, "-------\n")
	fmt.Fprintf(&b, "Predicted Condition : %s\n", diagnosis.Label(r.PredictedClass))
	fmt.Fprintf(&b, "Description         : %s\n", diagnosis.Description(r.PredictedClass))
	fmt.Fprintf(&b, "Confidence          : %s (%s)\n\n", diagnosis.FormatPercent(r.Confidence), band)

	fmt.Fprintf(&b, "ALL CLASS PROBABILITIES\n")
	fmt.Fprintf(&b, "-----------------------\n")
	for _, row := range diagnosis.ProbabilityRows(r.RawPredictions) {
		fmt.Fprintf(&b, "%-42s %s\n", row.Label, row.Percent)
	}
	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "DISCLAIMER: %s\n", Disclaimer)
	fmt.Fprintf(&b, "%s\n", rule)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.New(err).
			Component("report").
			Category(errors.CategoryReportExport).
			Context("format", "text").
			Build()
	}
	return nil
}
