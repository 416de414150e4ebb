// Package patient defines the patient profile record collected at
// registration and attached to exported reports.
package patient

import (
	"encoding/json"

	"github.com/respireai/respire-web/internal/errors"
)

// Gender values accepted by the registration form.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Profile is the patient record created at registration. It is stored as a
// single serialized value in the session and read back verbatim on the
// results page; there is no update or delete path.
type Profile struct {
	Name               string `json:"name"`
	Age                int    `json:"age"`
	Gender             string `json:"gender"`
	PatientID          string `json:"patientId"`
	DateOfBirth        string `json:"dateOfBirth"`
	ContactNumber      string `json:"contactNumber"`
	Email              string `json:"email"`
	Address            string `json:"address"`
	MedicalHistory     string `json:"medicalHistory"`
	CurrentMedications string `json:"currentMedications"`
	Allergies          string `json:"allergies"`
}

// Validate checks the required registration fields. Name, age, patient id
// and email must be present; everything else is optional.
func (p *Profile) Validate() error {
	if p.Name == "" || p.Age <= 0 || p.PatientID == "" || p.Email == "" {
		return errors.ValidationError("Please fill in all required fields")
	}
	switch p.Gender {
	case GenderMale, GenderFemale, GenderOther, "":
	default:
		return errors.ValidationError("Invalid gender selection")
	}
	return nil
}

// Marshal serializes the profile to its stored JSON form.
func (p *Profile) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.New(err).
			Component("patient").
			Category(errors.CategorySession).
			Build()
	}
	return string(data), nil
}

// Unmarshal decodes a stored profile. An empty input yields nil without
// error, matching an absent profile.
func Unmarshal(data string) (*Profile, error) {
	if data == "" {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, errors.New(err).
			Component("patient").
			Category(errors.CategorySession).
			Build()
	}
	return &p, nil
}
