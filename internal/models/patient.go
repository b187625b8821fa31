package models

// Gender enum, values as presented in the UI
type Gender string

const (
	GenderMale   Gender = "masculino"
	GenderFemale Gender = "femenino"
	GenderOther  Gender = "otro"
)

// BloodType represents an ABO/Rh blood type, or "Desconocido" when unknown.
type BloodType string

const (
	BloodAPositive  BloodType = "A+"
	BloodANegative  BloodType = "A-"
	BloodBPositive  BloodType = "B+"
	BloodBNegative  BloodType = "B-"
	BloodABPositive BloodType = "AB+"
	BloodABNegative BloodType = "AB-"
	BloodOPositive  BloodType = "O+"
	BloodONegative  BloodType = "O-"
	BloodUnknown    BloodType = "Desconocido"
)

// Patient represents a patient record. The ID is assigned by the store on
// creation and is immutable afterwards.
type Patient struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	DNI              string    `json:"dni"`
	Age              int       `json:"age"`
	Gender           Gender    `json:"gender"`
	BloodType        BloodType `json:"bloodType"`
	Address          string    `json:"address"`
	Phone            string    `json:"phone"`
	SecondaryContact string    `json:"secondaryContact,omitempty"`
	Email            string    `json:"email"`
	SocialWork       string    `json:"socialWork,omitempty"`
	ChronicDiseases  []string  `json:"chronicDiseases,omitempty"`
}

// FullName returns the display name used for denormalized appointment fields.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
