package handlers

import (
	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// PatientHandler handles patient related requests.
type PatientHandler struct {
	Store store.Store
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(s store.Store) *PatientHandler {
	return &PatientHandler{Store: s}
}

// PatientRequest represents the request body for creating or updating a
// patient. Validation mirrors the patient form: DNI is 7-8 digits, age is a
// positive integer up to 120, enums must match the presented options.
type PatientRequest struct {
	FirstName        string   `json:"firstName" binding:"required,min=2"`
	LastName         string   `json:"lastName" binding:"required,min=2"`
	DNI              string   `json:"dni" binding:"required,number,min=7,max=8"`
	Age              int      `json:"age" binding:"required,gt=0,lte=120"`
	Gender           string   `json:"gender" binding:"required,oneof=masculino femenino otro"`
	BloodType        string   `json:"bloodType" binding:"required,oneof=A+ A- B+ B- AB+ AB- O+ O- Desconocido"`
	Address          string   `json:"address" binding:"required,min=5"`
	Phone            string   `json:"phone" binding:"required,min=7,max=20"`
	SecondaryContact string   `json:"secondaryContact" binding:"omitempty,min=7,max=20"`
	Email            string   `json:"email" binding:"required,email"`
	SocialWork       string   `json:"socialWork"`
	ChronicDiseases  []string `json:"chronicDiseases"`
}

func (req *PatientRequest) toModel() models.Patient {
	return models.Patient{
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		DNI:              req.DNI,
		Age:              req.Age,
		Gender:           models.Gender(req.Gender),
		BloodType:        models.BloodType(req.BloodType),
		Address:          req.Address,
		Phone:            req.Phone,
		SecondaryContact: req.SecondaryContact,
		Email:            req.Email,
		SocialWork:       req.SocialWork,
		ChronicDiseases:  req.ChronicDiseases,
	}
}

// GetPatients handles fetching all patients.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	patients, err := h.Store.ListPatients(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// GetPatientByID handles fetching a single patient by its ID.
func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	patientID := c.Param("id")

	patients, err := h.Store.ListPatients(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	for _, p := range patients {
		if p.ID == patientID {
			utils.Success(c, "Patient fetched successfully", p)
			return
		}
	}
	utils.NotFound(c, "Patient not found")
}

// CreatePatient handles creating a new patient.
func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, err := h.Store.AddPatient(c.Request.Context(), req.toModel())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Created(c, "Patient created successfully", patient)
}

// UpdatePatient handles updating an existing patient. The id never changes;
// updating an unknown id is a no-op.
func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	patientID := c.Param("id")

	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	if err := h.Store.UpdatePatient(c.Request.Context(), patientID, req.toModel()); err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Patient updated successfully", nil)
}

// DeletePatient handles deleting a patient along with their medical entries
// and appointments.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	patientID := c.Param("id")

	if err := h.Store.DeletePatient(c.Request.Context(), patientID); err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Patient deleted successfully", nil)
}
