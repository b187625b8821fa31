package handlers

import (
	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// MedicalEntryHandler handles medical history related requests.
type MedicalEntryHandler struct {
	Store store.Store
}

// NewMedicalEntryHandler creates a new MedicalEntryHandler.
func NewMedicalEntryHandler(s store.Store) *MedicalEntryHandler {
	return &MedicalEntryHandler{Store: s}
}

// CreateMedicalEntryRequest represents the request body for adding a medical
// history entry.
type CreateMedicalEntryRequest struct {
	PatientID string `json:"patientId" binding:"required"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	Notes     string `json:"notes" binding:"required,min=10"`
}

// UpdateMedicalEntryRequest represents the request body for editing an
// entry. Entries stay with the patient they were written for.
type UpdateMedicalEntryRequest struct {
	Date  string `json:"date" binding:"required,datetime=2006-01-02"`
	Notes string `json:"notes" binding:"required,min=10"`
}

// GetMedicalEntries handles fetching medical entries, newest first. An
// optional patientId query parameter narrows the result to one patient.
func (h *MedicalEntryHandler) GetMedicalEntries(c *gin.Context) {
	entries, err := h.Store.ListMedicalEntries(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}

	if patientID := c.Query("patientId"); patientID != "" {
		filtered := make([]models.MedicalEntry, 0, len(entries))
		for _, e := range entries {
			if e.PatientID == patientID {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	utils.Success(c, "Medical entries fetched successfully", entries)
}

// CreateMedicalEntry handles adding a new medical history entry.
func (h *MedicalEntryHandler) CreateMedicalEntry(c *gin.Context) {
	var req CreateMedicalEntryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	entry, err := h.Store.AddMedicalEntry(c.Request.Context(), models.MedicalEntry{
		PatientID: req.PatientID,
		Date:      req.Date,
		Notes:     req.Notes,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Created(c, "Medical entry created successfully", entry)
}

// UpdateMedicalEntry handles editing an entry's date and notes. Editing an
// unknown id is a no-op.
func (h *MedicalEntryHandler) UpdateMedicalEntry(c *gin.Context) {
	entryID := c.Param("id")

	var req UpdateMedicalEntryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	err := h.Store.UpdateMedicalEntry(c.Request.Context(), entryID, models.MedicalEntry{
		Date:  req.Date,
		Notes: req.Notes,
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Medical entry updated successfully", nil)
}

// DeleteMedicalEntry handles deleting a medical history entry.
func (h *MedicalEntryHandler) DeleteMedicalEntry(c *gin.Context) {
	entryID := c.Param("id")

	if err := h.Store.DeleteMedicalEntry(c.Request.Context(), entryID); err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Medical entry deleted successfully", nil)
}
