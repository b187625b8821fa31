package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"agenda-medica-server/internal/models"
	"agenda-medica-server/internal/store"
	"agenda-medica-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Store store.Store
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(s store.Store) *AppointmentHandler {
	return &AppointmentHandler{Store: s}
}

// CreateAppointmentRequest represents the request body for creating an
// appointment. The stored date-time is assembled from the calendar date and
// the HH:MM time of day.
type CreateAppointmentRequest struct {
	PatientID string `json:"patientId" binding:"required"`
	Date      string `json:"date" binding:"required,datetime=2006-01-02"`
	Time      string `json:"time" binding:"required,datetime=15:04"`
	Reason    string `json:"reason" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=programada completada cancelada"`
}

// UpdateAppointmentRequest represents the request body for editing an
// appointment. The patient reference is immutable once created, so it is not
// accepted here.
type UpdateAppointmentRequest struct {
	Date   string `json:"date" binding:"required,datetime=2006-01-02"`
	Time   string `json:"time" binding:"required,datetime=15:04"`
	Reason string `json:"reason" binding:"required"`
	Status string `json:"status" binding:"required,oneof=programada completada cancelada"`
}

func combineRequestDate(date, hhmm string) (time.Time, error) {
	day, err := time.ParseInLocation(models.EntryDateLayout, date, time.Local)
	if err != nil {
		return time.Time{}, err
	}
	return models.CombineDateTime(day, hhmm)
}

// GetAppointments handles fetching all appointments, ascending by date-time.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	appointments, err := h.Store.ListAppointments(c.Request.Context())
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// CreateAppointment handles creating a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	date, err := combineRequestDate(req.Date, req.Time)
	if err != nil {
		utils.BadRequest(c, "Invalid appointment date or time: "+err.Error())
		return
	}

	appointment, err := h.Store.AddAppointment(c.Request.Context(), models.Appointment{
		PatientID: req.PatientID,
		Date:      date,
		Reason:    req.Reason,
		Status:    models.AppointmentStatus(req.Status),
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appointment)
}

// UpdateAppointment handles editing an appointment's date, reason and
// status. Editing an unknown id is a no-op.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	appointmentID := c.Param("id")

	var req UpdateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	date, err := combineRequestDate(req.Date, req.Time)
	if err != nil {
		utils.BadRequest(c, "Invalid appointment date or time: "+err.Error())
		return
	}

	err = h.Store.UpdateAppointment(c.Request.Context(), appointmentID, models.Appointment{
		Date:   date,
		Reason: req.Reason,
		Status: models.AppointmentStatus(req.Status),
	})
	if err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Appointment updated successfully", nil)
}

// DeleteAppointment handles deleting an appointment.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appointmentID := c.Param("id")

	if err := h.Store.DeleteAppointment(c.Request.Context(), appointmentID); err != nil {
		respondStoreError(c, err)
		return
	}
	utils.Success(c, "Appointment deleted successfully", nil)
}
