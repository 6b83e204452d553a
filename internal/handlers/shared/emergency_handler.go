package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"telecare-sos/internal/middleware"
	"telecare-sos/internal/models"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/internal/services"
	"telecare-sos/internal/utils"
	"telecare-sos/internal/validators"
	"telecare-sos/pkg/logger"

	"github.com/gin-gonic/gin"
)

type EmergencyHandler struct {
	intake   services.IntakeService
	contacts interfaces.ContactRepository
	logger   *logger.Logger
	now      func() time.Time
}

func NewEmergencyHandler(intake services.IntakeService, contacts interfaces.ContactRepository, log *logger.Logger) *EmergencyHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &EmergencyHandler{
		intake:   intake,
		contacts: contacts,
		logger:   log.WithField("component", "emergency_handler"),
		now:      time.Now,
	}
}

// SendSOSAlert records an alert from a device. Redelivery of a known alertId
// answers 200 with the original response; a new alert answers 201.
func (h *EmergencyHandler) SendSOSAlert(c *gin.Context) {
	var payload models.SOSAlertPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if errs := validators.ValidateSOSAlert(&payload, h.now()); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	if userID := c.GetString(middleware.ContextUserID); userID != "" && payload.UserID == nil {
		payload.UserID = &userID
	}

	response, duplicate, err := h.intake.ReceiveAlert(c.Request.Context(), &payload)
	if err != nil {
		h.logger.WithAlertID(payload.AlertID).WithError(err).Error("Failed to record SOS alert")
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_ALERT_FAILED", "Failed to record SOS alert")
		return
	}

	if duplicate {
		utils.SuccessResponse(c, "SOS alert already received", response)
		return
	}
	utils.CreatedResponse(c, "SOS alert received", response)
}

func (h *EmergencyHandler) Health(c *gin.Context) {
	if err := h.intake.Health(c.Request.Context()); err != nil {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "UNHEALTHY", "Emergency service unavailable")
		return
	}
	utils.SuccessResponse(c, "Emergency service is healthy", gin.H{"status": "healthy"})
}

// TestSystem runs the self-check. A degraded check is still a successful
// response; callers read the status field.
func (h *EmergencyHandler) TestSystem(c *gin.Context) {
	check := h.intake.SelfTest(c.Request.Context())
	utils.SuccessResponse(c, "Emergency system check completed", check)
}

func (h *EmergencyHandler) GetContacts(c *gin.Context) {
	userID := c.Param("userId")
	if !h.mayAccessUser(c, userID) {
		utils.ForbiddenResponse(c)
		return
	}

	contacts, err := h.intake.GetContacts(c.Request.Context(), userID)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to load emergency contacts")
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACTS_FAILED", "Failed to load emergency contacts")
		return
	}
	utils.SuccessResponse(c, "Emergency contacts retrieved", contacts)
}

func (h *EmergencyHandler) UpsertContact(c *gin.Context) {
	userID := c.Param("userId")
	if !h.mayAccessUser(c, userID) {
		utils.ForbiddenResponse(c)
		return
	}

	var contact models.EmergencyContact
	if err := c.ShouldBindJSON(&contact); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	contact.UserID = userID
	if errs := validators.ValidateContact(&contact); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.Details())
		return
	}

	if err := h.contacts.Upsert(c.Request.Context(), &contact); err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to save emergency contact")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.SuccessResponse(c, "Emergency contact saved", contact)
}

func (h *EmergencyHandler) DeleteContact(c *gin.Context) {
	userID := c.Param("userId")
	if !h.mayAccessUser(c, userID) {
		utils.ForbiddenResponse(c)
		return
	}

	if err := h.contacts.Delete(c.Request.Context(), userID, c.Param("number")); err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to delete emergency contact")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.SuccessResponse(c, "Emergency contact deleted", nil)
}

func (h *EmergencyHandler) ListActiveAlerts(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	alerts, err := h.intake.ActiveAlerts(c.Request.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list active alerts")
		utils.InternalServerErrorResponse(c)
		return
	}
	if alerts == nil {
		alerts = []*models.SOSRecord{}
	}
	utils.SuccessResponse(c, "Active alerts retrieved", alerts)
}

func (h *EmergencyHandler) AlertHistory(c *gin.Context) {
	userID := c.Param("userId")
	if !h.mayAccessUser(c, userID) {
		utils.ForbiddenResponse(c)
		return
	}
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	alerts, err := h.intake.AlertHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.WithUserID(userID).WithError(err).Error("Failed to load alert history")
		utils.InternalServerErrorResponse(c)
		return
	}
	if alerts == nil {
		alerts = []*models.SOSRecord{}
	}
	utils.SuccessResponse(c, "Alert history retrieved", alerts)
}

func limitParam(c *gin.Context) (int, bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		utils.BadRequestResponse(c, "limit must be between 1 and 500")
		return 0, false
	}
	return limit, true
}

type statusRequest struct {
	Status models.SOSStatus `json:"status" binding:"required,oneof=active resolved false_alarm"`
}

func (h *EmergencyHandler) UpdateAlertStatus(c *gin.Context) {
	var request statusRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	alertID := c.Param("alertId")
	err := h.intake.UpdateStatus(c.Request.Context(), alertID, request.Status)
	if errors.Is(err, interfaces.ErrAlertNotFound) {
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", "Alert not found")
		return
	}
	if err != nil {
		h.logger.WithAlertID(alertID).WithError(err).Error("Failed to update alert status")
		utils.InternalServerErrorResponse(c)
		return
	}
	utils.SuccessResponse(c, "Alert status updated", gin.H{"alertId": alertID, "status": request.Status})
}

// mayAccessUser lets patients read only their own contacts. Unauthenticated
// callers are allowed because devices fetch contacts before login.
func (h *EmergencyHandler) mayAccessUser(c *gin.Context, userID string) bool {
	callerType := c.GetString(middleware.ContextUserType)
	if callerType == "" || callerType == utils.UserTypeOperator || callerType == utils.UserTypeAdmin {
		return true
	}
	return c.GetString(middleware.ContextUserID) == userID
}
