package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/middleware"
)

// User-facing messages.
const (
	msgInvalidSymptoms   = "Geçerli belirtiler listesi sağlanmalıdır."
	msgNoMatch           = "Belirtilerinizle eşleşen hastalık bulunamadı."
	msgDiagnosisNotFound = "Hastalık bulunamadı"
	msgClinicNotFound    = "Poliklinik bulunamadı"
	msgInvalidID         = "Geçerli bir kimlik sağlanmalıdır."
	msgServerError       = "Sunucu hatası"
)

// handlePredict handles POST /tahmin. The response is the ranked array.
func (s *Server) handlePredict(c *gin.Context) {
	var req domain.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewValidationError("body", "must be a JSON object", nil), msgInvalidSymptoms, "")
		return
	}

	predictions, err := s.deps.Predictor.PredictRaw(c.Request.Context(), req.Symptoms)
	if err != nil {
		s.respondError(c, err, msgInvalidSymptoms, "")
		return
	}
	c.JSON(http.StatusOK, predictions)
}

func (s *Server) handleListSymptoms(c *gin.Context) {
	symptoms, err := s.deps.Catalog.ListSymptoms(c.Request.Context())
	if err != nil {
		s.respondError(c, err, msgInvalidID, "")
		return
	}
	c.JSON(http.StatusOK, symptoms)
}

func (s *Server) handleListDiagnoses(c *gin.Context) {
	diagnoses, err := s.deps.Catalog.ListDiagnoses(c.Request.Context())
	if err != nil {
		s.respondError(c, err, msgInvalidID, "")
		return
	}
	c.JSON(http.StatusOK, diagnoses)
}

func (s *Server) handleListClinics(c *gin.Context) {
	clinics, err := s.deps.Catalog.ListClinics(c.Request.Context())
	if err != nil {
		s.respondError(c, err, msgInvalidID, "")
		return
	}
	c.JSON(http.StatusOK, clinics)
}

func (s *Server) handleGetDiagnosis(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	detail, err := s.deps.Catalog.DiagnosisDetail(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, msgInvalidID, msgDiagnosisNotFound)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) handleGetClinic(c *gin.Context) {
	id, ok := s.pathID(c)
	if !ok {
		return
	}
	detail, err := s.deps.Catalog.ClinicDetail(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, msgInvalidID, msgClinicNotFound)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// pathID parses the :id parameter, answering 400 when it is not a positive
// integer.
func (s *Server) pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, domain.NewValidationError("id", "must be a positive integer", raw), msgInvalidID, "")
		return 0, false
	}
	return id, true
}

// handleHealth reports store and cache reachability. A failing store makes
// the service unhealthy; a failing cache only degrades it.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := gin.H{"database": "ok"}

	if err := s.deps.Catalog.Ping(ctx); err != nil {
		s.logger.WithError(err).Warn("Health check: store unreachable")
		checks["database"] = "unreachable"
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if s.deps.Cache != nil {
		checks["cache"] = "ok"
		if err := s.deps.Cache.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check: cache unreachable")
			checks["cache"] = "unreachable"
			if code == http.StatusOK {
				status = "degraded"
			}
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// respondError maps err onto a status and a stable code. Store failures are
// logged in full but only a generic message leaves the process.
func (s *Server) respondError(c *gin.Context, err error, invalidMsg, notFoundMsg string) {
	requestID := c.GetString(middleware.RequestIDKey)
	_ = c.Error(err)

	var (
		status  int
		code    string
		message string
		details string
	)

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		status, code, message, details = http.StatusBadRequest, domain.ErrCodeValidation, invalidMsg, ve.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, domain.ErrCodeValidation, invalidMsg
	case errors.Is(err, domain.ErrNoMatch):
		status, code, message = http.StatusNotFound, domain.ErrCodeNoMatch, msgNoMatch
	case errors.Is(err, domain.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = msgServerError
		}
		status, code, message = http.StatusNotFound, domain.ErrCodeNotFound, notFoundMsg
	case errors.Is(err, domain.ErrStore):
		status, code, message = http.StatusInternalServerError, domain.ErrCodeStore, msgServerError
	default:
		status, code, message = http.StatusInternalServerError, domain.ErrCodeInternalServer, msgServerError
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       c.Request.URL.Path,
			"code":       code,
		}).WithError(err).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID))
}
