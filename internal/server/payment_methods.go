package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPaymentMethods returns the patient's active instruments, default first.
func (s *Server) ListPaymentMethods(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	methods, err := s.billingSvc.ListPaymentMethods(c.Request.Context(), centerID, patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": methods})
}

// SetDefaultPaymentMethod makes one instrument the patient's default.
func (s *Server) SetDefaultPaymentMethod(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	methodID, err := parseSnowflake(c.Param("method_id"), "method_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.billingSvc.SetDefaultPaymentMethod(c.Request.Context(), centerID, patientID, methodID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DeactivatePaymentMethod soft-deletes an instrument. History keeps its
// reference; the method just disappears from reads.
func (s *Server) DeactivatePaymentMethod(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	methodID, err := parseSnowflake(c.Param("method_id"), "method_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.billingSvc.DeactivatePaymentMethod(c.Request.Context(), centerID, patientID, methodID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
