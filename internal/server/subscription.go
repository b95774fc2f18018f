package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetActiveSubscription returns the active or trialing subscription. A patient
// without one gets a null payload, not an error.
func (s *Server) GetActiveSubscription(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	sub, err := s.billingSvc.GetActiveSubscription(c.Request.Context(), centerID, patientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}

type cancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// CancelSubscription cancels immediately or flags cancellation at period end.
// An empty body means immediate cancellation.
func (s *Server) CancelSubscription(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	var req cancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.billingSvc.CancelSubscription(c.Request.Context(), centerID, patientID, req.AtPeriodEnd)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sub})
}
