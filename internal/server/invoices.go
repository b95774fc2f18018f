package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetInvoice fetches a billing document by id within the patient scope.
func (s *Server) GetInvoice(c *gin.Context) {
	centerID, patientID := scopeFromPath(c)

	invoiceID, err := parseSnowflake(c.Param("invoice_id"), "invoice_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.billingSvc.GetInvoice(c.Request.Context(), centerID, patientID, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
