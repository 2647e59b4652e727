package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes tags the request's New Relic transaction with the
// authenticated caller and the route's booking or ride ID. It must run after
// nrgin.Middleware and Auth; without a transaction it does nothing.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn != nil {
			if callerID := CallerID(c); callerID != "" {
				txn.AddAttribute("caller_id", callerID)
			}
			if id := c.Param("id"); id != "" {
				txn.AddAttribute("resource_id", id)
			}
		}

		c.Next()

		// Record error if present.
		if txn != nil {
			for _, err := range c.Errors {
				txn.NoticeError(err.Err)
			}
		}
	}
}
