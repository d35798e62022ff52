package server

import (
	"fmt"
	"net/http"

	"github.com/abduss/crmassets/internal/diagnostics"
	"github.com/gin-gonic/gin"
)

// logResolver picks the log a request works on. It writes the error
// response itself when it returns false.
type logResolver func(c *gin.Context) (*diagnostics.Log, bool)

func fixedLog(diag *diagnostics.Log) logResolver {
	return func(*gin.Context) (*diagnostics.Log, bool) { return diag, true }
}

func registerDiagnosticsRoutes(group *gin.RouterGroup, resolve logResolver) {
	group.GET("/diagnostics", func(c *gin.Context) {
		diag, ok := resolve(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": diag.List()})
	})

	group.DELETE("/diagnostics", func(c *gin.Context) {
		diag, ok := resolve(c)
		if !ok {
			return
		}
		diag.Clear()
		c.Status(http.StatusNoContent)
	})

	group.GET("/diagnostics/export", func(c *gin.Context) {
		diag, ok := resolve(c)
		if !ok {
			return
		}
		doc, err := diag.Export()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export diagnostics"})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
		c.Data(http.StatusOK, "application/json", doc.Body)
	})
}
