package app

import (
	"github.com/gin-gonic/gin"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/storage"
	"pdf-query-system/routes"
	"pdf-query-system/services"
)

// Deps carries the process-wide singletons handed to route constructors.
type Deps struct {
	Config  *config.Config
	DB      *database.Manager
	Storage storage.Store
	PDFs    *services.PDFService
	Queries *services.QueryService
}

// RouteGroups returns the pdf and query groups in mount order.
func (d *Deps) RouteGroups() []RouteGroup {
	return []RouteGroup{
		{Tag: "pdf", Register: func(rg *gin.RouterGroup) {
			routes.SetupPDFRoutes(rg, d.PDFs, d.Config.MaxFileSize)
		}},
		{Tag: "query", Register: func(rg *gin.RouterGroup) {
			routes.SetupQueryRoutes(rg, d.Queries, d.PDFs)
		}},
	}
}
