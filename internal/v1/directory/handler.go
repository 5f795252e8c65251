package directory

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Handler exposes the doctor directory over HTTP.
type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// ListResponse is the GET /api/v1/doctors body.
type ListResponse struct {
	Doctors []Doctor `json:"doctors"`
}

// List handles GET /api/v1/doctors.
// Query parameters:
//   - specialty: comma-separated specialty filter
//   - available: "true" restricts to doctors available right now
func (h *Handler) List(c *gin.Context) {
	doctors := h.catalog.All()

	if raw := c.Query("specialty"); raw != "" {
		doctors = h.catalog.BySpecialty(strings.Split(raw, ",")...)
	}

	if c.Query("available") == "true" {
		filtered := doctors[:0:0]
		for _, d := range doctors {
			if d.Availability == Available {
				filtered = append(filtered, d)
			}
		}
		doctors = filtered
	}

	if doctors == nil {
		doctors = []Doctor{}
	}
	c.JSON(http.StatusOK, ListResponse{Doctors: doctors})
}
