package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/gin-gonic/gin"
)

// SearchHistory pages through the transition ledger for compliance review.
func (s *Server) SearchHistory(c *gin.Context) {
	filter := historydomain.Filter{
		Organization: c.Query("organization"),
	}
	if raw := c.Query("export_id"); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: malformed export id", exportdomain.ErrValidation))
			return
		}
		filter.ExportID = id
	}
	if raw := c.Query("actor_id"); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: malformed actor id", exportdomain.ErrValidation))
			return
		}
		filter.ActorID = id
	}
	var err error
	if filter.Since, filter.Until, err = windowFromQuery(c); err != nil {
		AbortWithError(c, err)
		return
	}

	records, pageInfo, err := s.history.Search(c.Request.Context(), filter, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, records, pageInfo)
}

// ComplianceExport streams the ledger slice as a downloadable document with
// its checksum in a response header.
func (s *Server) ComplianceExport(c *gin.Context) {
	req := historydomain.ExportRequest{
		Organization: c.Query("organization"),
		Format:       historydomain.ExportFormat(c.DefaultQuery("format", "csv")),
	}
	if raw := c.Query("export_id"); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: malformed export id", exportdomain.ErrValidation))
			return
		}
		req.ExportID = id
	}
	var err error
	if req.Since, req.Until, err = windowFromQuery(c); err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.history.ComplianceExport(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", exportdomain.ErrValidation, err))
		return
	}

	contentType := "text/csv"
	ext := "csv"
	if res.Format == historydomain.ExportFormatJSON {
		contentType = "application/json"
		ext = "json"
	}
	c.Header("X-Checksum-SHA256", res.Checksum)
	c.Header("X-Record-Count", fmt.Sprintf("%d", res.Count))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="transition-ledger.%s"`, ext))
	c.Data(http.StatusOK, contentType, res.Data)
}

func windowFromQuery(c *gin.Context) (time.Time, time.Time, error) {
	var since, until time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return since, until, fmt.Errorf("%w: since must be RFC3339", exportdomain.ErrValidation)
		}
		since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return since, until, fmt.Errorf("%w: until must be RFC3339", exportdomain.ErrValidation)
		}
		until = t
	}
	return since, until, nil
}
