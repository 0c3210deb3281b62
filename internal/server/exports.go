package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/authz"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	exportdomain "github.com/exportflowlabs/exportflow/internal/export/domain"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

type createExportRequest struct {
	ExporterName       string   `json:"exporter_name" binding:"required"`
	CoffeeType         string   `json:"coffee_type" binding:"required"`
	QuantityKg         float64  `json:"quantity_kg" binding:"required"`
	DestinationCountry string   `json:"destination_country" binding:"required"`
	Buyer              string   `json:"buyer"`
	EstimatedValueUSD  float64  `json:"estimated_value_usd" binding:"required"`
	DocumentRefs       []string `json:"document_refs"`
}

type actionRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`

	LotVerificationID  string     `json:"lot_verification_id"`
	LicenseNo          string     `json:"license_no"`
	QualityCertID      string     `json:"quality_cert_id"`
	QualityGrade       string     `json:"quality_grade"`
	OriginCertID       string     `json:"origin_cert_id"`
	ContractNo         string     `json:"contract_no"`
	DocumentRef        string     `json:"document_ref"`
	FXApprovalID       string     `json:"fx_approval_id"`
	FXApprovedValueUSD *float64   `json:"fx_approved_value_usd"`
	DeclarationNo      string     `json:"declaration_no"`
	VesselName         string     `json:"vessel_name"`
	DepartureDate      *time.Time `json:"departure_date"`
	PaymentRef         string     `json:"payment_ref"`

	Fields *exportdomain.UpdateFields `json:"fields"`
}

func (r actionRequest) payload() exportdomain.Payload {
	return exportdomain.Payload{
		Reason:             r.Reason,
		Notes:              r.Notes,
		LotVerificationID:  r.LotVerificationID,
		LicenseNo:          r.LicenseNo,
		QualityCertID:      r.QualityCertID,
		QualityGrade:       r.QualityGrade,
		OriginCertID:       r.OriginCertID,
		ContractNo:         r.ContractNo,
		DocumentRef:        r.DocumentRef,
		FXApprovalID:       r.FXApprovalID,
		FXApprovedValueUSD: r.FXApprovedValueUSD,
		DeclarationNo:      r.DeclarationNo,
		VesselName:         r.VesselName,
		DepartureDate:      r.DepartureDate,
		PaymentRef:         r.PaymentRef,
		Fields:             r.Fields,
	}
}

func (s *Server) CreateExport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrBadRequest)
		return
	}

	e, err := s.exports.Create(c.Request.Context(), exportdomain.CreateInput{
		Actor:              actor,
		ExporterName:       req.ExporterName,
		CoffeeType:         req.CoffeeType,
		QuantityKg:         req.QuantityKg,
		DestinationCountry: req.DestinationCountry,
		Buyer:              req.Buyer,
		EstimatedValueUSD:  req.EstimatedValueUSD,
		DocumentRefs:       req.DocumentRefs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, e)
}

func (s *Server) UpdateExport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var fields exportdomain.UpdateFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		AbortWithError(c, ErrBadRequest)
		return
	}

	e, err := s.exports.Update(c.Request.Context(), id, actor, fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, e)
}

func (s *Server) GetExport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	e, err := s.exports.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if actor.Role == authz.RoleExporter && e.ExporterID != actor.ID {
		AbortWithError(c, exportdomain.ErrNotFound)
		return
	}
	respondData(c, e)
}

func (s *Server) ListExports(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	filter := exportdomain.ListFilter{
		SortBy:  c.Query("sort_by"),
		OrderBy: c.Query("order_by"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := catalog.Parse(raw)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", exportdomain.ErrValidation, err))
			return
		}
		filter.Status = status
	}
	// Exporters only ever see their own exports.
	if actor.Role == authz.RoleExporter {
		filter.ExporterID = actor.ID
	}

	items, pageInfo, err := s.exports.List(c.Request.Context(), filter, pageFromQuery(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, items, pageInfo)
}

func (s *Server) ApplyAction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	action, err := catalog.ParseAction(c.Param("action"))
	if err != nil {
		AbortWithError(c, fmt.Errorf("%w: %v", exportdomain.ErrValidation, err))
		return
	}

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		AbortWithError(c, ErrBadRequest)
		return
	}

	res, err := s.exports.Apply(c.Request.Context(), id, action, actor, req.payload())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{
		"export": res.Export,
		"from":   res.From,
		"to":     res.To,
	})
}

func (s *Server) ListAvailableActions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actions, err := s.exports.AvailableActions(c.Request.Context(), id, actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, actions)
}

func (s *Server) GetExportHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := parseID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if actor.Role == authz.RoleExporter {
		e, err := s.exports.Get(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if e.ExporterID != actor.ID {
			AbortWithError(c, exportdomain.ErrNotFound)
			return
		}
	}

	records, err := s.history.Timeline(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, records)
}

func parseID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		return 0, fmt.Errorf("%w: malformed export id", exportdomain.ErrValidation)
	}
	return id, nil
}

func pageFromQuery(c *gin.Context) pagination.Pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	return pagination.Pagination{Page: page, PageSize: size}
}
