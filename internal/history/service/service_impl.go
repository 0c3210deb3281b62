package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/exportflowlabs/exportflow/internal/metrics"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Metrics *metrics.Metrics
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("history"),
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *service) Timeline(ctx context.Context, exportID snowflake.ID) ([]domain.TransitionRecord, error) {
	return s.repo.ListByExport(ctx, s.db, exportID)
}

func (s *service) Search(ctx context.Context, filter domain.Filter, page pagination.Pagination) ([]domain.TransitionRecord, *pagination.PageInfo, error) {
	return s.repo.List(ctx, s.db, filter, page)
}

func (s *service) ComplianceExport(ctx context.Context, req domain.ExportRequest) (*domain.ExportResult, error) {
	filter := domain.Filter{
		ExportID:     req.ExportID,
		Organization: req.Organization,
		Since:        req.Since,
		Until:        req.Until,
	}

	// Compliance exports are bounded by the request window, not by pages:
	// fetch everything the filter matches.
	records, _, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		Page:     1,
		PageSize: pagination.MaxPageSize,
	})
	if err != nil {
		return nil, err
	}
	all := records
	for page := 2; len(records) == pagination.MaxPageSize; page++ {
		records, _, err = s.repo.List(ctx, s.db, filter, pagination.Pagination{
			Page:     page,
			PageSize: pagination.MaxPageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	var data []byte
	switch req.Format {
	case domain.ExportFormatCSV:
		data, err = formatCSV(all)
	case domain.ExportFormatJSON:
		data, err = formatJSON(all)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", req.Format)
	}
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	return &domain.ExportResult{
		Data:     data,
		Checksum: hex.EncodeToString(sum[:]),
		Format:   req.Format,
		Count:    len(all),
	}, nil
}

func formatCSV(records []domain.TransitionRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"occurred_at",
		"export_id",
		"from_status",
		"to_status",
		"action",
		"actor_id",
		"actor_role",
		"organization",
		"reason",
		"notes",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, rec := range records {
		row := []string{
			rec.OccurredAt.Format(time.RFC3339),
			rec.ExportID.String(),
			string(rec.FromStatus),
			string(rec.ToStatus),
			string(rec.Action),
			rec.ActorID.String(),
			rec.ActorRole,
			rec.Organization,
			rec.Reason,
			rec.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatJSON(records []domain.TransitionRecord) ([]byte, error) {
	type exportRecord struct {
		OccurredAt   string `json:"occurred_at"`
		ExportID     string `json:"export_id"`
		FromStatus   string `json:"from_status"`
		ToStatus     string `json:"to_status"`
		Action       string `json:"action"`
		ActorID      string `json:"actor_id"`
		ActorRole    string `json:"actor_role"`
		Organization string `json:"organization"`
		Reason       string `json:"reason,omitempty"`
		Notes        string `json:"notes,omitempty"`
	}

	out := make([]exportRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, exportRecord{
			OccurredAt:   rec.OccurredAt.Format(time.RFC3339),
			ExportID:     rec.ExportID.String(),
			FromStatus:   string(rec.FromStatus),
			ToStatus:     string(rec.ToStatus),
			Action:       string(rec.Action),
			ActorID:      rec.ActorID.String(),
			ActorRole:    rec.ActorRole,
			Organization: rec.Organization,
			Reason:       rec.Reason,
			Notes:        rec.Notes,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}
