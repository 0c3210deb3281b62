package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/exportflowlabs/exportflow/internal/authz"
	"github.com/exportflowlabs/exportflow/internal/catalog"
	"github.com/exportflowlabs/exportflow/internal/clock"
	"github.com/exportflowlabs/exportflow/internal/export/domain"
	historydomain "github.com/exportflowlabs/exportflow/internal/history/domain"
	"github.com/exportflowlabs/exportflow/internal/metrics"
	"github.com/exportflowlabs/exportflow/internal/outbox"
	"github.com/exportflowlabs/exportflow/pkg/db/pagination"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	History historydomain.Repository
	Authz   *authz.Resolver
	Metrics *metrics.Metrics
	Nudger  domain.Nudger `optional:"true"`
}

type service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	history historydomain.Repository
	authz   *authz.Resolver
	metrics *metrics.Metrics
	nudger  domain.Nudger
}

func New(p Params) domain.Service {
	return &service{
		db:      p.DB,
		log:     p.Log.Named("export.engine"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		history: p.History,
		authz:   p.Authz,
		metrics: p.Metrics,
		nudger:  p.Nudger,
	}
}

func (s *service) Create(ctx context.Context, input domain.CreateInput) (*domain.Export, error) {
	if input.Actor.Role != authz.RoleExporter {
		return nil, fmt.Errorf("%w: only exporters create exports", domain.ErrForbidden)
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	now := s.clock.Now(ctx)
	docs, err := json.Marshal(nonNil(input.DocumentRefs))
	if err != nil {
		return nil, err
	}

	id := s.genID.Generate()
	e := &domain.Export{
		ID:                 id,
		Reference:          fmt.Sprintf("%s-%s", slug.Make(input.ExporterName), strings.ToLower(id.Base36())),
		ExporterID:         input.Actor.ID,
		ExporterName:       input.ExporterName,
		CoffeeType:         input.CoffeeType,
		QuantityKg:         input.QuantityKg,
		DestinationCountry: input.DestinationCountry,
		Buyer:              input.Buyer,
		EstimatedValueUSD:  input.EstimatedValueUSD,
		DocumentRefs:       datatypes.JSON(docs),
		Status:             catalog.Initial(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, e); err != nil {
			return err
		}
		ev, err := outbox.New(e.ID, outbox.EventExportCreated, createdEvent{
			ExportID:   e.ID.String(),
			Reference:  e.Reference,
			ExporterID: e.ExporterID.String(),
			Status:     e.Status,
			OccurredAt: now,
		}, now)
		if err != nil {
			return err
		}
		return outbox.Append(ctx, tx, ev)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("export created",
		zap.String("export_id", e.ID.String()),
		zap.String("reference", e.Reference))
	s.nudge()
	return e, nil
}

func (s *service) Update(ctx context.Context, id snowflake.ID, actor domain.Actor, fields domain.UpdateFields) (*domain.Export, error) {
	var updated *domain.Export
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if actor.Role != authz.RoleExporter || e.ExporterID != actor.ID {
			return fmt.Errorf("%w: only the owning exporter amends an export", domain.ErrForbidden)
		}
		if !catalog.IsEditable(e.Status) {
			return fmt.Errorf("%w: domain attributes are frozen in status %s", domain.ErrInvalidTransition, e.Status)
		}
		if err := applyFields(e, fields); err != nil {
			return err
		}
		now := s.clock.Now(ctx)
		e.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, e); err != nil {
			return err
		}

		// Amendments are not transitions, so the ledger stays untouched,
		// but compliance consumers still see every mutation.
		ev, err := outbox.New(e.ID, outbox.EventExportUpdated, updatedEvent{
			ExportID:   e.ID.String(),
			Reference:  e.Reference,
			ExporterID: e.ExporterID.String(),
			Status:     e.Status,
			Changed:    changedFieldNames(fields),
			OccurredAt: now,
		}, now)
		if err != nil {
			return err
		}
		if err := outbox.Append(ctx, tx, ev); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("export amended",
		zap.String("export_id", updated.ID.String()),
		zap.String("reference", updated.Reference),
		zap.Strings("changed", changedFieldNames(fields)))
	s.nudge()
	return updated, nil
}

// Apply is the transactional core. The export row stays locked from load to
// commit, so concurrent calls on the same export serialize; the loser of a
// race sees the winner's status and fails the edge lookup.
func (s *service) Apply(ctx context.Context, id snowflake.ID, action catalog.Action, actor domain.Actor, payload domain.Payload) (*domain.TransitionResult, error) {
	var result *domain.TransitionResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		// Role gate first: a denied attempt is not historically
		// significant, so nothing is written.
		if !s.authz.Can(actor.Role, action) {
			return fmt.Errorf("%w: role %s may not %s", domain.ErrForbidden, actor.Role, action)
		}
		if actor.Role == authz.RoleExporter && e.ExporterID != actor.ID {
			return fmt.Errorf("%w: export %s belongs to another exporter", domain.ErrForbidden, e.Reference)
		}

		from := e.Status
		to, ok := catalog.Edge(from, action)
		if !ok {
			return fmt.Errorf("%w: %s is not applicable in status %s", domain.ErrInvalidTransition, action, from)
		}

		if err := validatePayload(action, payload); err != nil {
			return err
		}
		if payload.Fields != nil {
			if !catalog.IsEditable(from) {
				return fmt.Errorf("%w: domain attributes are frozen in status %s", domain.ErrValidation, from)
			}
			if err := applyFields(e, *payload.Fields); err != nil {
				return err
			}
		}

		applyEvidence(e, action, payload)

		now := s.clock.Now(ctx)
		e.Status = to
		e.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, e); err != nil {
			return err
		}

		rec := &historydomain.TransitionRecord{
			ID:           s.genID.Generate(),
			ExportID:     e.ID,
			FromStatus:   from,
			ToStatus:     to,
			Action:       action,
			ActorID:      actor.ID,
			ActorRole:    string(actor.Role),
			Organization: actor.Organization,
			Reason:       payload.Reason,
			Notes:        payload.Notes,
			OccurredAt:   now,
		}
		if err := s.history.Insert(ctx, tx, rec); err != nil {
			return err
		}

		ev, err := outbox.New(e.ID, outbox.EventStatusChanged, transitionEvent{
			ExportID:     e.ID.String(),
			Reference:    e.Reference,
			ExporterID:   e.ExporterID.String(),
			Action:       action,
			FromStatus:   from,
			ToStatus:     to,
			Stage:        catalog.Stage(to),
			Organization: actor.Organization,
			ActorRole:    string(actor.Role),
			Reason:       payload.Reason,
			OccurredAt:   now,
		}, now)
		if err != nil {
			return err
		}
		if err := outbox.Append(ctx, tx, ev); err != nil {
			return err
		}

		result = &domain.TransitionResult{Export: e, From: from, To: to}
		return nil
	})
	if err != nil {
		s.metrics.TransitionsRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	// Post-commit side effects only: a slow or failing consumer can never
	// roll back the transition.
	s.metrics.Transitions.WithLabelValues(string(action), string(result.To), actor.Organization).Inc()
	s.log.Info("export transitioned",
		zap.String("export_id", result.Export.ID.String()),
		zap.String("action", string(action)),
		zap.String("from", string(result.From)),
		zap.String("to", string(result.To)),
		zap.String("organization", actor.Organization))
	s.nudge()
	return result, nil
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.Export, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *service) List(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Export, *pagination.PageInfo, error) {
	return s.repo.List(ctx, s.db, filter, page)
}

func (s *service) AvailableActions(ctx context.Context, id snowflake.ID, actor domain.Actor) ([]catalog.Action, error) {
	e, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == authz.RoleExporter && e.ExporterID != actor.ID {
		return []catalog.Action{}, nil
	}
	return s.authz.Allowed(actor.Role, e.Status), nil
}

func (s *service) nudge() {
	if s.nudger != nil {
		s.nudger.Nudge()
	}
}

func validateCreate(input domain.CreateInput) error {
	switch {
	case strings.TrimSpace(input.ExporterName) == "":
		return fmt.Errorf("%w: exporter_name is required", domain.ErrValidation)
	case strings.TrimSpace(input.CoffeeType) == "":
		return fmt.Errorf("%w: coffee_type is required", domain.ErrValidation)
	case input.QuantityKg <= 0:
		return fmt.Errorf("%w: quantity_kg must be positive", domain.ErrValidation)
	case strings.TrimSpace(input.DestinationCountry) == "":
		return fmt.Errorf("%w: destination_country is required", domain.ErrValidation)
	case input.EstimatedValueUSD <= 0:
		return fmt.Errorf("%w: estimated_value_usd must be positive", domain.ErrValidation)
	}
	return nil
}

func applyFields(e *domain.Export, fields domain.UpdateFields) error {
	if fields.CoffeeType != nil {
		e.CoffeeType = *fields.CoffeeType
	}
	if fields.QuantityKg != nil {
		if *fields.QuantityKg <= 0 {
			return fmt.Errorf("%w: quantity_kg must be positive", domain.ErrValidation)
		}
		e.QuantityKg = *fields.QuantityKg
	}
	if fields.DestinationCountry != nil {
		e.DestinationCountry = *fields.DestinationCountry
	}
	if fields.Buyer != nil {
		e.Buyer = *fields.Buyer
	}
	if fields.EstimatedValueUSD != nil {
		if *fields.EstimatedValueUSD <= 0 {
			return fmt.Errorf("%w: estimated_value_usd must be positive", domain.ErrValidation)
		}
		e.EstimatedValueUSD = *fields.EstimatedValueUSD
	}
	if fields.DocumentRefs != nil {
		docs, err := json.Marshal(fields.DocumentRefs)
		if err != nil {
			return err
		}
		e.DocumentRefs = datatypes.JSON(docs)
	}
	return nil
}

func changedFieldNames(fields domain.UpdateFields) []string {
	names := []string{}
	if fields.CoffeeType != nil {
		names = append(names, "coffee_type")
	}
	if fields.QuantityKg != nil {
		names = append(names, "quantity_kg")
	}
	if fields.DestinationCountry != nil {
		names = append(names, "destination_country")
	}
	if fields.Buyer != nil {
		names = append(names, "buyer")
	}
	if fields.EstimatedValueUSD != nil {
		names = append(names, "estimated_value_usd")
	}
	if fields.DocumentRefs != nil {
		names = append(names, "document_refs")
	}
	return names
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	}
	return "internal"
}

func nonNil(refs []string) []string {
	if refs == nil {
		return []string{}
	}
	return refs
}

type createdEvent struct {
	ExportID   string         `json:"export_id"`
	Reference  string         `json:"reference"`
	ExporterID string         `json:"exporter_id"`
	Status     catalog.Status `json:"status"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type updatedEvent struct {
	ExportID   string         `json:"export_id"`
	Reference  string         `json:"reference"`
	ExporterID string         `json:"exporter_id"`
	Status     catalog.Status `json:"status"`
	Changed    []string       `json:"changed"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type transitionEvent struct {
	ExportID     string         `json:"export_id"`
	Reference    string         `json:"reference"`
	ExporterID   string         `json:"exporter_id"`
	Action       catalog.Action `json:"action"`
	FromStatus   catalog.Status `json:"from_status"`
	ToStatus     catalog.Status `json:"to_status"`
	Stage        string         `json:"stage"`
	Organization string         `json:"organization"`
	ActorRole    string         `json:"actor_role"`
	Reason       string         `json:"reason,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
