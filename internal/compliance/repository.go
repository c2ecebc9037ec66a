package compliance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/sessions"
	"github.com/scrivenerhq/scrivener/pkg/pagination"
	"github.com/scrivenerhq/scrivener/pkg/query"
	"github.com/scrivenerhq/scrivener/pkg/repository"
)

type repo struct {
	db         *sql.DB
	sessions   sessions.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a compliance repository implementing the System interface.
// Document analysis reads text snapshots through the session system.
func New(
	db *sql.DB,
	sess sessions.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		sessions:   sess,
		logger:     logger.With("system", "compliance"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Rule], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Jurisdiction", "Pattern", "SuggestedAlternative")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count rules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	rules, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	result := pagination.NewPageResult(rules, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Rule, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	rule, err := repository.QueryOne(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rule, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Rule, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO compliance_rules(id, jurisdiction, kind, pattern, severity, suggested_alternative)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, jurisdiction, kind, pattern, severity, suggested_alternative, active, created_at, updated_at`

	insertArgs := []any{
		uuid.New(),
		cmd.Jurisdiction,
		cmd.Kind,
		cmd.Pattern,
		cmd.Severity,
		cmd.SuggestedAlternative,
	}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		return repository.QueryOne(ctx, tx, q, insertArgs, scanRule)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"rule created",
		"id", rule.ID,
		"jurisdiction", rule.Jurisdiction,
		"severity", rule.Severity,
	)
	return &rule, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Rule, error) {
	rule, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := cmd.Apply(rule); err != nil {
		return nil, err
	}

	q := `
		UPDATE compliance_rules
		SET pattern = $2, severity = $3, suggested_alternative = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING id, jurisdiction, kind, pattern, severity, suggested_alternative, active, created_at, updated_at`

	updateArgs := []any{
		id,
		rule.Pattern,
		rule.Severity,
		rule.SuggestedAlternative,
		rule.Active,
	}

	updated, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		return repository.QueryOne(ctx, tx, q, updateArgs, scanRule)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule updated", "id", id)
	return &updated, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"DELETE FROM compliance_rules WHERE id = $1",
			id,
		); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule deleted", "id", id)
	return nil
}

func (r *repo) Analyze(ctx context.Context, documentID uuid.UUID, jurisdiction string) (*AnalysisResult, error) {
	jurisdiction = NormalizeJurisdiction(jurisdiction)
	if jurisdiction == "" {
		return nil, fmt.Errorf("%w: empty code", ErrUnknownJurisdiction)
	}

	rules, err := r.activeRules(ctx, jurisdiction)
	if err != nil {
		return nil, err
	}

	if len(rules) == 0 {
		known, err := r.jurisdictionKnown(ctx, jurisdiction)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownJurisdiction, jurisdiction)
		}
	}

	text, err := r.sessions.Snapshot(ctx, documentID)
	if err != nil {
		return nil, err
	}

	findings, err := Evaluate(ctx, text, rules)
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}

	r.logger.Info(
		"document analyzed",
		"document_id", documentID,
		"jurisdiction", jurisdiction,
		"rules", len(rules),
		"findings", len(findings),
	)

	return &AnalysisResult{
		DocumentID:     documentID,
		Jurisdiction:   jurisdiction,
		EvaluatedRules: len(rules),
		Findings:       findings,
		AnalyzedAt:     time.Now(),
	}, nil
}

func (r *repo) activeRules(ctx context.Context, jurisdiction string) ([]Rule, error) {
	active := true
	qb := query.NewBuilder(projection, defaultSort, query.SortField{Field: "CreatedAt"})
	Filters{Jurisdiction: &jurisdiction, Active: &active}.Apply(qb)

	q, args := qb.Build()
	rules, err := repository.QueryMany(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	return rules, nil
}

func (r *repo) jurisdictionKnown(ctx context.Context, jurisdiction string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(
		ctx,
		"SELECT count(*) FROM compliance_rules WHERE jurisdiction = $1",
		jurisdiction,
	).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("check jurisdiction: %w", err)
	}
	return count > 0, nil
}
