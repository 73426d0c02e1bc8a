package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/repository"
)

var _ repository.DisputeRepository = (*disputeRepo)(nil)

type disputeRepo struct {
	pool *pgxpool.Pool
}

func NewDisputeRepo(pool *pgxpool.Pool) *disputeRepo {
	return &disputeRepo{pool: pool}
}

const disputeColumns = `id, reporter_id, respondent_id, reported_entity_type, reported_entity_id, subscription_id,
       transaction_id, dispute_type, description, status, evidence_required, resolution_deadline,
       evidence, resolution_notes, resolved_at, closed_at, created_at, updated_at`

func (r *disputeRepo) Save(ctx context.Context, tx repository.Tx, d *model.Dispute) error {
	const q = `
INSERT INTO disputes (` + disputeColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT (id) DO UPDATE SET
  status=$10, evidence=$13, resolution_notes=$14, resolved_at=$15, closed_at=$16, updated_at=$18;`

	evidence := d.Evidence
	if evidence == nil {
		evidence = []model.Evidence{}
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return domain.ErrOperationFailed
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		d.ID, d.ReporterID, d.RespondentID, d.ReportedEntityType, d.ReportedEntityID, d.SubscriptionID,
		d.TransactionID, string(d.DisputeType), d.Description, string(d.Status), d.EvidenceRequired,
		d.ResolutionDeadline, raw, d.ResolutionNotes, d.ResolvedAt, d.ClosedAt, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *disputeRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Dispute, error) {
	return r.queryOne(ctx, tx, `SELECT `+disputeColumns+` FROM disputes WHERE id=$1`, id)
}

func (r *disputeRepo) FindOpenByPurchase(ctx context.Context, tx repository.Tx, purchaseID string) (*model.Dispute, error) {
	return r.queryOne(ctx, tx, `
SELECT `+disputeColumns+`
  FROM disputes
 WHERE reported_entity_type=$1 AND reported_entity_id=$2 AND status='open'`, model.EntityPurchase, purchaseID)
}

func (r *disputeRepo) CountOpenByReporter(ctx context.Context, tx repository.Tx, reporterID, subscriptionID string) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM disputes
 WHERE reporter_id=$1 AND subscription_id=$2 AND status='open';`
	row, err := pickRow(ctx, r.pool, tx, q, reporterID, subscriptionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func (r *disputeRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...any) (*model.Dispute, error) {
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	var (
		d                   model.Dispute
		disputeType, status string
		raw                 []byte
	)
	if err := row.Scan(&d.ID, &d.ReporterID, &d.RespondentID, &d.ReportedEntityType, &d.ReportedEntityID, &d.SubscriptionID,
		&d.TransactionID, &disputeType, &d.Description, &status, &d.EvidenceRequired, &d.ResolutionDeadline,
		&raw, &d.ResolutionNotes, &d.ResolvedAt, &d.ClosedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	if err := json.Unmarshal(raw, &d.Evidence); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	d.DisputeType = model.DisputeType(disputeType)
	d.Status = model.DisputeStatus(status)
	return &d, nil
}
