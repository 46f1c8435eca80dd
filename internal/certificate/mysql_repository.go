package certificate

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	certerrors "github.com/nfxvault/tlscertd/internal/errors"
)

const tableName = "tls_certificates"

// mysqlRepository implements Repository over MySQL via sqlx, scanning into
// Certificate with struct tags and serializing every write inside its own
// transaction.
type mysqlRepository struct {
	db *sqlx.DB
}

// NewMySQLRepository wraps an already-opened *sqlx.DB. Connection pool
// sizing (max open/idle conns, conn lifetime) is applied by the caller
// from DatabaseConfig at construction time.
func NewMySQLRepository(db *sqlx.DB) Repository {
	return &mysqlRepository{db: db}
}

func (r *mysqlRepository) List(ctx context.Context, params ListParams) (Page, error) {
	var items []Certificate
	err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM `+tableName+` WHERE store = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		params.Store, params.Limit, params.Offset,
	)
	if err != nil {
		return Page{}, certerrors.WrapError(certerrors.ErrCodeTransport, "list certificates", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM `+tableName+` WHERE store = ?`, params.Store,
	); err != nil {
		return Page{}, certerrors.WrapError(certerrors.ErrCodeTransport, "count certificates", err)
	}

	return Page{Items: items, Total: total}, nil
}

func (r *mysqlRepository) GetByID(ctx context.Context, id string) (*Certificate, error) {
	var c Certificate
	err := r.db.GetContext(ctx, &c, `SELECT * FROM `+tableName+` WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "get certificate by id", err)
	}
	return &c, nil
}

func (r *mysqlRepository) GetByDomain(ctx context.Context, store Store, domain string, source Source) (*Certificate, error) {
	var c Certificate
	err := r.db.GetContext(ctx, &c,
		`SELECT * FROM `+tableName+` WHERE store = ? AND domain = ? AND source = ?`,
		store, domain, source,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "get certificate by domain", err)
	}
	return &c, nil
}

func (r *mysqlRepository) GetByFolderName(ctx context.Context, folderName string) (*Certificate, error) {
	var c Certificate
	err := r.db.GetContext(ctx, &c,
		`SELECT * FROM `+tableName+` WHERE folder_name = ?`, folderName,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "get certificate by folder name", err)
	}
	return &c, nil
}

// CreateOrUpdate is the pool-import upsert primitive. It
// holds a row lock via SELECT ... FOR UPDATE inside a single transaction
// when the record already exists, and retries once on a unique-constraint
// race for the first-insert case.
func (r *mysqlRepository) CreateOrUpdate(ctx context.Context, cert Certificate) (*Certificate, error) {
	for attempt := 0; attempt < 1; attempt++ {
		result, retry, err := r.createOrUpdateOnce(ctx, cert)
		if !retry {
			return result, err
		}
	}
	return r.createOrUpdateOnceFinal(ctx, cert)
}

func (r *mysqlRepository) createOrUpdateOnce(ctx context.Context, cert Certificate) (*Certificate, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, certerrors.WrapError(certerrors.ErrCodeTransport, "begin tx", err)
	}
	defer tx.Rollback()

	existing, err := r.findForUpdate(ctx, tx, cert)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		if cert.ID == "" {
			cert.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		cert.CreatedAt = now
		cert.UpdatedAt = now
		if err := r.insert(ctx, tx, &cert); err != nil {
			if isDuplicateKeyErr(err) {
				return nil, true, nil
			}
			return nil, false, certerrors.WrapError(certerrors.ErrCodeTransport, "insert certificate", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
		}
		return &cert, false, nil
	}

	merged := mergeNonNil(*existing, cert)
	merged.Source = existing.Source // source is never overwritten
	merged.UpdatedAt = time.Now().UTC()
	if err := r.update(ctx, tx, &merged); err != nil {
		return nil, false, certerrors.WrapError(certerrors.ErrCodeTransport, "update certificate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
	}
	return &merged, false, nil
}

// createOrUpdateOnceFinal runs a final attempt without swallowing a
// duplicate-key race, surfacing it as a Conflict instead of looping
// forever against a persistently contended row.
func (r *mysqlRepository) createOrUpdateOnceFinal(ctx context.Context, cert Certificate) (*Certificate, error) {
	result, retry, err := r.createOrUpdateOnce(ctx, cert)
	if err != nil {
		return nil, err
	}
	if retry {
		return nil, certerrors.NewConflictError("folder_name insert raced twice", nil)
	}
	return result, nil
}

func (r *mysqlRepository) findForUpdate(ctx context.Context, tx *sqlx.Tx, cert Certificate) (*Certificate, error) {
	var existing Certificate
	var err error
	if cert.FolderName != nil {
		err = tx.GetContext(ctx, &existing,
			`SELECT * FROM `+tableName+` WHERE folder_name = ? FOR UPDATE`, *cert.FolderName)
	} else {
		err = tx.GetContext(ctx, &existing,
			`SELECT * FROM `+tableName+` WHERE domain = ? AND source = ? FOR UPDATE`, cert.Domain, cert.Source)
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "lock existing certificate", err)
	}
	return &existing, nil
}

func (r *mysqlRepository) CreateManualAdd(ctx context.Context, cert Certificate) (*Certificate, error) {
	existing, err := r.GetByDomain(ctx, cert.Store, cert.Domain, SourceManualAdd)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, certerrors.NewConflictError(
			fmt.Sprintf("manual_add certificate already exists for %s/%s", cert.Store, cert.Domain), nil)
	}

	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.Source = SourceManualAdd
	cert.Status = StatusProcess
	now := time.Now().UTC()
	cert.CreatedAt = now
	cert.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "begin tx", err)
	}
	defer tx.Rollback()

	if err := r.insert(ctx, tx, &cert); err != nil {
		if isDuplicateKeyErr(err) {
			return nil, certerrors.NewConflictError("folder_name already in use", err)
		}
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "insert manual_add certificate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
	}
	return &cert, nil
}

func (r *mysqlRepository) UpdateByID(ctx context.Context, id string, patch CertificatePatch) (*Certificate, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "begin tx", err)
	}
	defer tx.Rollback()

	var existing Certificate
	if err := tx.GetContext(ctx, &existing, `SELECT * FROM `+tableName+` WHERE id = ? FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, certerrors.NewNotFoundError("certificate", id)
		}
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "lock certificate for update", err)
	}

	applyPatch(&existing, patch)
	existing.UpdatedAt = time.Now().UTC()

	if err := r.update(ctx, tx, &existing); err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "update certificate", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
	}
	return &existing, nil
}

func (r *mysqlRepository) UpdateParseResult(ctx context.Context, id string, result ParseResult) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, certerrors.WrapError(certerrors.ErrCodeTransport, "begin tx", err)
	}
	defer tx.Rollback()

	query := `UPDATE ` + tableName + ` SET
		sans = ?, issuer = ?, not_before = ?, not_after = ?,
		is_valid = ?, days_remaining = ?, status = ?, last_error_message = ?,
		updated_at = ? WHERE id = ?`

	sansRaw := joinSANs(result.SANs)
	var lastErr *string
	if result.ErrorMessage != "" {
		lastErr = &result.ErrorMessage
	}

	res, err := tx.ExecContext(ctx, query,
		sansRaw, result.Issuer, result.NotBefore, result.NotAfter,
		result.IsValid, result.DaysRemaining, result.Status, lastErr,
		time.Now().UTC(), id,
	)
	if err != nil {
		return false, certerrors.WrapError(certerrors.ErrCodeTransport, "update parse result", err)
	}
	if err := tx.Commit(); err != nil {
		return false, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *mysqlRepository) UpdateAllDaysRemaining(ctx context.Context) (int, int, []Certificate, error) {
	var rows []Certificate
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM `+tableName+` WHERE not_after IS NOT NULL`)
	if err != nil {
		return 0, 0, nil, certerrors.WrapError(certerrors.ErrCodeTransport, "list rows for days-remaining recompute", err)
	}

	now := time.Now().UTC()
	updated := 0
	for i := range rows {
		days := int(rows[i].NotAfter.Sub(now).Hours() / 24)
		valid := days >= 0
		rows[i].DaysRemaining = &days
		rows[i].IsValid = &valid

		_, err := r.db.ExecContext(ctx,
			`UPDATE `+tableName+` SET days_remaining = ?, is_valid = ?, updated_at = ? WHERE id = ?`,
			days, valid, now, rows[i].ID,
		)
		if err != nil {
			return updated, len(rows), rows, certerrors.WrapError(certerrors.ErrCodeTransport, "recompute days remaining", err)
		}
		updated++
	}

	return updated, len(rows), rows, nil
}

func (r *mysqlRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE id = ?`, id)
	if err != nil {
		return false, certerrors.WrapError(certerrors.ErrCodeTransport, "delete certificate", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *mysqlRepository) Search(ctx context.Context, params SearchParams) (Page, error) {
	if params.Keyword == "" {
		return Page{}, certerrors.NewValidationError("keyword", fmt.Errorf("must not be blank"))
	}

	query := `SELECT * FROM ` + tableName + ` WHERE (domain LIKE ? OR folder_name LIKE ?)`
	countQuery := `SELECT COUNT(*) FROM ` + tableName + ` WHERE (domain LIKE ? OR folder_name LIKE ?)`
	like := "%" + params.Keyword + "%"
	args := []interface{}{like, like}

	if params.Store != nil {
		query += ` AND store = ?`
		countQuery += ` AND store = ?`
		args = append(args, *params.Store)
	}
	if params.Source != nil {
		query += ` AND source = ?`
		countQuery += ` AND source = ?`
		args = append(args, *params.Source)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return Page{}, certerrors.WrapError(certerrors.ErrCodeTransport, "count search results", err)
	}

	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, params.Limit, params.Offset)

	var items []Certificate
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return Page{}, certerrors.WrapError(certerrors.ErrCodeTransport, "search certificates", err)
	}

	return Page{Items: items, Total: total}, nil
}

// SetStatus implements the status gate: cond, when set, requires
// the row's current status to match before the transition is allowed.
func (r *mysqlRepository) SetStatus(ctx context.Context, id string, next Status, cond *Status) (Status, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", certerrors.WrapError(certerrors.ErrCodeTransport, "begin tx", err)
	}
	defer tx.Rollback()

	var current Status
	if err := tx.GetContext(ctx, &current, `SELECT status FROM `+tableName+` WHERE id = ? FOR UPDATE`, id); err != nil {
		if err == sql.ErrNoRows {
			return "", certerrors.NewNotFoundError("certificate", id)
		}
		return "", certerrors.WrapError(certerrors.ErrCodeTransport, "lock certificate status", err)
	}

	if cond != nil && current != *cond {
		return current, certerrors.ErrAlreadyProcessing
	}

	if _, err := tx.ExecContext(ctx, `UPDATE `+tableName+` SET status = ?, updated_at = ? WHERE id = ?`,
		next, time.Now().UTC(), id); err != nil {
		return current, certerrors.WrapError(certerrors.ErrCodeTransport, "set certificate status", err)
	}
	if err := tx.Commit(); err != nil {
		return current, certerrors.WrapError(certerrors.ErrCodeTransport, "commit tx", err)
	}
	return current, nil
}

func (r *mysqlRepository) insert(ctx context.Context, tx *sqlx.Tx, c *Certificate) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO `+tableName+` (
		id, store, domain, folder_name, source, status, email, certificate,
		private_key, sans, issuer, not_before, not_after, is_valid,
		days_remaining, last_error_message, last_error_time, created_at, updated_at
	) VALUES (
		:id, :store, :domain, :folder_name, :source, :status, :email, :certificate,
		:private_key, :sans, :issuer, :not_before, :not_after, :is_valid,
		:days_remaining, :last_error_message, :last_error_time, :created_at, :updated_at
	)`, c)
	return err
}

func (r *mysqlRepository) update(ctx context.Context, tx *sqlx.Tx, c *Certificate) error {
	_, err := tx.NamedExecContext(ctx, `UPDATE `+tableName+` SET
		store = :store, domain = :domain, folder_name = :folder_name,
		status = :status, email = :email, certificate = :certificate,
		private_key = :private_key, sans = :sans, issuer = :issuer,
		not_before = :not_before, not_after = :not_after, is_valid = :is_valid,
		days_remaining = :days_remaining, last_error_message = :last_error_message,
		last_error_time = :last_error_time, updated_at = :updated_at
		WHERE id = :id`, c)
	return err
}

// mergeNonNil overlays every non-nil pointer field of incoming onto base,
// implementing the CreateOrUpdate edge case ("all provided non-null
// fields except source are overwritten").
func mergeNonNil(base, incoming Certificate) Certificate {
	merged := base
	if incoming.FolderName != nil {
		merged.FolderName = incoming.FolderName
	}
	if incoming.Domain != "" {
		merged.Domain = incoming.Domain
	}
	if incoming.Store != "" {
		merged.Store = incoming.Store
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if incoming.Email != nil {
		merged.Email = incoming.Email
	}
	if incoming.Certificate != nil {
		merged.Certificate = incoming.Certificate
	}
	if incoming.PrivateKey != nil {
		merged.PrivateKey = incoming.PrivateKey
	}
	if incoming.SANsRaw != nil {
		merged.SANsRaw = incoming.SANsRaw
	}
	if incoming.Issuer != nil {
		merged.Issuer = incoming.Issuer
	}
	if incoming.NotBefore != nil {
		merged.NotBefore = incoming.NotBefore
	}
	if incoming.NotAfter != nil {
		merged.NotAfter = incoming.NotAfter
	}
	if incoming.IsValid != nil {
		merged.IsValid = incoming.IsValid
	}
	if incoming.DaysRemaining != nil {
		merged.DaysRemaining = incoming.DaysRemaining
	}
	return merged
}

func applyPatch(c *Certificate, patch CertificatePatch) {
	if patch.FolderName != nil {
		c.FolderName = patch.FolderName
	}
	if patch.Store != nil {
		c.Store = *patch.Store
	}
	if patch.Domain != nil {
		c.Domain = *patch.Domain
	}
	if patch.Email != nil {
		c.Email = patch.Email
	}
	if patch.Certificate != nil {
		c.Certificate = patch.Certificate
	}
	if patch.PrivateKey != nil {
		c.PrivateKey = patch.PrivateKey
	}
	if patch.SANs != nil {
		c.SetSANs(*patch.SANs)
	}
	if patch.Issuer != nil {
		c.Issuer = patch.Issuer
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.LastErrorMessage != nil {
		c.LastErrorMessage = patch.LastErrorMessage
		now := time.Now().UTC()
		c.LastErrorTime = &now
	}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return stderrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 // ER_DUP_ENTRY
}
