package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"product-attribute-service/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements RelationStore using PostgreSQL. Every read filters
// soft-deleted rows unless a filter asks otherwise.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the embedded attribute schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("store: Migrate failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr, true
	}
	return nil, false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func encodeMetadata(m domain.Metadata) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("store: failed to encode metadata: %w", err)
	}
	return b, nil
}

func decodeMetadata(b []byte) (domain.Metadata, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var m domain.Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("store: failed to decode metadata: %w", err)
	}
	return m, nil
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// whereBuilder collects AND-ed clauses with positional arguments.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) raw(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// --- AttributeStorer Implementation ---

const insertAttributeQuery = `
		INSERT INTO attribute (id, name, description, handle, is_filterable, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at;
	`

const insertPossibleValueQuery = `
		INSERT INTO attribute_possible_value (id, attribute_id, value, rank, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at;
	`

func (s *PostgresStore) CreateAttributes(ctx context.Context, attributes []domain.Attribute) ([]domain.Attribute, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: CreateAttributes failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created := make([]domain.Attribute, 0, len(attributes))
	for _, a := range attributes {
		if a.ID == "" {
			a.ID = domain.NewID(domain.PrefixAttribute)
		}
		metadata, err := encodeMetadata(a.Metadata)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, insertAttributeQuery,
			a.ID, a.Name, a.Description, a.Handle, a.IsFilterable, metadata,
		).Scan(&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			if _, ok := isUniqueViolation(err); ok {
				return nil, ErrHandleExists
			}
			return nil, fmt.Errorf("store: CreateAttributes failed to insert attribute: %w", err)
		}

		values := make([]domain.PossibleValue, 0, len(a.PossibleValues))
		for _, pv := range a.PossibleValues {
			if pv.ID == "" {
				pv.ID = domain.NewID(domain.PrefixPossibleValue)
			}
			pv.AttributeID = a.ID
			pvMetadata, err := encodeMetadata(pv.Metadata)
			if err != nil {
				return nil, err
			}
			err = tx.QueryRowContext(ctx, insertPossibleValueQuery,
				pv.ID, pv.AttributeID, pv.Value, pv.Rank, pvMetadata,
			).Scan(&pv.CreatedAt, &pv.UpdatedAt)
			if err != nil {
				if _, ok := isUniqueViolation(err); ok {
					return nil, ErrPossibleValueExists
				}
				return nil, fmt.Errorf("store: CreateAttributes failed to insert possible value: %w", err)
			}
			values = append(values, pv)
		}
		a.PossibleValues = values
		a.CategoryIDs = nil
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: CreateAttributes failed to commit: %w", err)
	}
	return created, nil
}

const selectAttributeColumns = `SELECT id, name, description, handle, is_filterable, metadata, created_at, updated_at, deleted_at FROM attribute`

func scanAttribute(scanner interface{ Scan(...interface{}) error }) (domain.Attribute, error) {
	var a domain.Attribute
	var metadata []byte
	if err := scanner.Scan(&a.ID, &a.Name, &a.Description, &a.Handle, &a.IsFilterable,
		&metadata, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
		return a, err
	}
	m, err := decodeMetadata(metadata)
	if err != nil {
		return a, err
	}
	a.Metadata = m
	return a, nil
}

func attributeWhere(filter AttributeFilter) whereBuilder {
	var w whereBuilder
	if !filter.IncludeDeleted {
		w.raw("deleted_at IS NULL")
	}
	if len(filter.IDs) > 0 {
		w.add("id = ANY($%d)", pq.Array(filter.IDs))
	}
	if len(filter.Handles) > 0 {
		w.add("handle = ANY($%d)", pq.Array(filter.Handles))
	}
	if len(filter.Names) > 0 {
		w.add("name = ANY($%d)", pq.Array(filter.Names))
	}
	if filter.Search != nil && *filter.Search != "" {
		w.add("name ILIKE $%d", "%"+*filter.Search+"%")
	}
	return w
}

func (s *PostgresStore) ListAttributes(ctx context.Context, filter AttributeFilter) ([]domain.Attribute, error) {
	w := attributeWhere(filter)
	query := selectAttributeColumns + w.String() + " ORDER BY created_at ASC, id ASC"
	args := w.args
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListAttributes failed to query attributes: %w", err)
	}
	defer rows.Close()

	attributes := make([]domain.Attribute, 0)
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("store: ListAttributes failed to scan attribute row: %w", err)
		}
		attributes = append(attributes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListAttributes iteration error: %w", err)
	}

	if err := s.attachRelations(ctx, attributes); err != nil {
		return nil, err
	}
	return attributes, nil
}

// CountAttributes counts matching attributes, ignoring Limit and Offset.
func (s *PostgresStore) CountAttributes(ctx context.Context, filter AttributeFilter) (int, error) {
	w := attributeWhere(filter)
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attribute"+w.String(), w.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("store: CountAttributes failed to count attributes: %w", err)
	}
	return total, nil
}

// attachRelations loads possible values and category ids for the attributes.
func (s *PostgresStore) attachRelations(ctx context.Context, attributes []domain.Attribute) error {
	if len(attributes) == 0 {
		return nil
	}
	ids := make([]string, len(attributes))
	for i, a := range attributes {
		ids[i] = a.ID
	}

	values, err := s.ListPossibleValues(ctx, ids)
	if err != nil {
		return err
	}
	links, err := s.ListCategoryLinks(ctx, CategoryLinkFilter{AttributeIDs: ids})
	if err != nil {
		return err
	}

	valuesByAttribute := make(map[string][]domain.PossibleValue)
	for _, pv := range values {
		valuesByAttribute[pv.AttributeID] = append(valuesByAttribute[pv.AttributeID], pv)
	}
	categoriesByAttribute := make(map[string][]string)
	for _, l := range links {
		categoriesByAttribute[l.AttributeID] = append(categoriesByAttribute[l.AttributeID], l.CategoryID)
	}
	for i := range attributes {
		attributes[i].PossibleValues = valuesByAttribute[attributes[i].ID]
		if attributes[i].PossibleValues == nil {
			attributes[i].PossibleValues = []domain.PossibleValue{}
		}
		attributes[i].CategoryIDs = categoriesByAttribute[attributes[i].ID]
	}
	return nil
}

func (s *PostgresStore) ListAttributeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM attribute WHERE deleted_at IS NULL ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("store: ListAttributeIDs failed to query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: ListAttributeIDs failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListAttributeIDs iteration error: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) UpdateAttribute(ctx context.Context, attribute domain.Attribute) (*domain.Attribute, error) {
	query := `
		UPDATE attribute
		SET name = $1, description = $2, handle = $3, is_filterable = $4, metadata = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $6 AND deleted_at IS NULL
		RETURNING id, name, description, handle, is_filterable, metadata, created_at, updated_at, deleted_at;
	`
	metadata, err := encodeMetadata(attribute.Metadata)
	if err != nil {
		return nil, err
	}
	updated, err := scanAttribute(s.db.QueryRowContext(ctx, query,
		attribute.Name, attribute.Description, attribute.Handle, attribute.IsFilterable, metadata, attribute.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAttributeNotFound
		}
		if _, ok := isUniqueViolation(err); ok {
			return nil, ErrHandleExists
		}
		return nil, fmt.Errorf("store: UpdateAttribute failed to scan row: %w", err)
	}

	list := []domain.Attribute{updated}
	if err := s.attachRelations(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// HardDeleteAttributes removes rows outright; possible values and attribute
// values go with them through ON DELETE CASCADE.
func (s *PostgresStore) HardDeleteAttributes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attribute WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: HardDeleteAttributes failed to execute delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteAttributes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: SoftDeleteAttributes failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// One timestamp for the whole cascade so RestoreAttributes can find the
	// children removed together with their attribute.
	now := time.Now().UTC()
	statements := []string{
		`UPDATE attribute SET deleted_at = $2 WHERE id = ANY($1) AND deleted_at IS NULL;`,
		`UPDATE attribute_possible_value SET deleted_at = $2 WHERE attribute_id = ANY($1) AND deleted_at IS NULL;`,
		`UPDATE attribute_value SET deleted_at = $2 WHERE attribute_id = ANY($1) AND deleted_at IS NULL;`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, pq.Array(ids), now); err != nil {
			return fmt.Errorf("store: SoftDeleteAttributes failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: SoftDeleteAttributes failed to commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) RestoreAttributes(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: RestoreAttributes failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	statements := []string{
		`UPDATE attribute_possible_value pv SET deleted_at = NULL FROM attribute a WHERE pv.attribute_id = a.id AND a.id = ANY($1) AND pv.deleted_at = a.deleted_at;`,
		`UPDATE attribute_value av SET deleted_at = NULL FROM attribute a WHERE av.attribute_id = a.id AND a.id = ANY($1) AND av.deleted_at = a.deleted_at;`,
		`UPDATE attribute SET deleted_at = NULL WHERE id = ANY($1) AND deleted_at IS NOT NULL;`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, pq.Array(ids)); err != nil {
			if _, ok := isUniqueViolation(err); ok {
				return ErrHandleExists
			}
			return fmt.Errorf("store: RestoreAttributes failed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: RestoreAttributes failed to commit: %w", err)
	}
	return nil
}

const upsertPossibleValueByIDQuery = `
		INSERT INTO attribute_possible_value (id, attribute_id, value, rank, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, CURRENT_TIMESTAMP))
		ON CONFLICT (id) DO UPDATE
		SET value = EXCLUDED.value, rank = EXCLUDED.rank,
			metadata = EXCLUDED.metadata, updated_at = CURRENT_TIMESTAMP, deleted_at = NULL
		WHERE attribute_possible_value.attribute_id = EXCLUDED.attribute_id
		RETURNING id, attribute_id, value, rank, metadata, created_at, updated_at;
	`

const upsertPossibleValueByValueQuery = `
		INSERT INTO attribute_possible_value (id, attribute_id, value, rank, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, CURRENT_TIMESTAMP))
		ON CONFLICT (attribute_id, value) WHERE deleted_at IS NULL DO UPDATE
		SET rank = EXCLUDED.rank, metadata = EXCLUDED.metadata, updated_at = CURRENT_TIMESTAMP
		RETURNING id, attribute_id, value, rank, metadata, created_at, updated_at;
	`

// UpsertPossibleValues matches rows by id when given, otherwise by
// (attribute_id, value). An id held by another attribute is never moved and
// yields ErrPossibleValueNotFound.
func (s *PostgresStore) UpsertPossibleValues(ctx context.Context, values []domain.PossibleValue) ([]domain.PossibleValue, error) {
	result := make([]domain.PossibleValue, 0, len(values))
	for _, pv := range values {
		query := upsertPossibleValueByValueQuery
		if pv.ID != "" {
			query = upsertPossibleValueByIDQuery
		} else {
			pv.ID = domain.NewID(domain.PrefixPossibleValue)
		}
		metadata, err := encodeMetadata(pv.Metadata)
		if err != nil {
			return nil, err
		}

		var upserted domain.PossibleValue
		var scannedMetadata []byte
		err = s.db.QueryRowContext(ctx, query,
			pv.ID, pv.AttributeID, pv.Value, pv.Rank, metadata, nullTime(pv.CreatedAt),
		).Scan(&upserted.ID, &upserted.AttributeID, &upserted.Value, &upserted.Rank,
			&scannedMetadata, &upserted.CreatedAt, &upserted.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrPossibleValueNotFound
			}
			if _, ok := isUniqueViolation(err); ok {
				return nil, ErrPossibleValueExists
			}
			if isForeignKeyViolation(err) {
				return nil, ErrAttributeNotFound
			}
			return nil, fmt.Errorf("store: UpsertPossibleValues failed to scan row: %w", err)
		}
		if upserted.Metadata, err = decodeMetadata(scannedMetadata); err != nil {
			return nil, err
		}
		result = append(result, upserted)
	}
	return result, nil
}

func (s *PostgresStore) ListPossibleValues(ctx context.Context, attributeIDs []string) ([]domain.PossibleValue, error) {
	if len(attributeIDs) == 0 {
		return []domain.PossibleValue{}, nil
	}
	query := `
		SELECT id, attribute_id, value, rank, metadata, created_at, updated_at
		FROM attribute_possible_value
		WHERE attribute_id = ANY($1) AND deleted_at IS NULL
		ORDER BY rank ASC, created_at ASC;
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(attributeIDs))
	if err != nil {
		return nil, fmt.Errorf("store: ListPossibleValues failed to query: %w", err)
	}
	defer rows.Close()

	values := make([]domain.PossibleValue, 0)
	for rows.Next() {
		var pv domain.PossibleValue
		var metadata []byte
		if err := rows.Scan(&pv.ID, &pv.AttributeID, &pv.Value, &pv.Rank, &metadata, &pv.CreatedAt, &pv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: ListPossibleValues failed to scan row: %w", err)
		}
		if pv.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		values = append(values, pv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListPossibleValues iteration error: %w", err)
	}
	return values, nil
}

func (s *PostgresStore) DeletePossibleValues(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attribute_possible_value WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: DeletePossibleValues failed to execute delete: %w", err)
	}
	return nil
}

// --- AttributeValueStorer Implementation ---

func (s *PostgresStore) CreateAttributeValue(ctx context.Context, value domain.AttributeValue) (*domain.AttributeValue, error) {
	query := `
		INSERT INTO attribute_value (id, attribute_id, value, metadata, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, CURRENT_TIMESTAMP))
		RETURNING created_at, updated_at;
	`
	if value.ID == "" {
		value.ID = domain.NewID(domain.PrefixAttributeValue)
	}
	metadata, err := encodeMetadata(value.Metadata)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, query,
		value.ID, value.AttributeID, value.Value, metadata, nullTime(value.CreatedAt),
	).Scan(&value.CreatedAt, &value.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrAttributeNotFound
		}
		return nil, fmt.Errorf("store: CreateAttributeValue failed to scan row: %w", err)
	}
	return &value, nil
}

func (s *PostgresStore) ListAttributeValues(ctx context.Context, filter AttributeValueFilter) ([]domain.AttributeValue, error) {
	var w whereBuilder
	w.raw("deleted_at IS NULL")
	if len(filter.IDs) > 0 {
		w.add("id = ANY($%d)", pq.Array(filter.IDs))
	}
	if len(filter.AttributeIDs) > 0 {
		w.add("attribute_id = ANY($%d)", pq.Array(filter.AttributeIDs))
	}
	if len(filter.Values) > 0 {
		w.add("value = ANY($%d)", pq.Array(filter.Values))
	}
	query := `SELECT id, attribute_id, value, metadata, created_at, updated_at FROM attribute_value` +
		w.String() + " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListAttributeValues failed to query: %w", err)
	}
	defer rows.Close()

	values := make([]domain.AttributeValue, 0)
	for rows.Next() {
		var v domain.AttributeValue
		var metadata []byte
		if err := rows.Scan(&v.ID, &v.AttributeID, &v.Value, &metadata, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: ListAttributeValues failed to scan row: %w", err)
		}
		if v.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListAttributeValues iteration error: %w", err)
	}
	return values, nil
}

func (s *PostgresStore) DeleteAttributeValues(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM attribute_value WHERE id = ANY($1) AND deleted_at IS NULL;`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("store: DeleteAttributeValues failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: DeleteAttributeValues failed to get rows affected: %w", err)
	}
	return int(rowsAffected), nil
}

// --- AttributeSetStorer Implementation ---

func (s *PostgresStore) CreateAttributeSets(ctx context.Context, sets []domain.AttributeSet) ([]domain.AttributeSet, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: CreateAttributeSets failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created := make([]domain.AttributeSet, 0, len(sets))
	for _, set := range sets {
		if set.ID == "" {
			set.ID = domain.NewID(domain.PrefixAttributeSet)
		}
		metadata, err := encodeMetadata(set.Metadata)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
		INSERT INTO attribute_set (id, name, description, handle, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at;
	`, set.ID, set.Name, set.Description, set.Handle, metadata).Scan(&set.CreatedAt, &set.UpdatedAt)
		if err != nil {
			if _, ok := isUniqueViolation(err); ok {
				return nil, ErrSetHandleExists
			}
			return nil, fmt.Errorf("store: CreateAttributeSets failed to insert set: %w", err)
		}
		if len(set.AttributeIDs) > 0 {
			_, err = tx.ExecContext(ctx, `
		INSERT INTO attribute_set_attribute (attribute_set_id, attribute_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING;
	`, set.ID, pq.Array(set.AttributeIDs))
			if err != nil {
				if isForeignKeyViolation(err) {
					return nil, ErrAttributeNotFound
				}
				return nil, fmt.Errorf("store: CreateAttributeSets failed to attach attributes: %w", err)
			}
		}
		set.CategoryIDs = nil
		created = append(created, set)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: CreateAttributeSets failed to commit: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) DeleteAttributeSets(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM attribute_set WHERE id = ANY($1);`, pq.Array(ids)); err != nil {
		return fmt.Errorf("store: DeleteAttributeSets failed to execute delete: %w", err)
	}
	return nil
}

// --- LinkStorer Implementation ---

// createPairs inserts (a[i], b[i]) rows into a link table, ignoring rows that
// already exist.
func (s *PostgresStore) createPairs(ctx context.Context, table, colA, colB string, a, b []string) error {
	if len(a) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s) SELECT * FROM unnest($1::text[], $2::text[]) ON CONFLICT DO NOTHING;`,
		table, colA, colB)
	if _, err := s.db.ExecContext(ctx, query, pq.Array(a), pq.Array(b)); err != nil {
		return fmt.Errorf("store: failed to create %s links: %w", table, err)
	}
	return nil
}

// dismissPairs deletes (a[i], b[i]) rows from a link table. Missing rows are
// ignored.
func (s *PostgresStore) dismissPairs(ctx context.Context, table, colA, colB string, a, b []string) error {
	if len(a) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE (%s, %s) IN (SELECT * FROM unnest($1::text[], $2::text[]));`,
		table, colA, colB)
	if _, err := s.db.ExecContext(ctx, query, pq.Array(a), pq.Array(b)); err != nil {
		return fmt.Errorf("store: failed to dismiss %s links: %w", table, err)
	}
	return nil
}

func splitCategoryLinks(links []domain.CategoryLink) ([]string, []string) {
	a, b := make([]string, len(links)), make([]string, len(links))
	for i, l := range links {
		a[i], b[i] = l.AttributeID, l.CategoryID
	}
	return a, b
}

func splitProductValueLinks(links []domain.ProductValueLink) ([]string, []string) {
	a, b := make([]string, len(links)), make([]string, len(links))
	for i, l := range links {
		a[i], b[i] = l.AttributeValueID, l.ProductID
	}
	return a, b
}

func splitSetCategoryLinks(links []domain.SetCategoryLink) ([]string, []string) {
	a, b := make([]string, len(links)), make([]string, len(links))
	for i, l := range links {
		a[i], b[i] = l.AttributeSetID, l.CategoryID
	}
	return a, b
}

func (s *PostgresStore) CreateCategoryLinks(ctx context.Context, links []domain.CategoryLink) error {
	a, b := splitCategoryLinks(links)
	return s.createPairs(ctx, "attribute_product_category", "attribute_id", "product_category_id", a, b)
}

func (s *PostgresStore) DismissCategoryLinks(ctx context.Context, links []domain.CategoryLink) error {
	a, b := splitCategoryLinks(links)
	return s.dismissPairs(ctx, "attribute_product_category", "attribute_id", "product_category_id", a, b)
}

func (s *PostgresStore) ListCategoryLinks(ctx context.Context, filter CategoryLinkFilter) ([]domain.CategoryLink, error) {
	var w whereBuilder
	if len(filter.AttributeIDs) > 0 {
		w.add("attribute_id = ANY($%d)", pq.Array(filter.AttributeIDs))
	}
	if len(filter.CategoryIDs) > 0 {
		w.add("product_category_id = ANY($%d)", pq.Array(filter.CategoryIDs))
	}
	query := `SELECT attribute_id, product_category_id FROM attribute_product_category` +
		w.String() + " ORDER BY attribute_id, product_category_id"

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategoryLinks failed to query: %w", err)
	}
	defer rows.Close()

	links := make([]domain.CategoryLink, 0)
	for rows.Next() {
		var l domain.CategoryLink
		if err := rows.Scan(&l.AttributeID, &l.CategoryID); err != nil {
			return nil, fmt.Errorf("store: ListCategoryLinks failed to scan row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategoryLinks iteration error: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) CreateProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error {
	a, b := splitProductValueLinks(links)
	return s.createPairs(ctx, "attribute_value_product", "attribute_value_id", "product_id", a, b)
}

func (s *PostgresStore) DismissProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error {
	a, b := splitProductValueLinks(links)
	return s.dismissPairs(ctx, "attribute_value_product", "attribute_value_id", "product_id", a, b)
}

func (s *PostgresStore) ListProductValueLinks(ctx context.Context, filter ProductValueLinkFilter) ([]domain.ProductValueLink, error) {
	var w whereBuilder
	if len(filter.AttributeValueIDs) > 0 {
		w.add("attribute_value_id = ANY($%d)", pq.Array(filter.AttributeValueIDs))
	}
	if len(filter.ProductIDs) > 0 {
		w.add("product_id = ANY($%d)", pq.Array(filter.ProductIDs))
	}
	if len(filter.ExcludeValueIDs) > 0 {
		w.add("NOT (attribute_value_id = ANY($%d))", pq.Array(filter.ExcludeValueIDs))
	}
	query := `SELECT attribute_value_id, product_id FROM attribute_value_product` +
		w.String() + " ORDER BY attribute_value_id, product_id"

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("store: ListProductValueLinks failed to query: %w", err)
	}
	defer rows.Close()

	links := make([]domain.ProductValueLink, 0)
	for rows.Next() {
		var l domain.ProductValueLink
		if err := rows.Scan(&l.AttributeValueID, &l.ProductID); err != nil {
			return nil, fmt.Errorf("store: ListProductValueLinks failed to scan row: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProductValueLinks iteration error: %w", err)
	}
	return links, nil
}

func (s *PostgresStore) CreateSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error {
	a, b := splitSetCategoryLinks(links)
	return s.createPairs(ctx, "attribute_set_product_category", "attribute_set_id", "product_category_id", a, b)
}

func (s *PostgresStore) DismissSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error {
	a, b := splitSetCategoryLinks(links)
	return s.dismissPairs(ctx, "attribute_set_product_category", "attribute_set_id", "product_category_id", a, b)
}

// --- ProductReader Implementation ---
// Product tables belong to the products module; this store only reads them.

func (s *PostgresStore) GetProductCategories(ctx context.Context, productID string) ([]string, error) {
	query := `
		SELECT p.id, pcp.product_category_id
		FROM product p
		LEFT JOIN product_category_product pcp ON pcp.product_id = p.id
		WHERE p.id = $1 AND p.deleted_at IS NULL
		ORDER BY pcp.product_category_id;
	`
	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("store: GetProductCategories failed to query: %w", err)
	}
	defer rows.Close()

	found := false
	categories := make([]string, 0)
	for rows.Next() {
		var id string
		var categoryID sql.NullString
		if err := rows.Scan(&id, &categoryID); err != nil {
			return nil, fmt.Errorf("store: GetProductCategories failed to scan row: %w", err)
		}
		found = true
		if categoryID.Valid {
			categories = append(categories, categoryID.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: GetProductCategories iteration error: %w", err)
	}
	if !found {
		return nil, ErrProductNotFound
	}
	return categories, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error) {
	var queryArgs []interface{}
	whereClauses := []string{"p.deleted_at IS NULL"}
	argID := 1

	if len(filter.IDs) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("p.id = ANY($%d)", argID))
		queryArgs = append(queryArgs, pq.Array(filter.IDs))
		argID++
	}
	if len(filter.Status) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf("p.status = ANY($%d)", argID))
		queryArgs = append(queryArgs, pq.Array(filter.Status))
		argID++
	}
	if len(filter.SalesChannelIDs) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_sales_channel psc WHERE psc.product_id = p.id AND psc.sales_channel_id = ANY($%d))", argID))
		queryArgs = append(queryArgs, pq.Array(filter.SalesChannelIDs))
		argID++
	}
	if len(filter.CategoryIDs) > 0 {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_category_product pcp WHERE pcp.product_id = p.id AND pcp.product_category_id = ANY($%d))", argID))
		queryArgs = append(queryArgs, pq.Array(filter.CategoryIDs))
		argID++
	}

	whereSQL := " WHERE " + strings.Join(whereClauses, " AND ")

	countQuery := "SELECT COUNT(*) FROM product p" + whereSQL
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, queryArgs...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to count products: %w", err)
	}
	if totalCount == 0 {
		return []domain.Product{}, 0, nil
	}

	query := `
		SELECT p.id, p.title, p.handle, p.status, p.created_at, p.updated_at,
			COALESCE((SELECT array_agg(pcp.product_category_id ORDER BY pcp.product_category_id) FROM product_category_product pcp WHERE pcp.product_id = p.id), '{}'),
			COALESCE((SELECT array_agg(psc.sales_channel_id ORDER BY psc.sales_channel_id) FROM product_sales_channel psc WHERE psc.product_id = p.id), '{}')
		FROM product p` + whereSQL + " ORDER BY p.id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		queryArgs = append(queryArgs, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		queryArgs = append(queryArgs, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		var categoryIDs, channelIDs pq.StringArray
		if err := rows.Scan(&p.ID, &p.Title, &p.Handle, &p.Status, &p.CreatedAt, &p.UpdatedAt, &categoryIDs, &channelIDs); err != nil {
			return nil, 0, fmt.Errorf("store: ListProducts failed to scan product row: %w", err)
		}
		p.CategoryIDs = []string(categoryIDs)
		p.SalesChannelIDs = []string(channelIDs)
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: ListProducts iteration error: %w", err)
	}
	return products, totalCount, nil
}
