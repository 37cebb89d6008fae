package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"product-attribute-service/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDBAndStore(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresStore) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Failed to create sqlmock")

	store := NewPostgresStore(db)
	require.NotNil(t, store, "Store should not be nil")

	return db, mock, store
}

func PtrTo[T any](v T) *T {
	return &v
}

func TestPostgresStore_CreateAttributes(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	toCreate := domain.Attribute{
		ID:           "attr_1",
		Name:         "Color",
		Handle:       "color",
		IsFilterable: true,
		PossibleValues: []domain.PossibleValue{
			{ID: "attrposval_1", Value: "Red", Rank: 1},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attribute (id, name, description, handle, is_filterable, metadata)`)).
		WithArgs("attr_1", "Color", nil, "color", true, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attribute_possible_value (id, attribute_id, value, rank, metadata)`)).
		WithArgs("attrposval_1", "attr_1", "Red", 1, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	created, err := store.CreateAttributes(context.Background(), []domain.Attribute{toCreate})

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "attr_1", created[0].ID)
	require.Len(t, created[0].PossibleValues, 1)
	assert.Equal(t, "attr_1", created[0].PossibleValues[0].AttributeID)
	assert.WithinDuration(t, now, created[0].CreatedAt, time.Second)

	require.NoError(t, mock.ExpectationsWereMet(), "SQLmock expectations were not met")
}

func TestPostgresStore_CreateAttributes_HandleExists(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attribute (id, name, description, handle, is_filterable, metadata)`)).
		WithArgs("attr_1", "Color", nil, "color", false, nil).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "IDX_attribute_handle_unique"})
	mock.ExpectRollback()

	_, err := store.CreateAttributes(context.Background(), []domain.Attribute{{ID: "attr_1", Name: "Color", Handle: "color"}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandleExists), "Error should be ErrHandleExists")
	assert.Equal(t, domain.KindDuplicate, domain.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAttributes_ByIDs(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	ids := []string{"attr_1"}

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, name, description, handle, is_filterable, metadata, created_at, updated_at, deleted_at FROM attribute WHERE deleted_at IS NULL AND id = ANY($1) ORDER BY created_at ASC, id ASC`)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "handle", "is_filterable", "metadata", "created_at", "updated_at", "deleted_at"}).
			AddRow("attr_1", "Color", "Paint color", "color", true, []byte(`{"unit":"none"}`), now, now, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM attribute_possible_value WHERE attribute_id = ANY($1) AND deleted_at IS NULL`)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attribute_id", "value", "rank", "metadata", "created_at", "updated_at"}).
			AddRow("attrposval_1", "attr_1", "Red", 0, nil, now, now).
			AddRow("attrposval_2", "attr_1", "Blue", 1, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT attribute_id, product_category_id FROM attribute_product_category WHERE attribute_id = ANY($1)`)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows([]string{"attribute_id", "product_category_id"}).AddRow("attr_1", "pcat_shoes"))

	attributes, err := store.ListAttributes(context.Background(), AttributeFilter{IDs: ids})

	require.NoError(t, err)
	require.Len(t, attributes, 1)
	a := attributes[0]
	assert.Equal(t, PtrTo("Paint color"), a.Description)
	assert.Equal(t, "none", a.Metadata["unit"])
	require.Len(t, a.PossibleValues, 2)
	assert.Equal(t, "Blue", a.PossibleValues[1].Value)
	assert.Equal(t, []string{"pcat_shoes"}, a.CategoryIDs)
	assert.False(t, a.IsGlobal())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateAttribute_NotFound(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE attribute SET name = $1`)).
		WithArgs("Size", nil, "size", true, nil, "attr_missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpdateAttribute(context.Background(), domain.Attribute{ID: "attr_missing", Name: "Size", Handle: "size", IsFilterable: true})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAttributeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SoftDeleteAttributes_CascadesWithSharedTimestamp(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	ids := []string{"attr_1", "attr_2"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute SET deleted_at = $2 WHERE id = ANY($1)`)).
		WithArgs(pq.Array(ids), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute_possible_value SET deleted_at = $2 WHERE attribute_id = ANY($1)`)).
		WithArgs(pq.Array(ids), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute_value SET deleted_at = $2 WHERE attribute_id = ANY($1)`)).
		WithArgs(pq.Array(ids), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SoftDeleteAttributes(context.Background(), ids))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SoftDeleteAttributes_Empty(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	require.NoError(t, store.SoftDeleteAttributes(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet(), "No statements should run for an empty id set")
}

func TestPostgresStore_RestoreAttributes(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	ids := []string{"attr_1"}
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute_possible_value pv SET deleted_at = NULL`)).
		WithArgs(pq.Array(ids)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute_value av SET deleted_at = NULL`)).
		WithArgs(pq.Array(ids)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE attribute SET deleted_at = NULL WHERE id = ANY($1)`)).
		WithArgs(pq.Array(ids)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.RestoreAttributes(context.Background(), ids))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPossibleValues_ByIDKeepsCreatedAt(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (id) DO UPDATE`)).
		WithArgs("attrposval_1", "attr_1", "Red", 0, nil, created).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attribute_id", "value", "rank", "metadata", "created_at", "updated_at"}).
			AddRow("attrposval_1", "attr_1", "Red", 0, nil, created, now))

	values, err := store.UpsertPossibleValues(context.Background(), []domain.PossibleValue{
		{ID: "attrposval_1", AttributeID: "attr_1", Value: "Red", CreatedAt: created},
	})

	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, created, values[0].CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPossibleValues_ByIDOfOtherAttribute(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE attribute_possible_value.attribute_id = EXCLUDED.attribute_id`)).
		WithArgs("attrposval_1", "attr_2", "Blue", 0, nil, nil).
		WillReturnError(sql.ErrNoRows)

	_, err := store.UpsertPossibleValues(context.Background(), []domain.PossibleValue{
		{ID: "attrposval_1", AttributeID: "attr_2", Value: "Blue"},
	})

	assert.True(t, errors.Is(err, ErrPossibleValueNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPossibleValues_ByValue(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	now := time.Now().Truncate(time.Millisecond)
	mock.ExpectQuery(regexp.QuoteMeta(`ON CONFLICT (attribute_id, value) WHERE deleted_at IS NULL DO UPDATE`)).
		WithArgs(sqlmock.AnyArg(), "attr_1", "Green", 2, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "attribute_id", "value", "rank", "metadata", "created_at", "updated_at"}).
			AddRow("attrposval_9", "attr_1", "Green", 2, nil, now, now))

	values, err := store.UpsertPossibleValues(context.Background(), []domain.PossibleValue{
		{AttributeID: "attr_1", Value: "Green", Rank: 2},
	})

	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "attrposval_9", values[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateAttributeValue_UnknownAttribute(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO attribute_value (id, attribute_id, value, metadata, created_at)`)).
		WithArgs("attrval_1", "attr_missing", "Red", nil, nil).
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := store.CreateAttributeValue(context.Background(), domain.AttributeValue{ID: "attrval_1", AttributeID: "attr_missing", Value: "Red"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAttributeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAttributeValues(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	ids := []string{"attrval_1", "attrval_2"}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM attribute_value WHERE id = ANY($1)`)).
		WithArgs(pq.Array(ids)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := store.DeleteAttributeValues(context.Background(), ids)

	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CategoryLinks_CreateAndDismiss(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	links := []domain.CategoryLink{
		{AttributeID: "attr_1", CategoryID: "pcat_1"},
		{AttributeID: "attr_1", CategoryID: "pcat_2"},
	}
	attrIDs := []string{"attr_1", "attr_1"}
	catIDs := []string{"pcat_1", "pcat_2"}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO attribute_product_category (attribute_id, product_category_id) SELECT * FROM unnest($1::text[], $2::text[]) ON CONFLICT DO NOTHING`)).
		WithArgs(pq.Array(attrIDs), pq.Array(catIDs)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM attribute_product_category WHERE (attribute_id, product_category_id) IN`)).
		WithArgs(pq.Array(attrIDs), pq.Array(catIDs)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, store.CreateCategoryLinks(context.Background(), links))
	require.NoError(t, store.DismissCategoryLinks(context.Background(), links))
	require.NoError(t, store.CreateCategoryLinks(context.Background(), nil), "Empty link set should be a no-op")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProductValueLinks_Exclude(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT attribute_value_id, product_id FROM attribute_value_product WHERE product_id = ANY($1) AND NOT (attribute_value_id = ANY($2))`)).
		WithArgs(pq.Array([]string{"prod_1"}), pq.Array([]string{"attrval_keep"})).
		WillReturnRows(sqlmock.NewRows([]string{"attribute_value_id", "product_id"}).AddRow("attrval_old", "prod_1"))

	links, err := store.ListProductValueLinks(context.Background(), ProductValueLinkFilter{
		ProductIDs:      []string{"prod_1"},
		ExcludeValueIDs: []string{"attrval_keep"},
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.ProductValueLink{{AttributeValueID: "attrval_old", ProductID: "prod_1"}}, links)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProductCategories(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	query := regexp.QuoteMeta(`LEFT JOIN product_category_product pcp ON pcp.product_id = p.id`)

	t.Run("product with categories", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("prod_1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_category_id"}).
				AddRow("prod_1", "pcat_1").AddRow("prod_1", "pcat_2"))

		categories, err := store.GetProductCategories(context.Background(), "prod_1")
		require.NoError(t, err)
		assert.Equal(t, []string{"pcat_1", "pcat_2"}, categories)
	})

	t.Run("product without categories", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("prod_2").
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_category_id"}).AddRow("prod_2", nil))

		categories, err := store.GetProductCategories(context.Background(), "prod_2")
		require.NoError(t, err)
		assert.Empty(t, categories)
	})

	t.Run("unknown product", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("prod_missing").
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_category_id"}))

		_, err := store.GetProductCategories(context.Background(), "prod_missing")
		assert.True(t, errors.Is(err, ErrProductNotFound))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProducts_CountZero(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM product p WHERE p.deleted_at IS NULL AND p.status = ANY($1)`)).
		WithArgs(pq.Array([]string{domain.ProductStatusPublished})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	products, total, err := store.ListProducts(context.Background(), ProductFilter{Status: []string{domain.ProductStatusPublished}})

	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, products)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAttributes(t *testing.T) {
	db, mock, store := newMockDBAndStore(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM attribute WHERE deleted_at IS NULL AND name ILIKE $1`)).
		WithArgs("%col%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := store.CountAttributes(context.Background(), AttributeFilter{Search: PtrTo("col"), Limit: 2})

	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
