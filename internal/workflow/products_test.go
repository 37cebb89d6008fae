package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/query"
	"product-attribute-service/internal/store"
)

type productFixture struct {
	*harness
	red, blue, small string
}

// newProductFixture seeds a global Color attribute with two values and a
// Size attribute scoped to pcat_apparel.
func newProductFixture(t *testing.T) *productFixture {
	t.Helper()
	ctx := context.Background()
	h := newHarness(t)
	h.store.PutProduct(domain.Product{ID: "prod_shirt", Status: domain.ProductStatusPublished, CategoryIDs: []string{"pcat_apparel"}, SalesChannelIDs: []string{"sc_web"}})
	h.store.PutProduct(domain.Product{ID: "prod_mug", Status: domain.ProductStatusPublished, CategoryIDs: []string{"pcat_kitchen"}, SalesChannelIDs: []string{"sc_pos"}})
	h.store.PutProduct(domain.Product{ID: "prod_draft", Status: domain.ProductStatusDraft, CategoryIDs: []string{"pcat_apparel"}})
	color := h.createAttribute(t, domain.CreateAttributeInput{Name: "Color"})
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", ProductCategoryIDs: []string{"pcat_apparel"}})

	f := &productFixture{harness: h}
	for _, v := range []struct {
		dst  *string
		attr string
		val  string
	}{
		{&f.red, color.ID, "Red"},
		{&f.blue, color.ID, "Blue"},
		{&f.small, size.ID, "S"},
	} {
		created, err := h.store.CreateAttributeValue(ctx, domain.AttributeValue{AttributeID: v.attr, Value: v.val})
		require.NoError(t, err)
		*v.dst = created.ID
	}
	return f
}

func (f *productFixture) linksOf(t *testing.T, productIDs ...string) []domain.ProductValueLink {
	t.Helper()
	l, err := f.store.ListProductValueLinks(context.Background(), store.ProductValueLinkFilter{ProductIDs: productIDs})
	require.NoError(t, err)
	return l
}

func TestLinkProductValues(t *testing.T) {
	ctx := context.Background()

	t.Run("links values to every product", func(t *testing.T) {
		f := newProductFixture(t)
		created, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt", "prod_mug"}, []string{f.red})

		require.NoError(t, err)
		assert.Len(t, created, 2)
		assert.ElementsMatch(t, []domain.ProductValueLink{
			{AttributeValueID: f.red, ProductID: "prod_shirt"},
			{AttributeValueID: f.red, ProductID: "prod_mug"},
		}, f.linksOf(t, "prod_shirt", "prod_mug"))
	})

	t.Run("scoped value outside product categories", func(t *testing.T) {
		f := newProductFixture(t)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_mug"}, []string{f.red, f.small})

		assert.Equal(t, domain.KindInvalidData, domain.KindOf(err))
		assert.Contains(t, err.Error(), f.small)
		assert.Empty(t, f.linksOf(t, "prod_mug"))
	})

	t.Run("unknown value", func(t *testing.T) {
		f := newProductFixture(t)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt"}, []string{"attrval_missing"})
		assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("link failure leaves nothing behind", func(t *testing.T) {
		f := newProductFixture(t)
		f.store.failOn("CreateProductValueLinks", errInjected)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt"}, []string{f.red})
		assert.ErrorIs(t, err, errInjected)
		assert.Empty(t, f.linksOf(t, "prod_shirt"))
	})
}

func TestReplaceProductValues(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the linked set", func(t *testing.T) {
		f := newProductFixture(t)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt"}, []string{f.red, f.small})
		require.NoError(t, err)

		_, err = f.svc.ReplaceProductValues(ctx, []string{"prod_shirt"}, []string{f.blue, f.small})

		require.NoError(t, err)
		assert.ElementsMatch(t, []domain.ProductValueLink{
			{AttributeValueID: f.blue, ProductID: "prod_shirt"},
			{AttributeValueID: f.small, ProductID: "prod_shirt"},
		}, f.linksOf(t, "prod_shirt"))
	})

	t.Run("no value ids is a no-op", func(t *testing.T) {
		f := newProductFixture(t)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt"}, []string{f.red})
		require.NoError(t, err)

		_, err = f.svc.ReplaceProductValues(ctx, []string{"prod_shirt"}, nil)

		require.NoError(t, err)
		assert.Len(t, f.linksOf(t, "prod_shirt"), 1)
	})

	t.Run("create failure restores dismissed links", func(t *testing.T) {
		f := newProductFixture(t)
		_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt"}, []string{f.red})
		require.NoError(t, err)
		before := f.linksOf(t, "prod_shirt")

		f.store.failOn("CreateProductValueLinks", errInjected)
		_, err = f.svc.ReplaceProductValues(ctx, []string{"prod_shirt"}, []string{f.blue})

		assert.ErrorIs(t, err, errInjected)
		assert.Equal(t, before, f.linksOf(t, "prod_shirt"))
	})
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	_, err := f.svc.LinkProductValues(ctx, []string{"prod_shirt", "prod_draft"}, []string{f.red})
	require.NoError(t, err)

	productIDs := func(products []domain.Product) []string {
		ids := make([]string, len(products))
		for i, p := range products {
			ids[i] = p.ID
		}
		return ids
	}

	t.Run("attribute value filter with default status", func(t *testing.T) {
		products, count, err := f.svc.ListProducts(ctx,
			query.ProductQuery{AttributeValueIDs: []string{f.red}},
			query.DefaultStatus(domain.ProductStatusPublished),
		)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, []string{"prod_shirt"}, productIDs(products))
	})

	t.Run("value with no links matches nothing", func(t *testing.T) {
		products, count, err := f.svc.ListProducts(ctx, query.ProductQuery{AttributeValueIDs: []string{f.blue}})
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, products)
	})

	t.Run("sales channel restriction", func(t *testing.T) {
		products, _, err := f.svc.ListProducts(ctx, query.ProductQuery{}, query.SalesChannels([]string{"sc_pos"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"prod_mug"}, productIDs(products))

		_, _, err = f.svc.ListProducts(ctx, query.ProductQuery{SalesChannelIDs: []string{"sc_web"}}, query.SalesChannels([]string{"sc_pos"}))
		assert.Equal(t, domain.KindInvalidData, domain.KindOf(err))
	})

	t.Run("category filter", func(t *testing.T) {
		products, _, err := f.svc.ListProducts(ctx, query.ProductQuery{CategoryIDs: []string{"pcat_kitchen"}}, query.Categories())
		require.NoError(t, err)
		assert.Equal(t, []string{"prod_mug"}, productIDs(products))
	})
}
