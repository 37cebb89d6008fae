package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-attribute-service/internal/domain"
)

func TestCreateAttributeSets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	color := h.createAttribute(t, domain.CreateAttributeInput{Name: "Color"})

	sets, err := h.svc.CreateAttributeSets(ctx, []domain.CreateAttributeSetInput{{
		Name:         "Apparel Basics",
		AttributeIDs: []string{color.ID, color.ID},
		CategoryIDs:  []string{"pcat_apparel"},
	}})

	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "apparel-basics", sets[0].Handle)
	assert.Equal(t, []string{color.ID}, sets[0].AttributeIDs)
	assert.Equal(t, []string{"pcat_apparel"}, sets[0].CategoryIDs)
}

func TestCreateAttributeSets_LinkFailureRemovesSets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	in := []domain.CreateAttributeSetInput{{Name: "Apparel Basics", CategoryIDs: []string{"pcat_apparel"}}}

	h.store.failOn("CreateSetCategoryLinks", errInjected)
	_, err := h.svc.CreateAttributeSets(ctx, in)
	assert.ErrorIs(t, err, errInjected)

	// The handle is free again once the rows are compensated.
	_, err = h.svc.CreateAttributeSets(ctx, in)
	assert.NoError(t, err)
}

func TestCreateAttributeSets_RequiresName(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateAttributeSets(context.Background(), []domain.CreateAttributeSetInput{{}})
	assert.Equal(t, domain.KindInvalidData, domain.KindOf(err))
}

func TestCreateAttributeSets_UnknownAttribute(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateAttributeSets(context.Background(), []domain.CreateAttributeSetInput{
		{Name: "Apparel", AttributeIDs: []string{"attr_missing"}},
	})
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
