package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/events"
)

func TestListPossibleValues_Pagination(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", PossibleValues: values("S", "M", "L")})

	page, total, err := h.svc.ListPossibleValues(ctx, size.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "M", page[0].Value)
	assert.Equal(t, "L", page[1].Value)

	page, total, err = h.svc.ListPossibleValues(ctx, size.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)

	_, _, err = h.svc.ListPossibleValues(ctx, "attr_missing", 50, 0)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestGetPossibleValue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", PossibleValues: values("S")})
	color := h.createAttribute(t, domain.CreateAttributeInput{Name: "Color", PossibleValues: values("Red")})

	pv, err := h.svc.GetPossibleValue(ctx, size.ID, size.PossibleValues[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "S", pv.Value)

	_, err = h.svc.GetPossibleValue(ctx, size.ID, color.PossibleValues[0].ID)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err), "A value of another attribute is not found")
}

func TestCreatePossibleValues(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", PossibleValues: values("S")})

	created, err := h.svc.CreatePossibleValues(ctx, []domain.CreatePossibleValueInput{
		{AttributeID: size.ID, Value: "XL", Rank: 9},
	})

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, size.ID, created[0].AttributeID)
	assert.Len(t, h.possibleValueIDs(t, size.ID), 2)
	emitted := h.recorder.Named(events.AttributeUpdated)
	require.Len(t, emitted, 1)
	assert.Equal(t, []string{size.ID}, emitted[0].IDs)
}

func TestCreatePossibleValues_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", PossibleValues: values("S")})

	tests := []struct {
		name     string
		inputs   []domain.CreatePossibleValueInput
		wantKind domain.ErrorKind
	}{
		{"existing value", []domain.CreatePossibleValueInput{{AttributeID: size.ID, Value: "S"}}, domain.KindDuplicate},
		{"repeated in payload", []domain.CreatePossibleValueInput{
			{AttributeID: size.ID, Value: "M"}, {AttributeID: size.ID, Value: "M"},
		}, domain.KindDuplicate},
		{"unknown attribute", []domain.CreatePossibleValueInput{{AttributeID: "attr_missing", Value: "M"}}, domain.KindNotFound},
		{"blank value", []domain.CreatePossibleValueInput{{AttributeID: size.ID, Value: " "}}, domain.KindInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreatePossibleValues(ctx, tt.inputs)
			assert.Equal(t, tt.wantKind, domain.KindOf(err))
			assert.Len(t, h.possibleValueIDs(t, size.ID), 1)
		})
	}
}

func TestCreatePossibleValues_EmitFailureRemovesRows(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	size := h.createAttribute(t, domain.CreateAttributeInput{Name: "Size", PossibleValues: values("S")})
	before := h.possibleValueIDs(t, size.ID)
	boom := errors.New("broker unavailable")
	h.recorder.Err = boom

	_, err := h.svc.CreatePossibleValues(ctx, []domain.CreatePossibleValueInput{{AttributeID: size.ID, Value: "M"}})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before, h.possibleValueIDs(t, size.ID))
}
