package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"product-attribute-service/internal/domain"
	"product-attribute-service/internal/events"
	"product-attribute-service/internal/saga"
	"product-attribute-service/internal/store"
)

var errInjected = errors.New("injected store failure")

// faultyStore wraps a MemoryStore. An armed method fails on its next call only.
type faultyStore struct {
	*store.MemoryStore
	mu   sync.Mutex
	fail map[string]error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: store.NewMemoryStore(), fail: map[string]error{}}
}

func (f *faultyStore) failOn(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[method] = err
}

func (f *faultyStore) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = map[string]error{}
}

func (f *faultyStore) check(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.fail[method]
	delete(f.fail, method)
	return err
}

func (f *faultyStore) CreateCategoryLinks(ctx context.Context, l []domain.CategoryLink) error {
	if err := f.check("CreateCategoryLinks"); err != nil {
		return err
	}
	return f.MemoryStore.CreateCategoryLinks(ctx, l)
}

func (f *faultyStore) DismissCategoryLinks(ctx context.Context, l []domain.CategoryLink) error {
	if err := f.check("DismissCategoryLinks"); err != nil {
		return err
	}
	return f.MemoryStore.DismissCategoryLinks(ctx, l)
}

func (f *faultyStore) CreateProductValueLinks(ctx context.Context, l []domain.ProductValueLink) error {
	if err := f.check("CreateProductValueLinks"); err != nil {
		return err
	}
	return f.MemoryStore.CreateProductValueLinks(ctx, l)
}

func (f *faultyStore) DismissProductValueLinks(ctx context.Context, l []domain.ProductValueLink) error {
	if err := f.check("DismissProductValueLinks"); err != nil {
		return err
	}
	return f.MemoryStore.DismissProductValueLinks(ctx, l)
}

func (f *faultyStore) HardDeleteAttributes(ctx context.Context, ids []string) error {
	if err := f.check("HardDeleteAttributes"); err != nil {
		return err
	}
	return f.MemoryStore.HardDeleteAttributes(ctx, ids)
}

func (f *faultyStore) SoftDeleteAttributes(ctx context.Context, ids []string) error {
	if err := f.check("SoftDeleteAttributes"); err != nil {
		return err
	}
	return f.MemoryStore.SoftDeleteAttributes(ctx, ids)
}

func (f *faultyStore) CreateSetCategoryLinks(ctx context.Context, l []domain.SetCategoryLink) error {
	if err := f.check("CreateSetCategoryLinks"); err != nil {
		return err
	}
	return f.MemoryStore.CreateSetCategoryLinks(ctx, l)
}

type harness struct {
	store    *faultyStore
	svc      *Service
	recorder *events.Recorder
	states   []saga.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{store: newFaultyStore(), recorder: &events.Recorder{}}
	runner := saga.NewRunner(nil)
	runner.OnTransition = func(_ string, s saga.State) { h.states = append(h.states, s) }
	h.svc = NewService(h.store, runner, h.recorder)
	return h
}

func (h *harness) createAttribute(t *testing.T, in domain.CreateAttributeInput) domain.Attribute {
	t.Helper()
	created, err := h.svc.CreateAttributes(context.Background(), []domain.CreateAttributeInput{in})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return created[0]
}

func (h *harness) categoryLinks(t *testing.T, attributeID string) []domain.CategoryLink {
	t.Helper()
	l, err := h.store.ListCategoryLinks(context.Background(), store.CategoryLinkFilter{AttributeIDs: []string{attributeID}})
	require.NoError(t, err)
	return l
}

func (h *harness) possibleValueIDs(t *testing.T, attributeID string) []string {
	t.Helper()
	pvs, err := h.store.ListPossibleValues(context.Background(), []string{attributeID})
	require.NoError(t, err)
	ids := make([]string, len(pvs))
	for i, pv := range pvs {
		ids[i] = pv.ID
	}
	sort.Strings(ids)
	return ids
}

func PtrTo[T any](v T) *T {
	return &v
}

func values(vs ...string) []domain.PossibleValueInput {
	out := make([]domain.PossibleValueInput, len(vs))
	for i, v := range vs {
		out[i] = domain.PossibleValueInput{Value: v, Rank: i + 1}
	}
	return out
}
