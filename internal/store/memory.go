package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"product-attribute-service/internal/domain"
)

// MemoryStore is an in-process RelationStore with the same semantics as
// PostgresStore. It backs STORE_DRIVER=memory and the orchestration tests.
type MemoryStore struct {
	mu  sync.RWMutex
	seq int
	now func() time.Time

	attributes      map[string]*attributeRow
	possibleValues  map[string]*possibleValueRow
	attributeValues map[string]*attributeValueRow
	sets            map[string]*domain.AttributeSet
	products        map[string]domain.Product

	categoryLinks     map[domain.CategoryLink]struct{}
	productValueLinks map[domain.ProductValueLink]struct{}
	setCategoryLinks  map[domain.SetCategoryLink]struct{}
}

type attributeRow struct {
	seq int
	domain.Attribute
}

type possibleValueRow struct {
	seq int
	domain.PossibleValue
}

type attributeValueRow struct {
	seq int
	domain.AttributeValue
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:               func() time.Time { return time.Now().UTC() },
		attributes:        make(map[string]*attributeRow),
		possibleValues:    make(map[string]*possibleValueRow),
		attributeValues:   make(map[string]*attributeValueRow),
		sets:              make(map[string]*domain.AttributeSet),
		products:          make(map[string]domain.Product),
		categoryLinks:     make(map[domain.CategoryLink]struct{}),
		productValueLinks: make(map[domain.ProductValueLink]struct{}),
		setCategoryLinks:  make(map[domain.SetCategoryLink]struct{}),
	}
}

// PutProduct registers a product of the external products module.
func (s *MemoryStore) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) nextSeq() int {
	s.seq++
	return s.seq
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

func (s *MemoryStore) handleTaken(handle, exceptID string) bool {
	for _, row := range s.attributes {
		if row.DeletedAt == nil && row.Handle == handle && row.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) findPossibleValue(attributeID, value string) *possibleValueRow {
	for _, row := range s.possibleValues {
		if row.DeletedAt == nil && row.AttributeID == attributeID && row.Value == value {
			return row
		}
	}
	return nil
}

// --- AttributeStorer ---

func (s *MemoryStore) CreateAttributes(ctx context.Context, attributes []domain.Attribute) ([]domain.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(attributes))
	for _, a := range attributes {
		if _, dup := seen[a.Handle]; dup || s.handleTaken(a.Handle, "") {
			return nil, ErrHandleExists
		}
		seen[a.Handle] = struct{}{}
		values := make(map[string]struct{}, len(a.PossibleValues))
		for _, pv := range a.PossibleValues {
			if _, dup := values[pv.Value]; dup {
				return nil, ErrPossibleValueExists
			}
			values[pv.Value] = struct{}{}
		}
	}

	now := s.now()
	created := make([]domain.Attribute, 0, len(attributes))
	for _, a := range attributes {
		if a.ID == "" {
			a.ID = domain.NewID(domain.PrefixAttribute)
		}
		a.CreatedAt, a.UpdatedAt, a.DeletedAt = now, now, nil
		values := a.PossibleValues
		a.PossibleValues = nil
		a.CategoryIDs = nil
		s.attributes[a.ID] = &attributeRow{seq: s.nextSeq(), Attribute: a}

		for _, pv := range values {
			if pv.ID == "" {
				pv.ID = domain.NewID(domain.PrefixPossibleValue)
			}
			pv.AttributeID = a.ID
			pv.CreatedAt, pv.UpdatedAt, pv.DeletedAt = now, now, nil
			s.possibleValues[pv.ID] = &possibleValueRow{seq: s.nextSeq(), PossibleValue: pv}
		}
		created = append(created, s.loadAttribute(s.attributes[a.ID]))
	}
	return created, nil
}

// loadAttribute copies a row and attaches its live possible values and links.
func (s *MemoryStore) loadAttribute(row *attributeRow) domain.Attribute {
	a := row.Attribute
	a.PossibleValues = s.possibleValuesOf(toSet([]string{a.ID}))
	a.CategoryIDs = nil
	for link := range s.categoryLinks {
		if link.AttributeID == a.ID {
			a.CategoryIDs = append(a.CategoryIDs, link.CategoryID)
		}
	}
	sort.Strings(a.CategoryIDs)
	return a
}

func (s *MemoryStore) possibleValuesOf(attributeIDs map[string]struct{}) []domain.PossibleValue {
	rows := make([]*possibleValueRow, 0)
	for _, row := range s.possibleValues {
		if row.DeletedAt != nil {
			continue
		}
		if _, ok := attributeIDs[row.AttributeID]; ok {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Rank != rows[j].Rank {
			return rows[i].Rank < rows[j].Rank
		}
		return rows[i].seq < rows[j].seq
	})
	values := make([]domain.PossibleValue, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.PossibleValue)
	}
	return values
}

func (s *MemoryStore) ListAttributes(ctx context.Context, filter AttributeFilter) ([]domain.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.filterAttributes(filter)
	if filter.Offset > 0 {
		if filter.Offset >= len(rows) {
			rows = rows[:0]
		} else {
			rows = rows[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(rows) {
		rows = rows[:filter.Limit]
	}

	result := make([]domain.Attribute, 0, len(rows))
	for _, row := range rows {
		result = append(result, s.loadAttribute(row))
	}
	return result, nil
}

func (s *MemoryStore) CountAttributes(ctx context.Context, filter AttributeFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filterAttributes(filter)), nil
}

// filterAttributes returns matching rows in creation order, ignoring
// pagination.
func (s *MemoryStore) filterAttributes(filter AttributeFilter) []*attributeRow {
	ids, handles, names := toSet(filter.IDs), toSet(filter.Handles), toSet(filter.Names)
	rows := make([]*attributeRow, 0)
	for _, row := range s.attributes {
		if row.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if !matches(ids, row.ID) || !matches(handles, row.Handle) || !matches(names, row.Name) {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(row.Name), strings.ToLower(*filter.Search)) {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (s *MemoryStore) ListAttributeIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.attributes))
	for id, row := range s.attributes {
		if row.DeletedAt == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) UpdateAttribute(ctx context.Context, attribute domain.Attribute) (*domain.Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.attributes[attribute.ID]
	if !ok || row.DeletedAt != nil {
		return nil, ErrAttributeNotFound
	}
	if s.handleTaken(attribute.Handle, attribute.ID) {
		return nil, ErrHandleExists
	}
	row.Name = attribute.Name
	row.Description = attribute.Description
	row.Handle = attribute.Handle
	row.IsFilterable = attribute.IsFilterable
	row.Metadata = attribute.Metadata
	row.UpdatedAt = s.now()

	updated := s.loadAttribute(row)
	return &updated, nil
}

func (s *MemoryStore) HardDeleteAttributes(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := toSet(ids)
	for id := range set {
		delete(s.attributes, id)
	}
	for id, row := range s.possibleValues {
		if _, ok := set[row.AttributeID]; ok {
			delete(s.possibleValues, id)
		}
	}
	for id, row := range s.attributeValues {
		if _, ok := set[row.AttributeID]; ok {
			delete(s.attributeValues, id)
		}
	}
	return nil
}

func (s *MemoryStore) SoftDeleteAttributes(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	set := toSet(ids)
	for id := range set {
		if row, ok := s.attributes[id]; ok && row.DeletedAt == nil {
			row.DeletedAt = &now
		}
	}
	for _, row := range s.possibleValues {
		if _, ok := set[row.AttributeID]; ok && row.DeletedAt == nil {
			row.DeletedAt = &now
		}
	}
	for _, row := range s.attributeValues {
		if _, ok := set[row.AttributeID]; ok && row.DeletedAt == nil {
			row.DeletedAt = &now
		}
	}
	return nil
}

// RestoreAttributes clears deleted_at on the attributes and on the children
// that were removed by the same cascade.
func (s *MemoryStore) RestoreAttributes(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deletedAt := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		if row, ok := s.attributes[id]; ok && row.DeletedAt != nil {
			deletedAt[id] = *row.DeletedAt
			row.DeletedAt = nil
		}
	}
	for _, row := range s.possibleValues {
		if at, ok := deletedAt[row.AttributeID]; ok && row.DeletedAt != nil && row.DeletedAt.Equal(at) {
			row.DeletedAt = nil
		}
	}
	for _, row := range s.attributeValues {
		if at, ok := deletedAt[row.AttributeID]; ok && row.DeletedAt != nil && row.DeletedAt.Equal(at) {
			row.DeletedAt = nil
		}
	}
	return nil
}

func (s *MemoryStore) UpsertPossibleValues(ctx context.Context, values []domain.PossibleValue) ([]domain.PossibleValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	result := make([]domain.PossibleValue, 0, len(values))
	for _, pv := range values {
		if attr, ok := s.attributes[pv.AttributeID]; !ok || attr.DeletedAt != nil {
			return nil, ErrAttributeNotFound
		}
		var row *possibleValueRow
		if pv.ID != "" {
			row = s.possibleValues[pv.ID]
			if row != nil && row.AttributeID != pv.AttributeID {
				return nil, ErrPossibleValueNotFound
			}
		} else {
			row = s.findPossibleValue(pv.AttributeID, pv.Value)
		}

		if other := s.findPossibleValue(pv.AttributeID, pv.Value); other != nil && (row == nil || other.ID != row.ID) {
			return nil, ErrPossibleValueExists
		}

		if row == nil {
			if pv.ID == "" {
				pv.ID = domain.NewID(domain.PrefixPossibleValue)
			}
			if pv.CreatedAt.IsZero() {
				pv.CreatedAt = now
			}
			pv.UpdatedAt, pv.DeletedAt = now, nil
			row = &possibleValueRow{seq: s.nextSeq(), PossibleValue: pv}
			s.possibleValues[pv.ID] = row
		} else {
			row.Value = pv.Value
			row.Rank = pv.Rank
			row.Metadata = pv.Metadata
			row.UpdatedAt = now
			row.DeletedAt = nil
		}
		result = append(result, row.PossibleValue)
	}
	return result, nil
}

func (s *MemoryStore) ListPossibleValues(ctx context.Context, attributeIDs []string) ([]domain.PossibleValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.possibleValuesOf(toSet(attributeIDs)), nil
}

func (s *MemoryStore) DeletePossibleValues(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.possibleValues, id)
	}
	return nil
}

// --- AttributeValueStorer ---

func (s *MemoryStore) CreateAttributeValue(ctx context.Context, value domain.AttributeValue) (*domain.AttributeValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attr, ok := s.attributes[value.AttributeID]; !ok || attr.DeletedAt != nil {
		return nil, ErrAttributeNotFound
	}
	if value.ID == "" {
		value.ID = domain.NewID(domain.PrefixAttributeValue)
	}
	now := s.now()
	if value.CreatedAt.IsZero() {
		value.CreatedAt = now
	}
	value.UpdatedAt, value.DeletedAt = now, nil
	s.attributeValues[value.ID] = &attributeValueRow{seq: s.nextSeq(), AttributeValue: value}
	return &value, nil
}

func (s *MemoryStore) ListAttributeValues(ctx context.Context, filter AttributeValueFilter) ([]domain.AttributeValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, attrs, values := toSet(filter.IDs), toSet(filter.AttributeIDs), toSet(filter.Values)
	rows := make([]*attributeValueRow, 0)
	for _, row := range s.attributeValues {
		if row.DeletedAt != nil {
			continue
		}
		if matches(ids, row.ID) && matches(attrs, row.AttributeID) && matches(values, row.Value) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	result := make([]domain.AttributeValue, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.AttributeValue)
	}
	return result, nil
}

func (s *MemoryStore) DeleteAttributeValues(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if row, ok := s.attributeValues[id]; ok && row.DeletedAt == nil {
			delete(s.attributeValues, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- AttributeSetStorer ---

func (s *MemoryStore) CreateAttributeSets(ctx context.Context, sets []domain.AttributeSet) ([]domain.AttributeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range sets {
		for _, existing := range s.sets {
			if existing.DeletedAt == nil && existing.Handle == set.Handle {
				return nil, ErrSetHandleExists
			}
		}
		for _, id := range set.AttributeIDs {
			if attr, ok := s.attributes[id]; !ok || attr.DeletedAt != nil {
				return nil, ErrAttributeNotFound
			}
		}
	}
	now := s.now()
	created := make([]domain.AttributeSet, 0, len(sets))
	for _, set := range sets {
		if set.ID == "" {
			set.ID = domain.NewID(domain.PrefixAttributeSet)
		}
		set.CreatedAt, set.UpdatedAt, set.DeletedAt = now, now, nil
		set.CategoryIDs = nil
		stored := set
		s.sets[set.ID] = &stored
		created = append(created, set)
	}
	return created, nil
}

func (s *MemoryStore) DeleteAttributeSets(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.sets, id)
	}
	return nil
}

// --- LinkStorer ---

func (s *MemoryStore) CreateCategoryLinks(ctx context.Context, links []domain.CategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		s.categoryLinks[l] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) DismissCategoryLinks(ctx context.Context, links []domain.CategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		delete(s.categoryLinks, l)
	}
	return nil
}

func (s *MemoryStore) ListCategoryLinks(ctx context.Context, filter CategoryLinkFilter) ([]domain.CategoryLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, cats := toSet(filter.AttributeIDs), toSet(filter.CategoryIDs)
	result := make([]domain.CategoryLink, 0)
	for l := range s.categoryLinks {
		if matches(attrs, l.AttributeID) && matches(cats, l.CategoryID) {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AttributeID != result[j].AttributeID {
			return result[i].AttributeID < result[j].AttributeID
		}
		return result[i].CategoryID < result[j].CategoryID
	})
	return result, nil
}

func (s *MemoryStore) CreateProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		s.productValueLinks[l] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) DismissProductValueLinks(ctx context.Context, links []domain.ProductValueLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		delete(s.productValueLinks, l)
	}
	return nil
}

func (s *MemoryStore) ListProductValueLinks(ctx context.Context, filter ProductValueLinkFilter) ([]domain.ProductValueLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values, products, excluded := toSet(filter.AttributeValueIDs), toSet(filter.ProductIDs), toSet(filter.ExcludeValueIDs)
	result := make([]domain.ProductValueLink, 0)
	for l := range s.productValueLinks {
		if _, skip := excluded[l.AttributeValueID]; skip {
			continue
		}
		if matches(values, l.AttributeValueID) && matches(products, l.ProductID) {
			result = append(result, l)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AttributeValueID != result[j].AttributeValueID {
			return result[i].AttributeValueID < result[j].AttributeValueID
		}
		return result[i].ProductID < result[j].ProductID
	})
	return result, nil
}

func (s *MemoryStore) CreateSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		s.setCategoryLinks[l] = struct{}{}
		if set, ok := s.sets[l.AttributeSetID]; ok {
			set.CategoryIDs = appendUnique(set.CategoryIDs, l.CategoryID)
		}
	}
	return nil
}

func (s *MemoryStore) DismissSetCategoryLinks(ctx context.Context, links []domain.SetCategoryLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range links {
		delete(s.setCategoryLinks, l)
		if set, ok := s.sets[l.AttributeSetID]; ok {
			set.CategoryIDs = removeString(set.CategoryIDs, l.CategoryID)
		}
	}
	return nil
}

// --- ProductReader ---

func (s *MemoryStore) GetProductCategories(ctx context.Context, productID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return append([]string(nil), p.CategoryIDs...), nil
}

func (s *MemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids, statuses := toSet(filter.IDs), toSet(filter.Status)
	channels, cats := toSet(filter.SalesChannelIDs), toSet(filter.CategoryIDs)
	products := make([]domain.Product, 0)
	for _, p := range s.products {
		if !matches(ids, p.ID) || !matches(statuses, p.Status) {
			continue
		}
		if len(channels) > 0 && !anyIn(p.SalesChannelIDs, channels) {
			continue
		}
		if len(cats) > 0 && !anyIn(p.CategoryIDs, cats) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	total := len(products)
	if filter.Offset > 0 {
		if filter.Offset >= len(products) {
			products = products[:0]
		} else {
			products = products[filter.Offset:]
		}
	}
	if filter.Limit > 0 && filter.Limit < len(products) {
		products = products[:filter.Limit]
	}
	return products, total, nil
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func removeString(values []string, v string) []string {
	out := values[:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}
