package unified

// Category is the unified entity subtype for catalog categories. The parent
// graph restricted to one (platform, storeId) scope must be acyclic; a
// category whose parent cannot be resolved inside the scope is treated as an
// orphaned root by the hierarchy builder.
type Category struct {
	UnifiedEntity

	// ParentID references the parent category's external ID within the same
	// (platform, storeId) scope; nil marks a root
	ParentID *string `json:"parent_id,omitempty"`
	// Level is the depth in the tree (root = 0); computed, not trusted from
	// the payload
	Level int `json:"level"`
	// MenuOrder is the sibling sort position
	MenuOrder int `json:"menu_order"`
	// ProductCount is the platform-reported number of products in the
	// category
	ProductCount int `json:"product_count"`
}

// IsRoot returns true if the category declares no parent
func (c *Category) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// CloneCategory returns a deep copy of the category
func (c *Category) CloneCategory() *Category {
	if c == nil {
		return nil
	}
	cp := *c
	cp.UnifiedEntity = *c.UnifiedEntity.Clone()
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return &cp
}

// Metadata keys category-specific fields travel under when a category moves
// through the generic entity path (adapters, resolver, repository).
const (
	MetaParentID     = "parentId"
	MetaMenuOrder    = "menuOrder"
	MetaProductCount = "productCount"
)

// AsEntity flattens the category into a generic entity with the category
// fields folded into metadata, so categories flow through the same
// resolution and persistence path as every other entity type.
func (c *Category) AsEntity() *UnifiedEntity {
	entity := c.UnifiedEntity.Clone()
	if entity.Metadata == nil {
		entity.Metadata = make(map[string]any, 3)
	}
	if c.ParentID != nil && *c.ParentID != "" {
		entity.Metadata[MetaParentID] = *c.ParentID
	} else {
		delete(entity.Metadata, MetaParentID)
	}
	entity.Metadata[MetaMenuOrder] = c.MenuOrder
	entity.Metadata[MetaProductCount] = c.ProductCount
	return entity
}

// CategoryFromEntity is the inverse of AsEntity. Numeric metadata arrives as
// float64 after a JSON round trip, so both int and float64 are accepted.
func CategoryFromEntity(e *UnifiedEntity) Category {
	c := Category{UnifiedEntity: *e.Clone()}
	if e.Metadata == nil {
		return c
	}
	if parent, ok := e.Metadata[MetaParentID].(string); ok && parent != "" {
		c.ParentID = &parent
	}
	c.MenuOrder = metaInt(e.Metadata[MetaMenuOrder])
	c.ProductCount = metaInt(e.Metadata[MetaProductCount])
	return c
}

func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
