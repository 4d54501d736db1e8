package constants

// MappingSource records which tier of the category cascade classified a line item.
type MappingSource string

const (
	SourceItemBank    MappingSource = "ITEM_BANK"
	SourceGFSCategory MappingSource = "GFS_CATEGORY"
	SourceMappingRule MappingSource = "MAPPING_RULE"
	SourceUnmapped    MappingSource = "UNMAPPED"
)

// PriceStrategy records which fallback derived a line item's prices.
type PriceStrategy string

const (
	PriceFromLineTotal PriceStrategy = "LINE_TOTAL"
	PriceFromUnitPrice PriceStrategy = "UNIT_PRICE"
	PriceFromRawText   PriceStrategy = "RAW_TEXT"
	PriceUnresolved    PriceStrategy = "NONE"
)
