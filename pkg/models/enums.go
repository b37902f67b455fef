package models

// Structure is the treaty structure of an inward contract.
type Structure string

const (
	StructureProportional    Structure = "PROPORTIONAL"
	StructureNonProportional Structure = "NON_PROPORTIONAL"
)

// Origin says whether business was written in the domestic market.
type Origin string

const (
	OriginDomestic Origin = "DOMESTIC"
	OriginForeign  Origin = "FOREIGN"
)

// EntityType is the classification of a legal entity.
type EntityType string

const (
	EntityTypeBroker           EntityType = "Broker"
	EntityTypeInsuranceCompany EntityType = "Insurance Company"
	EntityTypeReinsurer        EntityType = "Reinsurer"
	EntityTypeInsured          EntityType = "Insured"
	EntityTypeOther            EntityType = "Other"
)

// SourceType is the declared category of a claim row. It selects which
// parent lookup maps are consulted.
type SourceType string

const (
	SourceTypeInwardForeign  SourceType = "inward-foreign"
	SourceTypeInwardDomestic SourceType = "inward-domestic"
	SourceTypeDirect         SourceType = "direct"
	SourceTypeOutward        SourceType = "outward"
	SourceTypeUnknown        SourceType = "unknown"
)

// IsInward reports whether the source type is one of the inward categories.
func (s SourceType) IsInward() bool {
	return s == SourceTypeInwardForeign || s == SourceTypeInwardDomestic
}

type LiabilityType string

const (
	LiabilityActive        LiabilityType = "ACTIVE"
	LiabilityInformational LiabilityType = "INFORMATIONAL"
)

type ClaimStatus string

const (
	ClaimStatusOpen   ClaimStatus = "OPEN"
	ClaimStatusClosed ClaimStatus = "CLOSED"
)

type TransactionType string

const (
	TransactionReserveSet TransactionType = "RESERVE_SET"
	TransactionPayment    TransactionType = "PAYMENT"
)

// BatchStatus tracks an import batch through its run.
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusPreviewed BatchStatus = "previewed"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPartial   BatchStatus = "partial"
	BatchStatusFailed    BatchStatus = "failed"
)
