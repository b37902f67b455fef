package models

// LegalEntity is a counterparty referenced by imported records.
type LegalEntity struct {
	FullName      string     `json:"fullName"`
	ShortName     *string    `json:"shortName"`
	Type          EntityType `json:"type"`
	Country       *string    `json:"country"`
	ImportBatchID string     `json:"import_batch_id"`
}

// Record converts the entity into a legal_entities record.
func (e LegalEntity) Record() *Record {
	rec := NewRecord(TableLegalEntities, "", 0)
	rec.Set("fullName", e.FullName)
	rec.Set("shortName", stringOrNil(e.ShortName))
	rec.Set("type", string(e.Type))
	rec.Set("country", stringOrNil(e.Country))
	rec.Set(FieldImportBatchID, e.ImportBatchID)
	return rec
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
