package schema

import "github.com/Ramsey-B/fern/pkg/models"

// Inward is the inward reinsurance layout. Every yearly portfolio sheet
// uses it.
func Inward() *Schema {
	return MustNew(Definition{
		Kind:          KindInward,
		Table:         models.TableInwardReinsurance,
		SheetPatterns: []string{"inward", "входящ"},
		Text: map[int]string{
			1:  "original_insured_name",
			4:  "broker_name",
			5:  "cedant_name",
			7:  "contract_number",
			11: "type_of_cover",
			12: "class_of_cover",
			14: "risk_description",
			15: "industry",
			16: "territory",
			19: "currency",
		},
		Dates: map[int]string{
			25: "inception_date",
			26: "expiry_date",
		},
		Numbers: map[int]string{
			32: "limit_of_liability",
			35: "deductible",
			39: "our_share",
			41: "gross_premium",
			45: "commission_percent",
			48: "net_premium",
		},
		StructureColumn: 31,
		StructureField:  "structure",
		Notes: []NoteColumn{
			{Index: 2}, {Index: 3}, {Index: 6}, {Index: 8}, {Index: 9}, {Index: 10},
			{Index: 13}, {Index: 17}, {Index: 18}, {Index: 20}, {Index: 21},
		},
		NotesField: "notes",
		Identity:   []string{"cedant_name", "contract_number", "original_insured_name"},
	})
}

// Contracts is the direct insurance contracts layout.
func Contracts() *Schema {
	return MustNew(Definition{
		Kind:          KindContracts,
		Table:         models.TablePolicies,
		SheetPatterns: []string{"insurance contracts", "contracts", "договор"},
		Text: map[int]string{
			0:  "accountingCode",
			1:  "policyNumber",
			2:  "insuredName",
			3:  "brokerName",
			4:  "classOfInsurance",
			5:  "typeOfInsurance",
			6:  "insuredRisk",
			7:  "territory",
			8:  "city",
			9:  "currency",
			28: "referenceLink",
			29: "conditions",
		},
		Dates: map[int]string{
			14: "inceptionDate",
			15: "expiryDate",
			22: "paymentDate",
		},
		Numbers: map[int]string{
			10: "sumInsured",
			11: "sumInsuredNational",
			12: "premiumRate",
			16: "grossPremium",
			17: "grossPremiumNational",
			18: "commissionPercent",
			19: "commissionNational",
			20: "netPremium",
			21: "netPremiumNational",
			23: "exchangeRateUSD",
			24: "equivalentUSD",
		},
		Integers: map[int]string{
			13: "insuranceDays",
		},
		Identity: []string{"policyNumber", "insuredName"},
	})
}

// Outward is the outward reinsurance layout, stored as policies rows.
func Outward() *Schema {
	return MustNew(Definition{
		Kind:          KindOutward,
		Table:         models.TablePolicies,
		SheetPatterns: []string{"outward", "исходящ"},
		Text: map[int]string{
			0:  "accountingCode",
			1:  "policyNumber",
			2:  "secondaryPolicyNumber",
			3:  "slipNumber",
			4:  "insuredName",
			5:  "reinsurerName",
			6:  "brokerName",
			7:  "classOfInsurance",
			8:  "typeOfInsurance",
			9:  "insuredRisk",
			10: "territory",
			11: "currency",
			32: "reinsuranceType",
		},
		Dates: map[int]string{
			18: "reinsuranceInceptionDate",
			19: "reinsuranceExpiryDate",
		},
		Numbers: map[int]string{
			12: "sumInsured",
			13: "limitForeignCurrency",
			14: "limitNationalCurrency",
			15: "cededShare",
			16: "sumReinsuredForeign",
			17: "sumReinsuredNational",
			21: "grossPremium",
			22: "cededPremiumForeign",
			23: "cededPremiumNational",
			24: "reinsuranceCommission",
			25: "netReinsurancePremium",
			26: "receivedPremiumForeign",
			27: "receivedPremiumNational",
			28: "exchangeRateUSD",
			29: "equivalentUSD",
		},
		Integers: map[int]string{
			20: "reinsuranceDays",
		},
		Identity: []string{"policyNumber", "insuredName", "slipNumber"},
	})
}

// Slips is the outward reinsurance slip register layout.
func Slips() *Schema {
	return MustNew(Definition{
		Kind:          KindSlips,
		Table:         models.TableSlips,
		SheetPatterns: []string{"slip", "слип", "outward re"},
		Text: map[int]string{
			0: "slipNumber",
			2: "insuredName",
			3: "brokerReinsurer",
			6: "currency",
		},
		Dates: map[int]string{
			1: "date",
		},
		Numbers: map[int]string{
			4: "limitOfLiability",
			5: "limitNational",
		},
		Identity: []string{"slipNumber"},
	})
}

// Claims is the claims portfolio layout. Its first two rows are headers.
func Claims() *Schema {
	return MustNew(Definition{
		Kind:          KindClaims,
		Table:         models.TableClaims,
		SheetPatterns: []string{"claim"},
		Text: map[int]string{
			0:  "source_label",
			3:  "claim_number",
			4:  "broker_reinsurer",
			5:  "slip_number",
			7:  "claimant_name",
			8:  "reinsured",
			9:  "insurance_type",
			10: "risk_description",
			11: "location_country",
			12: "city",
			13: "contract_number",
			14: "currency",
			46: "description",
		},
		Dates: map[int]string{
			1:  "loss_date",
			2:  "report_date",
			43: "payment_date",
		},
		Numbers: map[int]string{
			15: "sum_insured_usd",
			16: "sum_insured",
			25: "our_share_decimal",
			33: "reserve_fc",
			34: "reserve_nc",
			35: "total_loss",
			37: "our_share_loss_decimal",
			38: "our_share_loss_fc",
			39: "our_share_loss_nc",
			40: "paid_fc",
			41: "exchange_rate",
			42: "paid_nc",
			44: "outstanding",
		},
		Notes: []NoteColumn{
			{Index: 4, Label: "Broker/Reinsurer"},
			{Index: 8, Label: "Reinsured"},
			{Index: 9, Label: "Insurance Type"},
			{Index: 10, Label: "Risk"},
			{Index: 12, Label: "City"},
		},
		NotesField: "notes",
		Identity:   []string{"source_label"},
		HeaderRows: 2,
	})
}
