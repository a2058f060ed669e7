package repository

import (
	"time"
)

// Medicine form choices. SutureAndProcedureItems and Dressing Items are
// non-pharmaceutical consumables: their batches carry no chemical name or
// dose volume.
const (
	FormTablet    = "Tablet"
	FormSyrup     = "Syrup"
	FormInjection = "Injection"
	FormCreams    = "Creams"
	FormDrops     = "Drops"
	FormFluids    = "Fluids"
	FormLotions   = "Lotions"
	FormPowder    = "Powder"
	FormRespules  = "Respules"
	FormOther     = "Other"
	FormSuture    = "SutureAndProcedureItems"
	FormDressing  = "Dressing Items"
)

// MedicineForms lists every accepted medicine form.
var MedicineForms = []string{
	FormTablet,
	FormSyrup,
	FormInjection,
	FormCreams,
	FormDrops,
	FormFluids,
	FormLotions,
	FormPowder,
	FormRespules,
	FormOther,
	FormSuture,
	FormDressing,
}

// IsValidMedicineForm reports whether form is one of the accepted choices.
func IsValidMedicineForm(form string) bool {
	for _, f := range MedicineForms {
		if f == form {
			return true
		}
	}
	return false
}

// BatchIdentity is the composite natural key of a stock batch. ChemicalName
// and DoseVolume are nil for non-pharmaceutical consumables; a nil field is
// stored as NULL, not as an empty string.
type BatchIdentity struct {
	MedicineForm string    `db:"medicine_form" json:"medicine_form"`
	BrandName    string    `db:"brand_name" json:"brand_name"`
	ChemicalName *string   `db:"chemical_name" json:"chemical_name,omitempty"`
	DoseVolume   *string   `db:"dose_volume" json:"dose_volume,omitempty"`
	ExpiryDate   time.Time `db:"expiry_date" json:"expiry_date"`
}

// BatchFilter selects batches by a partial identity. A nil field is a
// wildcard: it matches any stored value, including stored NULL. A non-nil
// field must match the stored value exactly (a stored NULL never matches a
// provided value). BrandName is always required.
type BatchFilter struct {
	MedicineForm *string
	BrandName    string
	ChemicalName *string
	DoseVolume   *string
	ExpiryDate   *time.Time
}

// FilterFor builds an exact filter for a full identity.
func FilterFor(id BatchIdentity) BatchFilter {
	expiry := id.ExpiryDate
	form := id.MedicineForm
	return BatchFilter{
		MedicineForm: &form,
		BrandName:    id.BrandName,
		ChemicalName: id.ChemicalName,
		DoseVolume:   id.DoseVolume,
		ExpiryDate:   &expiry,
	}
}
