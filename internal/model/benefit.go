package model

// Benefit is a catalog entry employees can request, stored in the
// `benefits` table.
//
// Fields:
//
//	ID               – primary key identifier.
//	Name             – internal name of the benefit.
//	CardName         – display name shown on the catalog card (optional).
//	Text             – long description (optional).
//	Categories       – eligibility tags, see package eligibility.
//	CoverPath        – stored cover image name (nullable).
//	NeedConfirmation – requests must be approved by an admin.
//	NeedFiles        – requests carry evidence images.
type Benefit struct {
	ID               int64   // benefits.id
	Name             string  // benefits.name
	CardName         *string // benefits.card_name
	Text             *string // benefits.text
	Categories       []int   // benefits.categories (JSON array)
	CoverPath        *string // benefits.cover_path
	NeedConfirmation bool    // benefits.need_confirmation
	NeedFiles        bool    // benefits.need_files
}

// DisplayName returns the card name when one is set.
func (b Benefit) DisplayName() string {
	if b.CardName != nil && *b.CardName != "" {
		return *b.CardName
	}
	return b.Name
}

// Category is a named eligibility tier.  AvailabilityDays is the minimum
// tenure a user must exceed to see benefits tagged with this tier; nil
// means the tier has no threshold.
type Category struct {
	ID               int64  // categories.id
	Name             string // categories.name
	AvailabilityDays *int   // categories.availability_days
}
