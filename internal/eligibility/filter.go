// Package eligibility decides which catalog benefits a user may see.
//
// Benefits carry integer tags.  Tag 1 means "visible to everyone".  The
// tenure tags are mapped to categories by identifier through TagRules;
// a user sees a tenure-tagged benefit once their tenure in days exceeds
// the category's availability threshold.
package eligibility

import (
	"errors"
	"time"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
)

// TagAlwaysVisible marks benefits that need no tenure.
const TagAlwaysVisible = 1

// ErrMissingProfile is returned for a non-admin user without an
// employment date, since tenure cannot be computed.
var ErrMissingProfile = errors.New("user profile has no employment date")

// TagRules maps a tenure tag to the id of the category holding its
// threshold.
type TagRules map[int]int64

// DefaultTagRules binds tags 2, 3 and 4 to the categories with the same id.
func DefaultTagRules() TagRules {
	return TagRules{2: 2, 3: 3, 4: 4}
}

// Filter returns the benefits visible to user, preserving catalog order.
// Admins see everything.  info may be nil when the user has no profile.
func Filter(user model.User, info *model.UserInfo, benefits []model.Benefit, categories []model.Category, now time.Time, rules TagRules) ([]model.Benefit, error) {
	if user.IsAdmin() {
		return benefits, nil
	}
	if info == nil {
		return nil, ErrMissingProfile
	}
	tenure, ok := info.TenureDays(now)
	if !ok {
		return nil, ErrMissingProfile
	}
	if rules == nil {
		rules = DefaultTagRules()
	}
	byID := make(map[int64]model.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	out := make([]model.Benefit, 0, len(benefits))
	seen := make(map[int64]struct{}, len(benefits))
	for _, b := range benefits {
		if _, dup := seen[b.ID]; dup {
			continue
		}
		if visible(b, tenure, byID, rules) {
			seen[b.ID] = struct{}{}
			out = append(out, b)
		}
	}
	return out, nil
}

// visible reports whether any tag of b grants access; first match wins.
func visible(b model.Benefit, tenure int, categories map[int64]model.Category, rules TagRules) bool {
	for _, tag := range b.Categories {
		if tag == TagAlwaysVisible {
			return true
		}
		catID, ok := rules[tag]
		if !ok {
			continue
		}
		cat, ok := categories[catID]
		if !ok {
			continue
		}
		if cat.AvailabilityDays == nil || tenure > *cat.AvailabilityDays {
			return true
		}
	}
	return false
}
