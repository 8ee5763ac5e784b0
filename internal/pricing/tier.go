// Package pricing maps item condition tiers to listing prices, SKU suffixes
// and marketplace condition codes.
package pricing

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier enumerates the condition grades an operator can assign to a return.
type Tier string

const (
	// TierNew is an unopened or as-new unit.
	TierNew Tier = "new"
	// TierUsedLikeNew is opened with no visible wear.
	TierUsedLikeNew Tier = "used_like_new"
	// TierUsedVeryGood shows light wear.
	TierUsedVeryGood Tier = "used_very_good"
	// TierUsedGood shows moderate wear.
	TierUsedGood Tier = "used_good"
	// TierUsedAcceptable is fully functional with heavy wear.
	TierUsedAcceptable Tier = "used_acceptable"
)

// Tiers lists every supported tier in display order.
var Tiers = []Tier{TierNew, TierUsedLikeNew, TierUsedVeryGood, TierUsedGood, TierUsedAcceptable}

var tierCodes = map[Tier]string{
	TierNew:            "NEW",
	TierUsedLikeNew:    "ULN",
	TierUsedVeryGood:   "UVG",
	TierUsedGood:       "UGD",
	TierUsedAcceptable: "UAC",
}

// Amazon flat-file item-condition values keyed by display label.
var amazonConditions = map[string]string{
	"New":            "11",
	"UsedLikeNew":    "1",
	"UsedVeryGood":   "2",
	"UsedGood":       "3",
	"UsedAcceptable": "4",
}

// NotAvailable marks identifiers the gateway could not resolve.
const NotAvailable = "N/A"

// Valid reports whether t is one of the five known tiers.
func (t Tier) Valid() bool {
	_, ok := tierCodes[t]
	return ok
}

// Code returns the SKU suffix for the tier. Unknown tiers price like new
// stock, so they share its code.
func (t Tier) Code() string {
	if code, ok := tierCodes[t]; ok {
		return code
	}
	return tierCodes[TierNew]
}

// Label renders the tier as its display label, e.g. used_like_new -> UsedLikeNew.
func (t Tier) Label() string {
	caser := cases.Title(language.English, cases.NoLower)
	words := strings.Fields(strings.ReplaceAll(string(t), "_", " "))
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, "")
}

// ParseTier accepts either a tier key ("used_good") or a display label
// ("UsedGood", "Used Good") and returns the matching tier.
func ParseTier(raw string) (Tier, bool) {
	compact := strings.ToLower(strings.NewReplacer("_", "", " ", "", "-", "").Replace(strings.TrimSpace(raw)))
	for _, t := range Tiers {
		if strings.ReplaceAll(string(t), "_", "") == compact {
			return t, true
		}
	}
	return Tier(raw), false
}

// SKU derives the listing SKU from an ASIN and tier. Unknown ASINs yield N/A.
func SKU(asin string, t Tier) string {
	asin = strings.TrimSpace(asin)
	if asin == "" || asin == NotAvailable {
		return NotAvailable
	}
	return asin + "-" + t.Code()
}

// AmazonConditionCode maps a display label to the Amazon numeric
// item-condition. Anything unrecognised is reported as new (11).
func AmazonConditionCode(label string) string {
	if code, ok := amazonConditions[label]; ok {
		return code
	}
	return amazonConditions["New"]
}
