package export

import (
	"strings"
	"unicode"

	"github.com/odyssey-erp/returnsdesk/internal/returns"
)

// FilterAmazon keeps entries routed to MFN or FBA.
func FilterAmazon(entries []returns.ReturnEntry) []returns.ReturnEntry {
	var out []returns.ReturnEntry
	for _, e := range entries {
		if e.Output.Amazon() {
			out = append(out, e)
		}
	}
	return out
}

// FilterOutput keeps entries routed to output.
func FilterOutput(entries []returns.ReturnEntry, output returns.Output) []returns.ReturnEntry {
	var out []returns.ReturnEntry
	for _, e := range entries {
		if e.Output == output {
			out = append(out, e)
		}
	}
	return out
}

// FilterMarketplace keeps uploads whose marketplace equals marketplace.
func FilterMarketplace(uploads []returns.PendingUpload, marketplace string) []returns.PendingUpload {
	var out []returns.PendingUpload
	for _, u := range uploads {
		if u.Marketplace == marketplace {
			out = append(out, u)
		}
	}
	return out
}

// AsListings wraps return entries as uploads with no shelf location.
func AsListings(entries []returns.ReturnEntry) []returns.PendingUpload {
	out := make([]returns.PendingUpload, len(entries))
	for i, e := range entries {
		out[i] = returns.PendingUpload{ReturnEntry: e}
	}
	return out
}

func entriesOf(uploads []returns.PendingUpload) []returns.ReturnEntry {
	out := make([]returns.ReturnEntry, len(uploads))
	for i, u := range uploads {
		out[i] = u.ReturnEntry
	}
	return out
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(s))
}
