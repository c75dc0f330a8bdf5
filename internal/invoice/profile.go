package invoice

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-extract/constants"
)

// Profile is one configuration of the extractor. The two presets correspond to
// the two invoice layouts the tool has always supported: an itemized layout with
// a parsed item table and a scanned layout that also keeps raw spans.
type Profile struct {
	Name constants.ProfileName

	// FoldNewlines replaces newlines in multi-line captures with spaces.
	FoldNewlines bool
	// KeepItemSpan stores the raw item table text in Item_List.
	KeepItemSpan bool
	// CustomerFallback retries the customer name up to end of line when no phone is printed.
	CustomerFallback bool
	// Branch captures the bank branch line.
	Branch bool
	// Totals captures Taxable_Amount and Authorized_Signatory.
	Totals bool
	// HostedAddresses asks the hosted service for company address, shipping and place of supply.
	HostedAddresses bool
	// EmbeddedImages OCRs images embedded in PDFs on the hosted path.
	EmbeddedImages bool
}

var (
	Itemized = Profile{
		Name:   constants.ProfileItemized,
		Totals: true,
	}
	Scanned = Profile{
		Name:             constants.ProfileScanned,
		FoldNewlines:     true,
		KeepItemSpan:     true,
		CustomerFallback: true,
		Branch:           true,
		HostedAddresses:  true,
		EmbeddedImages:   true,
	}
)

// LookupProfile resolves a user-supplied profile name (aliases allowed).
func LookupProfile(name string) (Profile, error) {
	canon, ok := constants.CanonicalizeProfile(name)
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (want one of %v)", name, constants.ProfileNames())
	}
	switch canon {
	case constants.ProfileScanned:
		return Scanned, nil
	default:
		return Itemized, nil
	}
}
