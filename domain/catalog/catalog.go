// Package catalog formats the configured model list for clients.
// All functions are pure data transformations.
package catalog

// catalogEpoch is the fixed creation timestamp reported for every
// entry; clients expect the field but nothing consumes its value.
const catalogEpoch = 1677610602

// Pricing holds per-token prices as decimal strings.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// Entry is one model in the listing, OpenAI list format.
type Entry struct {
	ID         string   `json:"id"`
	Object     string   `json:"object"`
	Created    int64    `json:"created"`
	OwnedBy    string   `json:"owned_by"`
	Permission []string `json:"permission"`
	Root       string   `json:"root"`
	Parent     string   `json:"parent,omitempty"`
	Pricing    Pricing  `json:"pricing"`
}

// Listing is the response envelope for a model list.
type Listing struct {
	Object string  `json:"object"`
	Data   []Entry `json:"data"`
}

// Owner and pricing tiers for the display variants.
const (
	ownerStandard = "google"
	ownerExpress  = "google-express"
	ownerSecure   = "google-secure"

	priceStandard = "0.0020"
	priceExpress  = "0.0010"
	priceSecure   = "0.0025"
)

// encryptSuffix marks the full-encryption display variant of a base
// model.
const encryptSuffix = "-encrypt-full"

// List builds the client-facing model listing: one entry per standard
// model, one per express model, and an encryption variant for each
// standard model.
func List(standard, express []string) Listing {
	data := make([]Entry, 0, 2*len(standard)+len(express))

	for _, id := range standard {
		data = append(data, entry(id, id, "", ownerStandard, priceStandard))
	}
	for _, id := range express {
		data = append(data, entry(id, id, "", ownerExpress, priceExpress))
	}
	for _, base := range standard {
		data = append(data, entry(base+encryptSuffix, base, base, ownerSecure, priceSecure))
	}

	return Listing{Object: "list", Data: data}
}

func entry(id, root, parent, owner, price string) Entry {
	return Entry{
		ID:         id,
		Object:     "model",
		Created:    catalogEpoch,
		OwnedBy:    owner,
		Permission: []string{},
		Root:       root,
		Parent:     parent,
		Pricing:    Pricing{Prompt: price, Completion: price},
	}
}
