package roles

import (
	"github.com/locallink-app/locallink/backend/internal/catalog"
	"github.com/locallink-app/locallink/backend/internal/directory"
)

const (
	customerGroupFragment = "customer"
	providerGroupFragment = "service_provider"

	// placeholderEmail is the compatibility shim surfaced when a directory
	// record carries no email in either the standard or legacy attribute.
	placeholderEmail = "N/A"
)

// Customer is the identity projection of a directory user in a customer group.
type Customer struct {
	ID         string `json:"id"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email"`
}

// Provider joins a directory user in a provider group with the service
// records that user owns, in store order.
type Provider struct {
	ID         string           `json:"id"`
	GivenName  string           `json:"givenName"`
	FamilyName string           `json:"familyName"`
	Email      string           `json:"email"`
	Services   []catalog.Record `json:"services"`
}

// AdminData is the role-partitioned view returned to administrators.
type AdminData struct {
	Customers []Customer `json:"customers"`
	Providers []Provider `json:"providers"`
}

// Aggregate partitions the directory listing into customers and providers by
// group membership and joins each provider with the records it owns. The two
// filters run independently: a user whose groups match both fragments appears
// in both views. The join is computed fresh from the inputs; records whose
// owner is absent from the listing are simply never surfaced.
func Aggregate(users []directory.User, records []catalog.Record) AdminData {
	data := AdminData{
		Customers: make([]Customer, 0, len(users)),
		Providers: make([]Provider, 0, len(users)),
	}

	for _, user := range users {
		if user.InGroupContaining(customerGroupFragment) {
			data.Customers = append(data.Customers, Customer{
				ID:         user.ID,
				GivenName:  user.Name.GivenName,
				FamilyName: user.Name.FamilyName,
				Email:      displayEmail(user),
			})
		}
		if user.InGroupContaining(providerGroupFragment) {
			data.Providers = append(data.Providers, Provider{
				ID:         user.ID,
				GivenName:  user.Name.GivenName,
				FamilyName: user.Name.FamilyName,
				Email:      displayEmail(user),
				Services:   ownedRecords(records, user.ID),
			})
		}
	}

	return data
}

// displayEmail applies the fallback order: primary email attribute, then the
// legacy schema extension, then the literal placeholder.
func displayEmail(user directory.User) string {
	if email, ok := user.PrimaryEmail(); ok {
		return email
	}
	return placeholderEmail
}

func ownedRecords(records []catalog.Record, ownerID string) []catalog.Record {
	owned := make([]catalog.Record, 0)
	for _, record := range records {
		if record.OwnerIdentity == ownerID {
			owned = append(owned, record)
		}
	}
	return owned
}
