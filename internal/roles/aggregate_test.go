package roles

import (
	"encoding/json"
	"testing"

	"github.com/locallink-app/locallink/backend/internal/catalog"
	"github.com/locallink-app/locallink/backend/internal/directory"
)

func customerUser(id, email string) directory.User {
	user := directory.User{
		ID:     id,
		Name:   directory.Name{GivenName: "Given", FamilyName: "Family"},
		Groups: []directory.Group{{Display: "Customer"}},
	}
	if email != "" {
		user.Emails = []directory.EmailEntry{{Value: email}}
	}
	return user
}

func providerUser(id, email string) directory.User {
	user := directory.User{
		ID:     id,
		Name:   directory.Name{GivenName: "Given", FamilyName: "Family"},
		Groups: []directory.Group{{Display: "Service_Provider"}},
	}
	if email != "" {
		user.Emails = []directory.EmailEntry{{Value: email}}
	}
	return user
}

func TestAggregatePartitionsUsersAndJoinsProviderServices(t *testing.T) {
	users := []directory.User{
		customerUser("u1", "u1@example.com"),
		providerUser("u2", "u2@example.com"),
	}
	records := []catalog.Record{
		{ID: "svc-1", OwnerIdentity: "u2", Name: "Lawn mowing", Price: 25},
	}

	data := Aggregate(users, records)

	if len(data.Customers) != 1 || data.Customers[0].ID != "u1" {
		t.Fatalf("unexpected customers: %+v", data.Customers)
	}
	if len(data.Providers) != 1 || data.Providers[0].ID != "u2" {
		t.Fatalf("unexpected providers: %+v", data.Providers)
	}
	if len(data.Providers[0].Services) != 1 || data.Providers[0].Services[0].ID != "svc-1" {
		t.Fatalf("expected provider to carry its record, got %+v", data.Providers[0].Services)
	}
}

func TestAggregateFiltersGroupsCaseInsensitively(t *testing.T) {
	users := []directory.User{
		{ID: "u1", Groups: []directory.Group{{Display: "PREMIUM-CUSTOMERS"}}},
		{ID: "u2", Groups: []directory.Group{{Display: "service_provider/tier-1"}}},
		{ID: "u3", Groups: []directory.Group{{Display: "staff"}}},
	}

	data := Aggregate(users, nil)

	if len(data.Customers) != 1 || data.Customers[0].ID != "u1" {
		t.Fatalf("unexpected customers: %+v", data.Customers)
	}
	if len(data.Providers) != 1 || data.Providers[0].ID != "u2" {
		t.Fatalf("unexpected providers: %+v", data.Providers)
	}
}

func TestAggregateIncludesDualRoleUserInBothViews(t *testing.T) {
	user := directory.User{
		ID:     "u1",
		Groups: []directory.Group{{Display: "Customer"}, {Display: "Service_Provider"}},
	}

	data := Aggregate([]directory.User{user}, nil)

	if len(data.Customers) != 1 || len(data.Providers) != 1 {
		t.Fatalf("expected user in both views, got %+v", data)
	}
}

func TestAggregateEmailFallbackOrder(t *testing.T) {
	withLegacy := directory.User{
		ID:     "u1",
		Groups: []directory.Group{{Display: "Customer"}, {Display: "Service_Provider"}},
		Legacy: &directory.LegacyExtension{EmailAddresses: []string{"legacy@example.com"}},
	}
	withBoth := directory.User{
		ID:     "u2",
		Groups: []directory.Group{{Display: "Customer"}},
		Emails: []directory.EmailEntry{{Value: "primary@example.com"}},
		Legacy: &directory.LegacyExtension{EmailAddresses: []string{"legacy@example.com"}},
	}
	withNeither := directory.User{
		ID:     "u3",
		Groups: []directory.Group{{Display: "Customer"}, {Display: "Service_Provider"}},
	}

	data := Aggregate([]directory.User{withLegacy, withBoth, withNeither}, nil)

	if data.Customers[0].Email != "legacy@example.com" {
		t.Fatalf("expected legacy fallback, got %q", data.Customers[0].Email)
	}
	if data.Customers[1].Email != "primary@example.com" {
		t.Fatalf("expected primary email to win, got %q", data.Customers[1].Email)
	}
	if data.Customers[2].Email != "N/A" {
		t.Fatalf("expected placeholder for missing emails, got %q", data.Customers[2].Email)
	}
	// The fallback applies identically to the provider projection.
	if data.Providers[0].Email != "legacy@example.com" || data.Providers[1].Email != "N/A" {
		t.Fatalf("unexpected provider emails: %+v", data.Providers)
	}
}

func TestAggregatePreservesRecordOrderAndSkipsOrphans(t *testing.T) {
	users := []directory.User{providerUser("u2", "")}
	records := []catalog.Record{
		{ID: "svc-1", OwnerIdentity: "u2"},
		{ID: "svc-2", OwnerIdentity: "gone-user"},
		{ID: "svc-3", OwnerIdentity: "u2"},
	}

	data := Aggregate(users, records)

	services := data.Providers[0].Services
	if len(services) != 2 || services[0].ID != "svc-1" || services[1].ID != "svc-3" {
		t.Fatalf("unexpected service join: %+v", services)
	}
}

func TestAggregateEmptyInputsMarshalToEmptyArrays(t *testing.T) {
	encoded, err := json.Marshal(Aggregate(nil, nil))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(encoded) != `{"customers":[],"providers":[]}` {
		t.Fatalf("expected empty arrays, got %s", encoded)
	}
}
