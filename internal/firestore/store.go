package firestore

import (
	"cloud.google.com/go/firestore"

	"kinara/internal/services"
)

// Store is the Firestore storefront backend.
type Store struct {
	*CatalogRepositoryFS
	*CustomerRepositoryFS
	*OrderRepositoryFS
}

func NewStore(client *firestore.Client) *Store {
	return &Store{
		CatalogRepositoryFS:  NewCatalogRepositoryFS(client),
		CustomerRepositoryFS: NewCustomerRepositoryFS(client),
		OrderRepositoryFS:    NewOrderRepositoryFS(client),
	}
}

var _ services.Store = (*Store)(nil)
