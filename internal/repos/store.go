package repos

import (
	"github.com/jmoiron/sqlx"

	"kinara/internal/services"
)

// Store is the SQLite storefront backend.
type Store struct {
	*ProductRepo
	*CategoryRepo
	*CustomerRepo
	*OrderRepo
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		ProductRepo:  NewProductRepo(db),
		CategoryRepo: NewCategoryRepo(db),
		CustomerRepo: NewCustomerRepo(db),
		OrderRepo:    NewOrderRepo(db),
	}
}

var _ services.Store = (*Store)(nil)
