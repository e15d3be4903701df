package customer

import (
	"github.com/flexprice/recurring/internal/types"
)

// Customer is an entry of the host platform's customer directory
type Customer struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`

	types.BaseModel
}
