package lists

import (
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Catalog looks titles up by id.
type Catalog interface {
	ByID(kind title.Kind, id int64) (title.Title, error)
}
