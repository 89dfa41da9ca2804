package events

import (
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/models"
)

var ErrUnroutable = errors.New("no queue for document type")

// Router maps a document type to its durable queue.
type Router struct {
	BoletaQueue  string
	FacturaQueue string
}

func NewRouter(cfg config.BrokerConfig) Router {
	return Router{
		BoletaQueue:  cfg.BoletaQueue,
		FacturaQueue: cfg.FacturaQueue,
	}
}

func (r Router) QueueFor(docType string) (string, error) {
	switch docType {
	case models.DocumentTypeBoleta:
		return r.BoletaQueue, nil
	case models.DocumentTypeFactura:
		return r.FacturaQueue, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnroutable, docType)
	}
}
