package types

import (
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex sub_01HXYZ...
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortIDWithPrefix returns a short, human friendly id such as rtry_dppUr5Wwx.
// Used for references that show up in notes and logs, never for primary keys.
func GenerateShortIDWithPrefix(prefix string) string {
	once.Do(initializeSID)
	id := sidGenerator.MustGenerate()
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

const (
	UUID_PREFIX_SUBSCRIPTION      = "sub"
	UUID_PREFIX_SUBSCRIPTION_NOTE = "subnote"
	UUID_PREFIX_ORDER             = "ord"
	UUID_PREFIX_ORDER_NOTE        = "ordnote"
	UUID_PREFIX_CUSTOMER          = "cust"
	UUID_PREFIX_GATEWAY_EVENT     = "gwevt"
	UUID_PREFIX_WEBHOOK_EVENT     = "webhook"

	SHORT_ID_PREFIX_RETRY = "rtry"
)
