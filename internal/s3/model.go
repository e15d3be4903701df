package s3

import (
	"fmt"
	"path"
	"time"

	"github.com/flexprice/recurring/internal/types"
)

// GatewayPayload is a raw webhook delivery as received from a payment gateway
type GatewayPayload struct {
	TenantID      string            `json:"tenant_id"`
	EnvironmentID string            `json:"environment_id"`
	Gateway       types.GatewayType `json:"gateway"`
	EventID       string            `json:"event_id"`
	ReceivedAt    time.Time         `json:"received_at"`
	Data          []byte            `json:"data"`
}

// ObjectKey lays payloads out by tenant, gateway and day:
// <prefix>/<tenant>/<gateway>/2024/06/01/<event>.json
func (p *GatewayPayload) ObjectKey(prefix string) string {
	eventID := p.EventID
	if eventID == "" {
		eventID = fmt.Sprintf("unidentified-%d", p.ReceivedAt.UnixNano())
	}
	return path.Join(
		prefix,
		p.TenantID,
		string(p.Gateway),
		p.ReceivedAt.UTC().Format("2006/01/02"),
		eventID+".json",
	)
}
