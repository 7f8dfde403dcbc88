package platform

import (
	"context"
	"encoding/json"
	"log"
)

// ActivityLogger is the audit-log contract. Persistence is owned by an
// external module; this service only emits.
type ActivityLogger interface {
	Log(ctx context.Context, action, entity, id string, diff map[string]any)
}

type LogActivity struct{}

func (LogActivity) Log(_ context.Context, action, entity, id string, diff map[string]any) {
	if diff == nil {
		log.Printf("activity %s %s/%s", action, entity, id)
		return
	}
	payload, _ := json.Marshal(diff)
	log.Printf("activity %s %s/%s %s", action, entity, id, payload)
}
