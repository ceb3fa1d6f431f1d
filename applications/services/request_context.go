package services

import "github.com/google/uuid"

// RequestContext carries who is acting and the id tying log lines and
// audit entries of one request together.
type RequestContext struct {
	ActorID       uuid.UUID
	CorrelationID string
}

// NewRequestContext fills in a fresh correlation id when none was supplied.
func NewRequestContext(actorID uuid.UUID, correlationID string) RequestContext {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return RequestContext{ActorID: actorID, CorrelationID: correlationID}
}

// SystemActor performs transitions triggered by integrations such as
// payment callbacks.
var SystemActor = uuid.MustParse("00000000-0000-0000-0000-000000000001")
