// Package event models the trigger payloads the pipeline can receive as a
// statically-typed sum type, per the Design Notes' guidance to replace the
// source's runtime-tagged event objects with a tagged-variant Go type.
package event

// Kind discriminates which variant a ParsedEvent carries.
type Kind string

const (
	KindStorage      Kind = "STORAGE"
	KindAPIGateway   Kind = "API_GATEWAY"
	KindOrchestrator Kind = "ORCHESTRATOR"
	KindUnknown      Kind = "UNKNOWN"
)

// StoragePayload describes an object-storage trigger: a file landed in a
// bucket. This is the variant that describes an ingestion trigger; the
// pipeline's Dispatcher (C1) itself takes the object key as a plain string.
type StoragePayload struct {
	Bucket string
	Key    string
	Size   int64
	ETag   string
}

// APIGatewayPayload describes an inbound HTTP request forwarded by the
// API gateway adapter — relevant only to cmd/statusapi, never to the
// pipeline itself.
type APIGatewayPayload struct {
	Method string
	Path   string
	Body   []byte
}

// OrchestratorPayload describes an invocation handed down by the workflow
// orchestrator's parallel-map construct, i.e. a worker's batch input.
type OrchestratorPayload struct {
	ExecutionID string
	BatchID     string
	ChunkIndex  int
}

// ParsedEvent is the tagged-variant wrapper around every trigger shape the
// system may receive. Exactly one of the payload fields is populated,
// selected by Kind.
type ParsedEvent struct {
	Kind         Kind
	Storage      *StoragePayload
	APIGateway   *APIGatewayPayload
	Orchestrator *OrchestratorPayload
}

// NewStorageEvent builds a ParsedEvent carrying a StoragePayload.
func NewStorageEvent(p StoragePayload) ParsedEvent {
	return ParsedEvent{Kind: KindStorage, Storage: &p}
}

// NewAPIGatewayEvent builds a ParsedEvent carrying an APIGatewayPayload.
func NewAPIGatewayEvent(p APIGatewayPayload) ParsedEvent {
	return ParsedEvent{Kind: KindAPIGateway, APIGateway: &p}
}

// NewOrchestratorEvent builds a ParsedEvent carrying an OrchestratorPayload.
func NewOrchestratorEvent(p OrchestratorPayload) ParsedEvent {
	return ParsedEvent{Kind: KindOrchestrator, Orchestrator: &p}
}

// Unknown is the zero-value ParsedEvent: Kind is KindUnknown and no
// payload field is populated.
func Unknown() ParsedEvent {
	return ParsedEvent{Kind: KindUnknown}
}
