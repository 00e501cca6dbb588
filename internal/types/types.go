// Package types holds the shared data-model structures used across the
// conductor, storage, query, and semantic packages. Keeping them in one
// leaf package avoids import cycles between internal/store, internal/query,
// internal/semantic, and internal/conductor.
package types

import "time"

// EntityType enumerates the kinds of code-graph nodes the indexer can emit.
type EntityType string

const (
	EntityFile      EntityType = "file"
	EntityModule    EntityType = "module"
	EntityPackage   EntityType = "package"
	EntityClass     EntityType = "class"
	EntityInterface EntityType = "interface"
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityVariable  EntityType = "variable"
	EntityTypeAlias EntityType = "type"
	EntityEnum      EntityType = "enum"
	EntityField     EntityType = "field"
	EntityParameter EntityType = "parameter"
)

// RelationshipType enumerates the kinds of code-graph edges.
type RelationshipType string

const (
	RelContains        RelationshipType = "contains"
	RelImports         RelationshipType = "imports"
	RelExports         RelationshipType = "exports"
	RelCalls           RelationshipType = "calls"
	RelExtends         RelationshipType = "extends"
	RelImplements      RelationshipType = "implements"
	RelUses            RelationshipType = "uses"
	RelHasMethod       RelationshipType = "has_method"
	RelDefinesClass    RelationshipType = "defines_class"
	RelDefinesFunction RelationshipType = "defines_function"
	RelDependsOn       RelationshipType = "depends_on"
)

// DependencyEdgeTypes are the relationship types treated as "dependency
// style" for cycle detection and dependency-tree expansion. Impact analysis
// walks ImpactEdgeTypes instead.
var DependencyEdgeTypes = []RelationshipType{RelImports, RelCalls, RelUses, RelDependsOn}

// ImpactEdgeTypes are the edge types walked backwards for impact/ripple analysis.
var ImpactEdgeTypes = []RelationshipType{RelCalls, RelUses, RelImports, RelHasMethod}

// Location describes a span within a source file.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Position is a single point within a source file.
type Position struct {
	Line   int  `json:"line"`
	Column int  `json:"column"`
	Index  *int `json:"index,omitempty"`
}

// Entity is a single node in the code graph.
type Entity struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Type            EntityType     `json:"type"`
	FilePath        string         `json:"filePath"`
	Location        Location       `json:"location"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Hash            string         `json:"hash"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	ComplexityScore *float64       `json:"complexityScore,omitempty"`
	Language        string         `json:"language,omitempty"`
	SizeBytes       int64          `json:"sizeBytes,omitempty"`
}

// Relationship is a single edge in the code graph.
type Relationship struct {
	ID        string           `json:"id"`
	FromID    string           `json:"fromId"`
	ToID      string           `json:"toId"`
	Type      RelationshipType `json:"type"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// ParseError describes a per-file failure that does not abort a batch.
type ParseError struct {
	FilePath string `json:"filePath"`
	Message  string `json:"message"`
}

func (e *ParseError) Error() string { return e.FilePath + ": " + e.Message }

// EntityRef identifies an entity by its natural key rather than its
// database id. A parser does not know final entity ids — those are
// assigned by the store on upsert — so it expresses relationships in terms
// of the (name, filePath, type) triple the indexer resolves against the
// just-inserted batch plus the existing store (spec §4.4).
type EntityRef struct {
	Name     string     `json:"name"`
	FilePath string     `json:"filePath"`
	Type     EntityType `json:"type"`
}

// ParsedRelationship is a relationship as emitted by a parser, before the
// indexer resolves its endpoints to real entity ids.
type ParsedRelationship struct {
	From     EntityRef        `json:"from"`
	To       EntityRef        `json:"to"`
	Type     RelationshipType `json:"type"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

// FileParseResult is the per-file output of a parser agent.
type FileParseResult struct {
	FilePath      string               `json:"filePath"`
	Entities      []Entity             `json:"entities"`
	Relationships []ParsedRelationship `json:"relationships"`
	Error         *ParseError          `json:"error,omitempty"`
	Heuristic     bool                 `json:"heuristic"`
}

// Vector is a stored embedding plus the content and metadata it was derived from.
type Vector struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Embedding []float32      `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Task is an in-flight unit of work owned by the Conductor. Tasks are never
// persisted; they live only in agent queues and the Conductor's pending map.
type Task struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Priority    int            `json:"priority"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"createdAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Result      any            `json:"result,omitempty"`
	Err         error          `json:"-"`
}

// BusEntry is a single message delivered over the knowledge bus.
type BusEntry struct {
	Topic     string    `json:"topic"`
	Data      any       `json:"data"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the entry is past its TTL, if any.
func (e BusEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// CircuitState is one of the three circuit-breaker states.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// AgentStatus is the mutable lifecycle state of an agent.
type AgentStatus string

const (
	AgentIdle     AgentStatus = "idle"
	AgentBusy     AgentStatus = "busy"
	AgentError    AgentStatus = "error"
	AgentShutdown AgentStatus = "shutdown"
)

// RejectReason is a structured reason an agent declined a task.
type RejectReason string

const (
	ReasonNotIdle         RejectReason = "not_idle"
	ReasonQueueFull       RejectReason = "queue_full"
	ReasonMemoryLimit     RejectReason = "memory_limit"
	ReasonUnsupportedTask RejectReason = "unsupported_task"
)

// AgentMessage is a point-to-point or bus-carried message between agents.
type AgentMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Topic     string    `json:"topic"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentMetrics is the rolling counter set an agent reports to the Conductor.
type AgentMetrics struct {
	TasksCompleted int64     `json:"tasksCompleted"`
	TasksFailed    int64     `json:"tasksFailed"`
	QueueLength    int       `json:"queueLength"`
	MemoryMB       float64   `json:"memoryMB"`
	CPUPercent     float64   `json:"cpuPercent"`
	LastActivity   time.Time `json:"lastActivity"`
}
