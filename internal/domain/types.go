package domain

// RunStatus represents the pipeline state of a generation run
type RunStatus string

const (
	StatusInitializing RunStatus = "initializing"
	StatusPlanning     RunStatus = "planning"
	StatusDecomposing  RunStatus = "decomposing"
	StatusFabricating  RunStatus = "fabricating"
	StatusReviewing    RunStatus = "reviewing"
	StatusVerifying    RunStatus = "verifying"
	StatusMonitoring   RunStatus = "monitoring"
	StatusDeploying    RunStatus = "deploying"
	StatusCompleted    RunStatus = "completed"
	StatusFailed       RunStatus = "failed"
)

// Terminal returns true if no further stage can follow this status
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EventStatus represents the outcome recorded for a timeline event
type EventStatus string

const (
	EventPending    EventStatus = "pending"
	EventInProgress EventStatus = "in_progress"
	EventCompleted  EventStatus = "completed"
	EventFailed     EventStatus = "failed"
)

// Personality selects the tone of the generated agent
type Personality string

const (
	PersonalityProfessional Personality = "professional"
	PersonalityAggressive   Personality = "aggressive"
	PersonalityFriendly     Personality = "friendly"
)

// Complexity classifies generated code
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)
