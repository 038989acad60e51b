package app

// EngineOperation tracks a CLI operation that may mutate the database.
// Operations are created in memory with ID=0. Only DB-mutating commands
// persist them (giving them an auto-increment ID from the database).
type EngineOperation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "success" or "error"
}

// NewEngineOperation creates a new in-memory operation record.
func NewEngineOperation(operation, parameters string) *EngineOperation {
	return &EngineOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *EngineOperation) Persisted() bool {
	return op.ID != 0
}
