package dispatch

// Outcome is the success record for one subtask.
type Outcome struct {
	Index   int     `json:"subtask_index"`
	Subtask string  `json:"subtask"`
	Result  string  `json:"result"`
	AgentID string  `json:"agent_id"`
	Elapsed float64 `json:"time_taken_seconds"`
}

// Failure is the failure record for one subtask. Only the diagnostic string
// goes over the wire; the index is kept for callers that partition outcomes
// programmatically.
type Failure struct {
	Index int    `json:"-"`
	Error string `json:"error"`
}

// Result aggregates one completed batch. Every input subtask appears in
// exactly one of Results or Failed.
type Result struct {
	BatchID       string    `json:"-"`
	Results       []Outcome `json:"results"`
	Failed        []Failure `json:"failed"`
	SubtasksCount int       `json:"subtasks_count"`
	AgentsUsed    int       `json:"agents_used"`
	PoolSize      int       `json:"pool_size"`
}
