package planning

// ExecutionState is the latest progress report from the executor.
type ExecutionState struct {
	TaskName string `json:"task_name"`
	Percent  int    `json:"percent"`
}

// ClampPercent bounds p to [0, 100].
func ClampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
