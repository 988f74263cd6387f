package api

// RegisterAgentRequest is the HTTP request body for POST /register_agent.
type RegisterAgentRequest struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// PlanRequest is the HTTP request body for POST /plan and POST /run_goal.
type PlanRequest struct {
	Goal string `json:"goal"`
}

// ExecutePlanRequest is the HTTP request body for POST /execute_plan.
// Goal is optional and only labels the run's events.
type ExecutePlanRequest struct {
	Plan string `json:"plan"`
	Goal string `json:"goal"`
}
