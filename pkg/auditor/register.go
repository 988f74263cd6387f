package auditor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RegisterWithOrchestrator announces the auditor to an orchestrator so it
// can appear in plans. Called at startup when ORCHESTRATOR_URL is set;
// retries briefly because the orchestrator may still be coming up.
func RegisterWithOrchestrator(ctx context.Context, orchestratorURL, baseURL string) error {
	body, err := json.Marshal(map[string]string{
		"name":     AgentName,
		"base_url": baseURL,
	})
	if err != nil {
		return fmt.Errorf("marshal registration: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, orchestratorURL+"/register_agent", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build registration request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, respBody)
	}
	return fmt.Errorf("register with orchestrator: %w", lastErr)
}
