package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// AggregateMetrics fans out GET /metrics to every registered agent with a
// short per-agent timeout. A failing agent contributes {"error": msg}
// instead of aborting the aggregate.
func (r *Registry) AggregateMetrics(ctx context.Context) map[string]any {
	v := r.Snapshot()

	var (
		mu  sync.Mutex
		out = make(map[string]any, v.Len())
		wg  sync.WaitGroup
	)

	for _, name := range v.Names() {
		rec, _ := v.Get(name)
		wg.Add(1)
		go func(name, baseURL string) {
			defer wg.Done()
			metrics, err := r.fetchMetrics(ctx, baseURL)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out[name] = map[string]any{"error": fmt.Sprintf("could not retrieve metrics: %v", err)}
				return
			}
			out[name] = metrics
		}(name, rec.BaseURL)
	}

	wg.Wait()
	return out
}

func (r *Registry) fetchMetrics(ctx context.Context, baseURL string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.MetricsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/metrics", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET /metrics returned status %d", resp.StatusCode)
	}

	var metrics map[string]any
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, fmt.Errorf("metrics response is not a JSON object: %w", err)
	}
	return metrics, nil
}

// AgentWaterdrops extracts the aiwaterdrops_consumed field from an agent
// metrics payload, tolerating missing or non-numeric values.
func AgentWaterdrops(metrics any) (float64, bool) {
	obj, ok := metrics.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := obj["aiwaterdrops_consumed"].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
