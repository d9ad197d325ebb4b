//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinfit/kinfit-core/internal/fitd"
	"github.com/kinfit/kinfit-core/internal/kinetics"
	"github.com/kinfit/kinfit-core/internal/reaction"
	"github.com/kinfit/kinfit-core/pkg/config"
)

func newFitService(t *testing.T) *httptest.Server {
	t.Helper()
	store := fitd.NewRunStore()
	reg := prometheus.NewRegistry()
	metrics := fitd.NewMetrics(reg)
	exec := fitd.NewRunExecutor(store, config.Default(), fitd.NewNotifier(), metrics)
	srv := httptest.NewServer(fitd.NewHTTPServer(store, exec, reg).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func singleStepRequest(t *testing.T) *fitd.FitRequest {
	t.Helper()
	truth := &reaction.Network{
		Species: 2,
		Reactions: []reaction.Reaction{
			{Source: 0, Target: 1, Model: kinetics.F1, LnA: 18, Ea: 110e3, Weight: 1},
		},
	}
	curves := make([]fitd.CurveSpec, 0, 2)
	for _, beta := range []float64{5, 10} {
		c := forwardCurve(t, truth, beta, 400, 900, 50, 0, nil)
		curves = append(curves, fitd.CurveSpec{Beta: c.Beta, Temps: c.Temps, Values: c.Values})
	}
	return &fitd.FitRequest{
		Species:       2,
		Reactions:     []fitd.ReactionSpec{{Source: 0, Target: 1}},
		Curves:        curves,
		EnabledModels: []string{"F1"},
		Optimizer: &fitd.OptimizerSpec{
			PopulationSize: 30,
			MaxGenerations: 80,
			Seed:           42,
			Tolerance:      1e-8,
		},
	}
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		t.Fatalf("POST %s: status %d", url, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func TestHTTPFitLifecycle(t *testing.T) {
	srv := newFitService(t)

	created := postJSON(t, srv.URL+"/v1/fits", singleStepRequest(t))
	run := created["run"].(map[string]any)
	runID := run["id"].(string)
	if run["status"] != "running" {
		t.Fatalf("expected running run, got %v", run["status"])
	}

	var status string
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		code, body := getJSON(t, srv.URL+"/v1/fits/"+runID)
		if code != http.StatusOK {
			t.Fatalf("expected 200 polling run, got %d", code)
		}
		status = body["run"].(map[string]any)["status"].(string)
		if status != "running" && status != "pending" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if status != "completed" {
		t.Fatalf("expected completed run, got %q", status)
	}

	code, best := getJSON(t, srv.URL+"/v1/fits/"+runID+"/best")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from best endpoint, got %d", code)
	}
	genes := best["best"].([]any)
	if len(genes) != 4 {
		t.Fatalf("expected 4-gene candidate, got %d", len(genes))
	}
	if mse := best["best_mse"].(float64); mse >= 1e-3 {
		t.Fatalf("expected residual MSE below 1e-3, got %e", mse)
	}

	code, list := getJSON(t, srv.URL+"/v1/fits")
	if code != http.StatusOK {
		t.Fatalf("expected 200 from list, got %d", code)
	}
	if runs := list["runs"].([]any); len(runs) != 1 {
		t.Fatalf("expected 1 run listed, got %d", len(runs))
	}
}

func TestHTTPFitCallbackNotifications(t *testing.T) {
	var terminal atomic.Int64
	var lastPayload atomic.Value
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p fitd.NotificationPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode callback payload: %v", err)
		}
		if p.Event == "terminal" {
			lastPayload.Store(p)
			terminal.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	srv := newFitService(t)

	req := singleStepRequest(t)
	req.CallbackURL = hook.URL + "/hooks/{run_id}"
	created := postJSON(t, srv.URL+"/v1/fits", req)
	runID := created["run"].(map[string]any)["id"].(string)

	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) && terminal.Load() == 0 {
		time.Sleep(50 * time.Millisecond)
	}
	if terminal.Load() == 0 {
		t.Fatalf("expected a terminal callback notification")
	}

	p := lastPayload.Load().(fitd.NotificationPayload)
	if p.RunID != runID {
		t.Fatalf("expected callback for run %s, got %s", runID, p.RunID)
	}
	if p.Status != fitd.RunStatusCompleted {
		t.Fatalf("expected completed status in callback, got %v", p.Status)
	}
	if len(p.Best) == 0 {
		t.Fatalf("expected best vector in terminal callback")
	}
}

func TestHTTPFitCancellation(t *testing.T) {
	srv := newFitService(t)

	req := singleStepRequest(t)
	req.Optimizer.MaxGenerations = 1000000
	req.Optimizer.Tolerance = 1e-300
	created := postJSON(t, srv.URL+"/v1/fits", req)
	runID := created["run"].(map[string]any)["id"].(string)

	postJSON(t, srv.URL+fmt.Sprintf("/v1/fits/%s:cancel", runID), nil)

	var status string
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, body := getJSON(t, srv.URL+"/v1/fits/"+runID)
		status = body["run"].(map[string]any)["status"].(string)
		if status != "running" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if status != "cancelled" {
		t.Fatalf("expected cancelled run, got %q", status)
	}
}
