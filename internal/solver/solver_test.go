package solver

import (
	"errors"
	"math"
	"testing"
	"time"
)

func decay(lambda float64) Func {
	return func(t float64, y, dy []float64) {
		for i := range y {
			dy[i] = -lambda * y[i]
		}
	}
}

func TestIntegrateExponentialDecay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RTol = 1e-6
	cfg.ATol = 1e-9
	cfg.Timeout = 0

	lambda := 1.5
	samples := []float64{0, 0.5, 1, 2, 4}
	traj, err := Integrate(decay(lambda), []float64{1}, 0, 4, samples, cfg)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if len(traj.Y) != len(samples) {
		t.Fatalf("expected %d sampled states, got %d", len(samples), len(traj.Y))
	}

	for i, ts := range samples {
		want := math.Exp(-lambda * ts)
		got := traj.Y[i][0]
		if math.Abs(got-want) > 1e-5 {
			t.Errorf("at t=%f: expected %e, got %e", ts, want, got)
		}
	}
	if traj.Stats.Steps == 0 || traj.Stats.Evals == 0 {
		t.Error("expected non-zero step and evaluation counts")
	}
}

func TestIntegrateMethodsAgree(t *testing.T) {
	methods := []Method{MethodAuto, MethodDopri5, MethodRosenbrock}
	samples := []float64{1, 2, 3}

	for _, m := range methods {
		t.Run(string(m), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Method = m
			cfg.RTol = 1e-5
			cfg.ATol = 1e-8
			cfg.Timeout = 0

			traj, err := Integrate(decay(0.7), []float64{2}, 0, 3, samples, cfg)
			if err != nil {
				t.Fatalf("unexpected failure: %v", err)
			}
			for i, ts := range samples {
				want := 2 * math.Exp(-0.7*ts)
				if math.Abs(traj.Y[i][0]-want) > 1e-3 {
					t.Errorf("at t=%f: expected %e, got %e", ts, want, traj.Y[i][0])
				}
			}
		})
	}
}

func TestIntegrateStiffSystem(t *testing.T) {
	// y0' = -1000*y0 + 999*y1, y1' = -y1. Stiffness ratio 1000.
	fn := func(t float64, y, dy []float64) {
		dy[0] = -1000*y[0] + 999*y[1]
		dy[1] = -y[1]
	}
	cfg := DefaultConfig()
	cfg.Method = MethodRosenbrock
	cfg.RTol = 1e-4
	cfg.ATol = 1e-7
	cfg.Timeout = 0

	samples := []float64{2}
	traj, err := Integrate(fn, []float64{2, 1}, 0, 2, samples, cfg)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	// Analytic: y0 = e^-1000t + e^-t, y1 = e^-t.
	want0 := math.Exp(-1000*2.0) + math.Exp(-2.0)
	want1 := math.Exp(-2.0)
	if math.Abs(traj.Y[0][0]-want0) > 1e-3 {
		t.Errorf("y0 at t=2: expected %e, got %e", want0, traj.Y[0][0])
	}
	if math.Abs(traj.Y[0][1]-want1) > 1e-3 {
		t.Errorf("y1 at t=2: expected %e, got %e", want1, traj.Y[0][1])
	}
}

func TestIntegrateAutoSwitchesOnStiffness(t *testing.T) {
	fn := func(t float64, y, dy []float64) {
		dy[0] = -1e6 * (y[0] - math.Cos(t))
	}
	cfg := DefaultConfig()
	cfg.Method = MethodAuto
	cfg.Timeout = 0

	traj, err := Integrate(fn, []float64{0}, 0, 1, []float64{1}, cfg)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if !traj.Stats.Switched {
		t.Error("expected auto method to switch to the stiff integrator")
	}
	// Solution tracks cos(t) after the fast transient.
	if math.Abs(traj.Y[0][0]-math.Cos(1)) > 1e-2 {
		t.Errorf("expected y(1) near cos(1)=%f, got %f", math.Cos(1), traj.Y[0][0])
	}
}

func TestIntegrateDeadline(t *testing.T) {
	slow := func(t float64, y, dy []float64) {
		time.Sleep(2 * time.Millisecond)
		dy[0] = -y[0]
	}
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond

	start := time.Now()
	_, err := Integrate(slow, []float64{1}, 0, 1000, []float64{1000}, cfg)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected deadline failure, got nil error")
	}
	var fail *Failure
	if !errors.As(err, &fail) {
		t.Fatalf("expected *Failure, got %T", err)
	}
	if fail.Reason != ReasonDeadline {
		t.Errorf("expected deadline reason, got %s", fail.Reason)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("deadline enforcement too slow: %v", elapsed)
	}
}

func TestIntegrateNonFinite(t *testing.T) {
	blowup := func(t float64, y, dy []float64) {
		dy[0] = y[0] * y[0]
	}
	cfg := DefaultConfig()
	cfg.Method = MethodDopri5
	cfg.MaxSteps = 5000
	cfg.Timeout = 0

	// y' = y^2 with y(0)=1 blows up at t=1.
	_, err := Integrate(blowup, []float64{1}, 0, 2, []float64{2}, cfg)
	if err == nil {
		t.Fatal("expected failure for finite-time blowup, got nil")
	}
	var fail *Failure
	if !errors.As(err, &fail) {
		t.Fatalf("expected *Failure, got %T", err)
	}
}

func TestIntegrateBadInput(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name    string
		y0      []float64
		t0, t1  float64
		samples []float64
	}{
		{"Empty state", nil, 0, 1, nil},
		{"Reversed span", []float64{1}, 1, 0, nil},
		{"Sample outside span", []float64{1}, 0, 1, []float64{2}},
		{"Unsorted samples", []float64{1}, 0, 1, []float64{0.5, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Integrate(decay(1), tt.y0, tt.t0, tt.t1, tt.samples, cfg)
			var fail *Failure
			if !errors.As(err, &fail) {
				t.Fatalf("expected *Failure, got %v", err)
			}
			if fail.Reason != ReasonBadInput {
				t.Errorf("expected bad input reason, got %s", fail.Reason)
			}
		})
	}
}

func TestFailureError(t *testing.T) {
	f := &Failure{Reason: ReasonDeadline, T: 450}
	msg := f.Error()
	if msg == "" {
		t.Error("expected non-empty error message")
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	filled := c.withDefaults()
	if filled.Method != MethodAuto {
		t.Errorf("expected default method auto, got %s", filled.Method)
	}
	if filled.RTol != 1e-2 || filled.ATol != 1e-4 {
		t.Errorf("expected default tolerances 1e-2/1e-4, got %g/%g", filled.RTol, filled.ATol)
	}
	if filled.MaxSteps <= 0 {
		t.Error("expected positive default max steps")
	}
}
