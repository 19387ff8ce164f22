// Package params implements MctsParams, spec.md §4.7: a flat, clamped
// container of tunable scalar parameters. Grounded on the teacher's
// mcts.Config / dualnet.Config convention (a plain struct plus an
// IsValid/clamp method — see SPEC_FULL.md §1), generalised to the
// search-tuning surface spec.md §3 and §4.5 describe.
package params

import "math"

// Tunable describes one scalar knob's valid range, default, and SPSA
// step, the metadata spec.md §4.7 requires controllers be able to read
// back ("metadata (min, max, default, SPSA step)").
type Tunable struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
	Step    float64 // SPSA step size, for external tuning harnesses
}

func (t Tunable) clamp(v float64) float64 {
	if v < t.Min {
		return t.Min
	}
	if v > t.Max {
		return t.Max
	}
	return v
}

// Params is the full set of MCTS tunables. Every field is read through
// an accessor; there is no global mutable state (spec.md §9:
// "Options and parameters are owned by the controller and passed into
// each search").
type Params struct {
	cpuctBase       float64
	cpuctRoot       float64
	cpuctVisitScale float64
	cpuctVarWeight  float64
	cpuctVarScale   float64
	explorationTau  float64
	giniBase        float64
	giniMin         float64
	giniMax         float64
	virtualLossW    float64
	contempt        float64
	tmOptBase       float64
	tmMtg           float64
	tmHardLimit     float64
}

var metadata = map[string]Tunable{
	"CPuctBase":       {"CPuctBase", 0.1, 5.0, 1.50, 0.05},
	"CPuctRoot":       {"CPuctRoot", 0.1, 6.0, 2.00, 0.05},
	"CPuctVisitScale": {"CPuctVisitScale", 1.0, 1000.0, 100.0, 2.0},
	"CPuctVarWeight":  {"CPuctVarWeight", 0.0, 2.0, 0.15, 0.01},
	"CPuctVarScale":   {"CPuctVarScale", 0.01, 1.0, 0.10, 0.01},
	"ExplorationTau":  {"ExplorationTau", 0.0, 1.0, 0.50, 0.02},
	"GiniBase":        {"GiniBase", 0.0, 2.0, 1.0, 0.02},
	"GiniMin":         {"GiniMin", 0.0, 1.0, 0.25, 0.02},
	"GiniMax":         {"GiniMax", 1.0, 4.0, 2.0, 0.05},
	"VirtualLossW":    {"VirtualLossW", 0.0, 10.0, 2.5, 0.1},
	"Contempt":        {"Contempt", -100.0, 100.0, 0.0, 1.0},
	"TmOptBase":       {"TmOptBase", 0.01, 1.0, 0.04, 0.005},
	"TmMtg":           {"TmMtg", 2.0, 60.0, 30.0, 1.0},
	"TmHardLimit":     {"TmHardLimit", 0.05, 1.0, 0.30, 0.01},
}

// Default returns the tunable set at its documented defaults.
func Default() *Params {
	p := &Params{}
	p.cpuctBase = metadata["CPuctBase"].Default
	p.cpuctRoot = metadata["CPuctRoot"].Default
	p.cpuctVisitScale = metadata["CPuctVisitScale"].Default
	p.cpuctVarWeight = metadata["CPuctVarWeight"].Default
	p.cpuctVarScale = metadata["CPuctVarScale"].Default
	p.explorationTau = metadata["ExplorationTau"].Default
	p.giniBase = metadata["GiniBase"].Default
	p.giniMin = metadata["GiniMin"].Default
	p.giniMax = metadata["GiniMax"].Default
	p.virtualLossW = metadata["VirtualLossW"].Default
	p.contempt = metadata["Contempt"].Default
	p.tmOptBase = metadata["TmOptBase"].Default
	p.tmMtg = metadata["TmMtg"].Default
	p.tmHardLimit = metadata["TmHardLimit"].Default
	return p
}

// SetScaled sets a named parameter from a controller-supplied integer
// scaled ×1000 (spec.md §4.7: "External controllers set values as
// integers scaled ×1000; the record clamps before storing"), returning
// false for an unknown name.
func (p *Params) SetScaled(name string, scaledValue int64) bool {
	t, ok := metadata[name]
	if !ok {
		return false
	}
	v := t.clamp(float64(scaledValue) / 1000.0)
	switch name {
	case "CPuctBase":
		p.cpuctBase = v
	case "CPuctRoot":
		p.cpuctRoot = v
	case "CPuctVisitScale":
		p.cpuctVisitScale = v
	case "CPuctVarWeight":
		p.cpuctVarWeight = v
	case "CPuctVarScale":
		p.cpuctVarScale = v
	case "ExplorationTau":
		p.explorationTau = v
	case "GiniBase":
		p.giniBase = v
	case "GiniMin":
		p.giniMin = v
	case "GiniMax":
		p.giniMax = v
	case "VirtualLossW":
		p.virtualLossW = v
	case "Contempt":
		p.contempt = v
	case "TmOptBase":
		p.tmOptBase = v
	case "TmMtg":
		p.tmMtg = v
	case "TmHardLimit":
		p.tmHardLimit = v
	}
	return true
}

// Metadata returns the tunable descriptor for `name`, for controllers
// enumerating options (UCI `option` lines).
func Metadata(name string) (Tunable, bool) {
	t, ok := metadata[name]
	return t, ok
}

// Names lists every tunable's name.
func Names() []string {
	names := make([]string, 0, len(metadata))
	for n := range metadata {
		names = append(names, n)
	}
	return names
}

func (p *Params) CPuctBase() float64         { return p.cpuctBase }
func (p *Params) CPuctRoot() float64         { return p.cpuctRoot }
func (p *Params) CPuctVisitScale() float64   { return p.cpuctVisitScale }
func (p *Params) CPuctVarWeight() float64    { return p.cpuctVarWeight }
func (p *Params) CPuctVarScale() float64     { return p.cpuctVarScale }
func (p *Params) ExplorationTau() float64    { return p.explorationTau }
func (p *Params) GiniBase() float64          { return p.giniBase }
func (p *Params) GiniMin() float64           { return p.giniMin }
func (p *Params) GiniMax() float64           { return p.giniMax }
func (p *Params) VirtualLossWeight() float64 { return p.virtualLossW }
func (p *Params) Contempt() float64          { return p.contempt }
func (p *Params) TmOptBase() float64         { return p.tmOptBase }
func (p *Params) TmMtg() float64             { return p.tmMtg }
func (p *Params) TmHardLimit() float64       { return p.tmHardLimit }

// Cpuct computes the visit-count-adapted exploration coefficient from
// spec.md §4.5: "cpuct = cpuct_base * (1 + ln((N + S) / S))" where
// S = cpuct_visits_scale * 128.
func (p *Params) Cpuct(base float64, parentVisits uint32) float64 {
	s := p.cpuctVisitScale * 128
	return base * (1 + math.Log((float64(parentVisits)+s)/s))
}
