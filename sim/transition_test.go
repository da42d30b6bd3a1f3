package sim

import (
	"math"
	"math/rand"
	"testing"
)

// fixedExo lets tests pin the exogenous environment.
type fixedExo struct {
	index   float64
	statAge int
}

func (f fixedExo) UnemploymentIndex(int) float64 { return f.index }
func (f fixedExo) StatutoryRetirementAge(int) int { return f.statAge }

func testModel(t *testing.T, exo Exogenous) (*Architecture, *TransitionModel) {
	t.Helper()
	arch := DefaultArchitecture()
	cfg := DefaultConfig()
	if err := cfg.Validate(arch); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	m, err := NewTransitionModel(arch, &cfg.Params, exo)
	if err != nil {
		t.Fatalf("NewTransitionModel: %v", err)
	}
	return arch, m
}

func stateID(t *testing.T, arch *Architecture, label string) StateID {
	t.Helper()
	id, ok := arch.States.ByLabel(label)
	if !ok {
		t.Fatalf("no state %q", label)
	}
	return id
}

func TestTransitionModel_RowsStochastic(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	for _, label := range []string{"inactive", "employed"} {
		from := stateID(t, arch, label)
		for _, age := range []int{10, 30, 66, 75} {
			probs := m.Probabilities(from, age, 1950)
			sum := 0.0
			for _, p := range probs {
				if p < 0 {
					t.Fatalf("state %s age %d: negative probability %g", label, age, p)
				}
				sum += p
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Errorf("state %s age %d: probabilities sum to %g", label, age, sum)
			}
		}
	}
}

func TestTransitionModel_RetirementGate(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	retired := stateID(t, arch, "retired")
	employed := stateID(t, arch, "employed")

	// BDD: Below the statutory age the retirement destination is closed
	if p := m.Probabilities(employed, 64, 1950)[retired]; p != 0 {
		t.Errorf("retirement reachable at 64: p=%g", p)
	}
	// BDD: From the statutory age it opens with the configured mass
	if p := m.Probabilities(employed, 65, 1950)[retired]; p != 0.40 {
		t.Errorf("retirement probability at 65 = %g, want 0.40", p)
	}
}

func TestTransitionModel_ForcedRetirement(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	retired := stateID(t, arch, "retired")

	for _, label := range []string{"inactive", "employed"} {
		from := stateID(t, arch, label)
		probs := m.Probabilities(from, 70, 1950)
		if probs[retired] != 1 {
			t.Errorf("from %s at 70: retirement probability %g, want 1", label, probs[retired])
		}
	}
}

func TestTransitionModel_ChildhoodHoldsInitial(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	inactive := stateID(t, arch, "inactive")
	probs := m.Probabilities(inactive, 10, 1990)
	if probs[inactive] != 1 {
		t.Errorf("childhood must hold the initial state, got p=%g", probs[inactive])
	}
}

func TestTransitionModel_AbsorbingStays(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	retired := stateID(t, arch, "retired")
	probs := m.Probabilities(retired, 67, 1950)
	if probs[retired] != 1 {
		t.Errorf("retired must stay retired, got p=%g", probs[retired])
	}
}

func TestTransitionModel_UnemploymentIndex(t *testing.T) {
	arch, neutral := testModel(t, fixedExo{index: 1, statAge: 65})
	_, doubled := testModel(t, fixedExo{index: 2, statAge: 65})
	_, zeroed := testModel(t, fixedExo{index: 0, statAge: 65})

	employed := stateID(t, arch, "employed")
	inactive := stateID(t, arch, "inactive")

	base := neutral.Probabilities(employed, 40, 1950)
	up := doubled.Probabilities(employed, 40, 1950)
	down := zeroed.Probabilities(employed, 40, 1950)

	if got, want := up[inactive], 2*base[inactive]; math.Abs(got-want) > 1e-12 {
		t.Errorf("doubled index: exit probability %g, want %g", got, want)
	}
	if down[inactive] != 0 {
		t.Errorf("zero index: exit probability %g, want 0", down[inactive])
	}

	for name, probs := range map[string][]float64{"doubled": up, "zeroed": down} {
		sum := 0.0
		for _, p := range probs {
			sum += p
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("%s index: row sums to %g", name, sum)
		}
	}
}

func TestTransitionModel_UnemploymentIndexCapped(t *testing.T) {
	// BDD: An extreme index can consume at most the stay-employed mass
	arch, m := testModel(t, fixedExo{index: 1000, statAge: 65})
	employed := stateID(t, arch, "employed")
	inactive := stateID(t, arch, "inactive")

	probs := m.Probabilities(employed, 40, 1950)
	if got, want := probs[inactive], 1.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("capped exit probability = %g, want %g", got, want)
	}
	if probs[employed] != 0 {
		t.Errorf("stay mass should be exhausted, got %g", probs[employed])
	}
}

func TestTransitionModel_LeavesRetirementColumnAlone(t *testing.T) {
	// The index shifts mass between exit and stay only.
	arch, m := testModel(t, fixedExo{index: 3, statAge: 65})
	employed := stateID(t, arch, "employed")
	retired := stateID(t, arch, "retired")
	if p := m.Probabilities(employed, 66, 1950)[retired]; p != 0.40 {
		t.Errorf("retirement mass disturbed by unemployment index: %g", p)
	}
}

func TestTransitionModel_NextDeterministic(t *testing.T) {
	arch, m := testModel(t, fixedExo{index: 1, statAge: 65})
	employed := stateID(t, arch, "employed")

	a := rand.New(rand.NewSource(3))
	b := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		sa := m.Next(a, employed, 40, 1950)
		sb := m.Next(b, employed, 40, 1950)
		if sa != sb {
			t.Fatalf("draw %d diverged: %v vs %v", i, sa, sb)
		}
		if !arch.States.CanFollow(employed, sa) {
			t.Fatalf("draw %d produced illegal successor %v", i, sa)
		}
	}
}

func TestTransitionModel_RequiresCanonicalStates(t *testing.T) {
	space, err := NewStateSpace([]StateDef{
		{Label: "alpha"}, {Label: "omega", AbsorbRank: 1},
	})
	if err != nil {
		t.Fatalf("NewStateSpace: %v", err)
	}
	arch := DefaultArchitecture()
	arch.States = space
	cfg := DefaultConfig()
	if _, err := NewTransitionModel(arch, &cfg.Params, nil); err == nil {
		t.Fatal("expected error for a space without the canonical states")
	}
}
