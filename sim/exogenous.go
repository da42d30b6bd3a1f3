package sim

// Exogenous supplies the environment a population lives through:
// quantities set outside the model, shared by every individual, and
// known to every pipeline role. Implementations live in sim/scenario.
type Exogenous interface {
	// UnemploymentIndex returns a multiplicative pressure on leaving
	// employment in the given calendar year. 1 is neutral; 2 doubles
	// the employed-to-inactive base probability (capped so rows stay
	// stochastic); 0 removes it.
	UnemploymentIndex(year int) float64

	// StatutoryRetirementAge returns the age from which individuals of
	// the given birth cohort may retire.
	StatutoryRetirementAge(birthYear int) int
}

// NeutralExogenous is the zero-scenario environment: unemployment index
// pinned at 1 and a flat statutory retirement age for every cohort.
// The generator falls back to it when no scenario is supplied.
type NeutralExogenous struct {
	RetirementAge int
}

// DefaultStatutoryAge is the flat retirement age of the neutral scenario.
const DefaultStatutoryAge = 65

// NewNeutralExogenous returns the neutral environment.
func NewNeutralExogenous() NeutralExogenous {
	return NeutralExogenous{RetirementAge: DefaultStatutoryAge}
}

// UnemploymentIndex always returns 1.
func (NeutralExogenous) UnemploymentIndex(int) float64 { return 1 }

// StatutoryRetirementAge returns the flat configured age.
func (e NeutralExogenous) StatutoryRetirementAge(int) int { return e.RetirementAge }
