package access

import (
	"errors"
	"testing"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

func allRoles() []Role {
	return []Role{RoleGenerator, RoleEstimator, RoleEvaluator, RoleForecaster}
}

func TestAllowed_Matrix(t *testing.T) {
	want := map[Role]map[Kind]bool{
		RoleGenerator:  {KindConfig: true, KindArchitecture: true, KindFullData: true, KindObservableData: true},
		RoleEstimator:  {KindConfig: false, KindArchitecture: true, KindFullData: false, KindObservableData: true},
		RoleEvaluator:  {KindConfig: true, KindArchitecture: true, KindFullData: true, KindObservableData: true},
		RoleForecaster: {KindConfig: false, KindArchitecture: true, KindFullData: false, KindObservableData: true},
	}
	for role, kinds := range want {
		for kind, allowed := range kinds {
			if got := Allowed(role, kind); got != allowed {
				t.Errorf("Allowed(%s, %s) = %v, want %v", role, kind, got, allowed)
			}
		}
	}
}

func testBoundary(t *testing.T) *Boundary {
	t.Helper()
	arch := sim.DefaultArchitecture()
	cfg := sim.DefaultConfig()
	cfg.Population = 20
	g, err := sim.NewGenerator(arch, cfg, nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	tables, err := g.Generate(sim.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return NewBoundary(cfg, arch, tables)
}

func TestBoundary_DeniesHiddenArtifacts(t *testing.T) {
	b := testBoundary(t)

	for _, role := range []Role{RoleEstimator, RoleForecaster} {
		if _, err := b.Config(role); err == nil {
			t.Errorf("%s read the config", role)
		} else {
			var perm *PermissionError
			if !errors.As(err, &perm) {
				t.Errorf("%s: error type %T, want *PermissionError", role, err)
			} else if perm.Role != role || perm.Kind != KindConfig {
				t.Errorf("%s: error names (%s, %s)", role, perm.Role, perm.Kind)
			}
		}
		if _, err := b.FullTables(role); err == nil {
			t.Errorf("%s read the full tables", role)
		}
	}
}

func TestBoundary_SharedArtifactsOpen(t *testing.T) {
	b := testBoundary(t)
	for _, role := range allRoles() {
		if _, err := b.Architecture(role); err != nil {
			t.Errorf("Architecture(%s): %v", role, err)
		}
		obs, err := b.Observable(role)
		if err != nil {
			t.Errorf("Observable(%s): %v", role, err)
			continue
		}
		if obs.Horizon == 0 || len(obs.Individuals) == 0 {
			t.Errorf("Observable(%s) returned an empty projection", role)
		}
	}
}

func TestBoundary_ObservableIsCensored(t *testing.T) {
	b := testBoundary(t)
	obs, err := b.Observable(RoleEstimator)
	if err != nil {
		t.Fatalf("Observable: %v", err)
	}
	full, err := b.FullTables(RoleEvaluator)
	if err != nil {
		t.Fatalf("FullTables: %v", err)
	}
	for i, ind := range full.Individuals {
		got := obs.Individuals[i].DeathYear
		if ind.DeathYear > obs.Horizon {
			if got != 0 {
				t.Errorf("individual %d: future death %d visible to estimator", ind.ID, got)
			}
		} else if got != ind.DeathYear {
			t.Errorf("individual %d: observed death %d, want %d", ind.ID, got, ind.DeathYear)
		}
	}
}

func TestViews_SurfaceMatchesMatrix(t *testing.T) {
	b := testBoundary(t)

	est := b.ForEstimator()
	if est.Architecture() == nil {
		t.Error("estimator view lost the architecture")
	}
	if est.Observable().Horizon == 0 {
		t.Error("estimator view lost the observable tables")
	}

	fc := b.ForForecaster()
	if fc.Architecture() == nil || fc.Observable().Horizon == 0 {
		t.Error("forecaster view incomplete")
	}

	ev := b.ForEvaluator()
	if ev.Config() == nil || ev.Architecture() == nil {
		t.Error("evaluator view incomplete")
	}
	if len(ev.FullTables().Individuals) == 0 || ev.Observable().Horizon == 0 {
		t.Error("evaluator view lost a table")
	}
}

func TestRoleAndKindStrings(t *testing.T) {
	if RoleEstimator.String() != "estimator" || KindConfig.String() != "config" {
		t.Error("display names drifted")
	}
	err := &PermissionError{Role: RoleEstimator, Kind: KindConfig}
	if err.Error() != "access violation: role estimator may not read config" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
