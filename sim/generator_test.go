package sim

import (
	"reflect"
	"testing"
)

func generate(t *testing.T, cfg *Config, opts GenerateOptions) Tables {
	t.Helper()
	g, err := NewGenerator(DefaultArchitecture(), cfg, nil)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	tables, err := g.Generate(opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tables
}

func TestGenerator_PopulationShape(t *testing.T) {
	cfg := DefaultConfig()
	tables := generate(t, cfg, GenerateOptions{})

	if len(tables.Individuals) != cfg.Population {
		t.Fatalf("got %d individuals, want %d", len(tables.Individuals), cfg.Population)
	}

	// BDD: Career rows cover exactly each observable lifetime
	wantRows := 0
	for i, ind := range tables.Individuals {
		if ind.ID != int64(i)+1 {
			t.Fatalf("individual %d has ID %d, want %d", i, ind.ID, i+1)
		}
		if ind.BirthYear < cfg.Births.StartYear || ind.BirthYear > cfg.Births.EndYear {
			t.Errorf("individual %d born %d outside schedule", ind.ID, ind.BirthYear)
		}
		if ind.DeathYear < ind.BirthYear || ind.DeathYear > ind.BirthYear+cfg.MaxAge {
			t.Errorf("individual %d death year %d outside lifespan bounds", ind.ID, ind.DeathYear)
		}
		end := min(ind.DeathYear, cfg.Horizon)
		wantRows += end - ind.BirthYear + 1
	}
	if len(tables.Careers) != wantRows {
		t.Errorf("career table has %d rows, want %d", len(tables.Careers), wantRows)
	}
}

func TestGenerator_TrajectoriesValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 300
	tables := generate(t, cfg, GenerateOptions{})

	arch := DefaultArchitecture()
	grouped := CareersByID(tables.Careers)
	for _, ind := range tables.Individuals {
		if err := ValidateTrajectory(arch, ind, grouped[ind.ID], cfg.Horizon); err != nil {
			t.Fatalf("generated trajectory invalid: %v", err)
		}
	}
}

func TestGenerator_DeterministicAcrossWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 200

	serial := generate(t, cfg, GenerateOptions{Workers: 1})
	parallel := generate(t, cfg, GenerateOptions{Workers: 7})

	if !reflect.DeepEqual(serial.Individuals, parallel.Individuals) {
		t.Fatal("individual table depends on worker count")
	}
	if !reflect.DeepEqual(serial.Careers, parallel.Careers) {
		t.Fatal("career table depends on worker count")
	}
}

func TestGenerator_IndividualsStableUnderGrowth(t *testing.T) {
	// BDD: Individual k is the same person in a population of 50 or 200
	small := DefaultConfig()
	small.Population = 50
	large := DefaultConfig()
	large.Population = 200

	a := generate(t, small, GenerateOptions{})
	b := generate(t, large, GenerateOptions{})

	if !reflect.DeepEqual(a.Individuals, b.Individuals[:50]) {
		t.Error("growing the population rewrote earlier individuals")
	}
	if !reflect.DeepEqual(a.Careers, b.Careers[:len(a.Careers)]) {
		t.Error("growing the population rewrote earlier careers")
	}
}

func TestGenerator_SeedChangesTables(t *testing.T) {
	a := DefaultConfig()
	a.Population = 50
	b := DefaultConfig()
	b.Population = 50
	b.Seed = 43

	ta := generate(t, a, GenerateOptions{})
	tb := generate(t, b, GenerateOptions{})
	if reflect.DeepEqual(ta.Individuals, tb.Individuals) {
		t.Error("different seeds produced identical individuals")
	}
}

func TestGenerator_StateTimingConstraints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Population = 300
	tables := generate(t, cfg, GenerateOptions{})

	arch := DefaultArchitecture()
	employed, _ := arch.States.ByLabel("employed")
	retired, _ := arch.States.ByLabel("retired")
	forcedAge := DefaultStatutoryAge + arch.ForcedRetirementLag

	sawEmployment, sawRetirement := false, false
	for _, r := range tables.Careers {
		switch r.State {
		case employed:
			sawEmployment = true
			if r.Age < arch.MinWorkingAge {
				t.Fatalf("individual %d employed at age %d", r.ID, r.Age)
			}
			if r.Age >= forcedAge {
				t.Fatalf("individual %d still employed at age %d", r.ID, r.Age)
			}
		case retired:
			sawRetirement = true
			if r.Age < DefaultStatutoryAge {
				t.Fatalf("individual %d retired at age %d", r.ID, r.Age)
			}
		}
	}
	if !sawEmployment || !sawRetirement {
		t.Errorf("reference population should show employment and retirement (employment=%v retirement=%v)",
			sawEmployment, sawRetirement)
	}
}

func TestGenerator_PensionsCompound(t *testing.T) {
	cfg := DefaultConfig()
	tables := generate(t, cfg, GenerateOptions{})

	arch := DefaultArchitecture()
	retired, _ := arch.States.ByLabel("retired")
	rate := cfg.Params.Rules.PensionRevaluationRate

	checked := 0
	for _, rows := range CareersByID(tables.Careers) {
		var prev *CareerRow
		for i := range rows {
			r := rows[i]
			if r.State == retired && r.Pension > 0 {
				if prev != nil {
					ratio := r.Pension / prev.Pension
					if diff := ratio - (1 + rate); diff > 1e-9 || diff < -1e-9 {
						t.Fatalf("individual %d year %d: pension ratio %.9f, want %.9f", r.ID, r.Year, ratio, 1+rate)
					}
					checked++
				}
				prev = &rows[i]
			}
		}
	}
	if checked == 0 {
		t.Error("no consecutive pension pairs in the reference population")
	}
}
