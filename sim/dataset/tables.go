// Package dataset persists population tables and lays out the scoped
// artifact tree of a recovery experiment.
//
// A table pair is two CSV files plus a YAML header describing where
// the data came from. The header travels with the data so a reader
// never has to guess the horizon, the censoring, or the producing
// identities.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lifecourse-sim/lifecourse-sim/sim"
)

// FormatVersion identifies the on-disk table layout.
const FormatVersion = 1

// Table sources.
const (
	// SourceGenerator marks tables produced directly from a Config.
	SourceGenerator = "generator"

	// SourceForecast marks tables regenerated from posterior draws.
	SourceForecast = "forecast"
)

// Header is the YAML metadata written next to each table pair.
// Censored tables never carry the generating seed.
type Header struct {
	FormatVersion  int    `yaml:"format_version"`
	Source         string `yaml:"source"`
	Name           string `yaml:"name"`
	ConfigID       string `yaml:"config_id"`
	ArchitectureID string `yaml:"architecture_id"`
	ScenarioID     string `yaml:"scenario_id,omitempty"`
	Scenario       string `yaml:"scenario,omitempty"`
	Seed           int64  `yaml:"seed,omitempty"`
	Population     int    `yaml:"population"`
	Horizon        int    `yaml:"horizon"`
	MaxAge         int    `yaml:"max_age,omitempty"`
	Censored       bool   `yaml:"censored"`
}

// File names within a table directory.
const (
	headerFile      = "header.yaml"
	individualsFile = "individuals.csv"
	careersFile     = "careers.csv"
)

var individualColumns = []string{"id", "birth_year", "death_year"}

var careerColumns = []string{"id", "year", "age", "state", "job_type", "income", "pension", "work_intensity"}

// === Writing ===

// WriteTables exports a table pair under dir, creating it as needed.
// States are stored by label so files stay readable and stable across
// state-ID reorderings.
func WriteTables(dir string, h Header, space *sim.StateSpace, t sim.Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating table directory: %w", err)
	}
	headerData, err := yaml.Marshal(&h)
	if err != nil {
		return fmt.Errorf("marshaling table header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, headerFile), headerData, 0o644); err != nil {
		return fmt.Errorf("writing table header: %w", err)
	}
	if err := writeIndividuals(filepath.Join(dir, individualsFile), t.Individuals); err != nil {
		return err
	}
	return writeCareers(filepath.Join(dir, careersFile), space, t.Careers)
}

// WriteObservable exports the censored projection. The header is
// marked censored and stripped of the seed regardless of what the
// caller passed.
func WriteObservable(dir string, h Header, space *sim.StateSpace, obs sim.ObservableTables) error {
	h.Censored = true
	h.Seed = 0
	h.Horizon = obs.Horizon
	return WriteTables(dir, h, space, sim.Tables{Individuals: obs.Individuals, Careers: obs.Careers})
}

func writeIndividuals(path string, inds []sim.Individual) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating individuals file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(individualColumns); err != nil {
		return fmt.Errorf("writing individuals header: %w", err)
	}
	for _, ind := range inds {
		row := []string{
			strconv.FormatInt(ind.ID, 10),
			strconv.Itoa(ind.BirthYear),
			strconv.Itoa(ind.DeathYear),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing individual %d: %w", ind.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeCareers(path string, space *sim.StateSpace, rows []sim.CareerRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating careers file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(careerColumns); err != nil {
		return fmt.Errorf("writing careers header: %w", err)
	}
	for _, r := range rows {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.Age),
			space.Label(r.State),
			r.JobType,
			strconv.FormatFloat(r.Income, 'f', -1, 64),
			strconv.FormatFloat(r.Pension, 'f', -1, 64),
			strconv.FormatFloat(r.WorkIntensity, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing career row %d/%d: %w", r.ID, r.Year, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// === Reading ===

// ReadHeader reads only the header of a table directory.
func ReadHeader(dir string) (Header, error) {
	data, err := os.ReadFile(filepath.Join(dir, headerFile))
	if err != nil {
		return Header{}, fmt.Errorf("reading table header: %w", err)
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("parsing table header: %w", err)
	}
	if h.FormatVersion != FormatVersion {
		return Header{}, fmt.Errorf("unsupported table format version %d (supported: %d)", h.FormatVersion, FormatVersion)
	}
	return h, nil
}

// ReadTables loads a table pair from dir.
func ReadTables(dir string, space *sim.StateSpace) (Header, sim.Tables, error) {
	h, err := ReadHeader(dir)
	if err != nil {
		return Header{}, sim.Tables{}, err
	}
	inds, err := readIndividuals(filepath.Join(dir, individualsFile))
	if err != nil {
		return Header{}, sim.Tables{}, err
	}
	careers, err := readCareers(filepath.Join(dir, careersFile), space)
	if err != nil {
		return Header{}, sim.Tables{}, err
	}
	return h, sim.Tables{Individuals: inds, Careers: careers}, nil
}

// ReadObservable loads a censored table pair. It refuses an uncensored
// directory: the caller asked for the observable projection, and
// silently widening its view would defeat the scoping.
func ReadObservable(dir string, space *sim.StateSpace) (Header, sim.ObservableTables, error) {
	h, t, err := ReadTables(dir, space)
	if err != nil {
		return Header{}, sim.ObservableTables{}, err
	}
	if !h.Censored {
		return Header{}, sim.ObservableTables{}, fmt.Errorf("table directory %s holds uncensored data", dir)
	}
	return h, sim.ObservableTables{Individuals: t.Individuals, Careers: t.Careers, Horizon: h.Horizon}, nil
}

func readIndividuals(path string) ([]sim.Individual, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening individuals file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading individuals header: %w", err)
	}
	if len(header) != len(individualColumns) {
		return nil, fmt.Errorf("individuals file has %d columns, want %d", len(header), len(individualColumns))
	}

	var out []sim.Individual
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading individuals line %d: %w", line, err)
		}
		id, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("individuals line %d: bad id %q", line, row[0])
		}
		birth, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("individuals line %d: bad birth_year %q", line, row[1])
		}
		death, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("individuals line %d: bad death_year %q", line, row[2])
		}
		out = append(out, sim.Individual{ID: id, BirthYear: birth, DeathYear: death})
	}
	return out, nil
}

func readCareers(path string, space *sim.StateSpace) ([]sim.CareerRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening careers file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading careers header: %w", err)
	}
	if len(header) != len(careerColumns) {
		return nil, fmt.Errorf("careers file has %d columns, want %d", len(header), len(careerColumns))
	}

	var out []sim.CareerRow
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading careers line %d: %w", line, err)
		}
		r, err := parseCareerRow(row, space)
		if err != nil {
			return nil, fmt.Errorf("careers line %d: %w", line, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func parseCareerRow(row []string, space *sim.StateSpace) (sim.CareerRow, error) {
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad id %q", row[0])
	}
	year, err := strconv.Atoi(row[1])
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad year %q", row[1])
	}
	age, err := strconv.Atoi(row[2])
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad age %q", row[2])
	}
	state, ok := space.ByLabel(row[3])
	if !ok {
		return sim.CareerRow{}, fmt.Errorf("unknown state %q (valid: %v)", row[3], space.Labels())
	}
	income, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad income %q", row[5])
	}
	pension, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad pension %q", row[6])
	}
	intensity, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return sim.CareerRow{}, fmt.Errorf("bad work_intensity %q", row[7])
	}
	return sim.CareerRow{
		ID:            id,
		Year:          year,
		Age:           age,
		State:         state,
		JobType:       row[4],
		Income:        income,
		Pension:       pension,
		WorkIntensity: intensity,
	}, nil
}
