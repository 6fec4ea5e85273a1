// Command validate runs integrity checks over an observation snapshot and
// the metrics derived from it: key uniqueness, cumulative monotonicity,
// delta reconstruction, and monthly-max broadcast consistency.
//
// Usage:
//
//	go run ./cmd/validate -csv data/us_states.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/covid-state-metrics/internal/adapter/warehouse"
	"github.com/couchcryptid/covid-state-metrics/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
	notes  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) notef(format string, args ...any) {
	p.notes = append(p.notes, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "data/us_states.csv", "path to the observation snapshot")
	flag.Parse()

	os.Exit(run(*csvPath))
}

func run(csvPath string) int {
	// Fixed clock so repeated runs stamp metrics identically.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Observation Snapshot Integrity Validation ===")
	fmt.Println()

	observations, err := warehouse.NewCSVSource(csvPath).FetchObservations(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load snapshot: %v\n", err)
		return 1
	}

	rows := domain.ComputeMetrics(observations)

	phases := []*phase{
		validateKeys(observations),
		validateMonotonicity(rows),
		validateDeltaReconstruction(rows),
		validateMonthlyBroadcast(rows),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-48s %s\n", p.name, status)
		for _, n := range p.notes {
			fmt.Printf("    note: %s\n", n)
		}
	}

	fmt.Println()
	fmt.Printf("Rows: %d observations, %d metric rows\n", len(observations), len(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Key Uniqueness ──
// Each (state, date) pair must appear exactly once.

func validateKeys(observations []domain.Observation) *phase {
	p := &phase{name: "Phase 1: Key Uniqueness (state, date)"}

	seen := make(map[string]int, len(observations))
	for _, o := range observations {
		key := o.State + "|" + o.Date.Format("2006-01-02")
		seen[key]++
	}
	for key, n := range seen {
		if n > 1 {
			p.errorf("key %s appears %d times", key, n)
		}
	}
	return p
}

// ── Phase 2: Cumulative Monotonicity ──
// Cumulative counts should not decrease; dips are reporting corrections and
// are reported as notes, not failures. Negative absolutes do fail.

func validateMonotonicity(rows []domain.MetricRow) *phase {
	p := &phase{name: "Phase 2: Cumulative Monotonicity"}

	var caseDips, deathDips int
	for _, r := range rows {
		if r.ConfirmedCases < 0 {
			p.errorf("%s %s: negative confirmed_cases %d", r.State, r.Date.Format("2006-01-02"), r.ConfirmedCases)
		}
		if r.Deaths < 0 {
			p.errorf("%s %s: negative deaths %d", r.State, r.Date.Format("2006-01-02"), r.Deaths)
		}
		if r.ConfirmedCasesDay != nil && *r.ConfirmedCasesDay < 0 {
			caseDips++
		}
		if r.DeathsDay != nil && *r.DeathsDay < 0 {
			deathDips++
		}
	}
	if caseDips > 0 || deathDips > 0 {
		p.notef("%d case and %d death downward corrections", caseDips, deathDips)
	}
	return p
}

// ── Phase 3: Delta Reconstruction ──
// Per state, the first cumulative value plus the sum of the day deltas must
// reproduce the last cumulative value.

func validateDeltaReconstruction(rows []domain.MetricRow) *phase {
	p := &phase{name: "Phase 3: Delta Reconstruction"}

	type endpoints struct {
		first, last, deltaSum int64
		started               bool
	}
	perState := map[string]*endpoints{}
	for _, r := range rows { // rows are sorted by state then date
		e := perState[r.State]
		if e == nil {
			e = &endpoints{}
			perState[r.State] = e
		}
		if !e.started {
			e.first = r.ConfirmedCases
			e.started = true
		}
		e.last = r.ConfirmedCases
		if r.ConfirmedCasesDay != nil {
			e.deltaSum += *r.ConfirmedCasesDay
		}
	}

	for state, e := range perState {
		if got := e.first + e.deltaSum; got != e.last {
			p.errorf("%s: first %d + delta sum %d = %d, want last value %d", state, e.first, e.deltaSum, got, e.last)
		}
	}
	return p
}

// ── Phase 4: Monthly Broadcast ──
// Every row's highest-monthly value must equal the true maximum of its
// (state, month) group, and be identical across the group.

func validateMonthlyBroadcast(rows []domain.MetricRow) *phase {
	p := &phase{name: "Phase 4: Monthly Max Broadcast"}

	maxima := map[string]int64{}
	for _, r := range rows {
		key := r.State + "|" + r.Date.Format("2006-01")
		if r.ConfirmedCases > maxima[key] {
			maxima[key] = r.ConfirmedCases
		}
	}

	for _, r := range rows {
		key := r.State + "|" + r.Date.Format("2006-01")
		if r.HighestMonthlyConfirmedCases != maxima[key] {
			p.errorf("%s %s: broadcast %d, want group max %d",
				r.State, r.Date.Format("2006-01-02"), r.HighestMonthlyConfirmedCases, maxima[key])
		}
	}
	return p
}
