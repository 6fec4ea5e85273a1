// Command genmock writes a deterministic synthetic observation snapshot for
// local runs and validation. The series are cumulative, follow wave-shaped
// daily growth, and occasionally dip downward the way real reporting
// corrections do.
//
// Usage:
//
//	go run ./cmd/genmock -out data/us_states.csv -states 8 -days 120 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// stateNames are real names so the population join finds them.
var stateNames = []string{
	"New York", "California", "Texas", "Florida", "Illinois",
	"Pennsylvania", "Ohio", "Georgia", "Michigan", "North Carolina",
	"New Jersey", "Virginia", "Washington", "Arizona", "Massachusetts",
	"Tennessee", "Indiana", "Missouri", "Maryland", "Wisconsin",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/us_states.csv", "output path for the snapshot CSV")
	states := flag.Int("states", 8, "number of states to generate")
	days := flag.Int("days", 120, "number of consecutive days per state")
	start := flag.String("start", "2020-03-01", "first observation date (YYYY-MM-DD)")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *states < 1 || *states > len(stateNames) {
		return fmt.Errorf("-states must be between 1 and %d", len(stateNames))
	}
	if *days < 1 {
		return fmt.Errorf("-days must be positive")
	}

	startDate, err := time.ParseInLocation("2006-01-02", *start, time.UTC)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	records := [][]string{{"date", "state_name", "confirmed_cases", "deaths"}}
	for _, state := range stateNames[:*states] {
		records = append(records, stateSeries(rng, state, startDate, *days)...)
	}

	if err := writeCSV(*out, records); err != nil {
		return err
	}
	log.Printf("wrote %d rows for %d states to %s", len(records)-1, *states, *out)
	return nil
}

// stateSeries builds one state's cumulative rows. Scale, wave period, and
// correction days all come from the shared rng, so output is reproducible for
// a given seed.
func stateSeries(rng *rand.Rand, state string, start time.Time, days int) [][]string {
	scale := 50 + rng.Float64()*450 // peak daily new cases
	period := 30 + rng.Float64()*30 // wave length in days
	phase := rng.Float64() * 2 * math.Pi

	var cases, deaths int64
	rows := make([][]string, 0, days)
	for d := 0; d < days; d++ {
		wave := 1 + math.Sin(2*math.Pi*float64(d)/period+phase)
		newCases := int64(scale*wave) + rng.Int63n(20)
		cases += newCases
		deaths += newCases / (40 + rng.Int63n(20))

		// Roughly one day in forty retracts earlier over-counts.
		if rng.Intn(40) == 0 && cases > newCases {
			cases -= rng.Int63n(newCases + 1)
		}

		rows = append(rows, []string{
			start.AddDate(0, 0, d).Format("2006-01-02"),
			state,
			strconv.FormatInt(cases, 10),
			strconv.FormatInt(deaths, 10),
		})
	}
	return rows
}

func writeCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
