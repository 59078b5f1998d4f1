// cmd/simulate prints a league table under hypothetical results and, for a
// chosen team, its title, playoff and relegation odds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/config"
	"github.com/utakatalp/volley-simulator/internal/datafile"
	"github.com/utakatalp/volley-simulator/internal/league"
	"github.com/utakatalp/volley-simulator/internal/scenario"
)

// overrideFlag collects repeated -set "Home|||Away=3-1" flags.
type overrideFlag league.Overrides

func (o overrideFlag) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k+"="+o[k])
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (o overrideFlag) Set(v string) error {
	i := strings.LastIndex(v, "=")
	if i <= 0 || i == len(v)-1 {
		return fmt.Errorf("expected MATCH=SCORE, got %q", v)
	}
	o[strings.TrimSpace(v[:i])] = strings.TrimSpace(v[i+1:])
	return nil
}

type options struct {
	configPath string
	leagueID   string
	group      string
	dataFile   string
	team       string
	trials     int
	seed       int64
	predictAll bool
	schedule   bool
	overrides  league.Overrides
}

func main() {
	opts := options{overrides: league.Overrides{}}
	flag.StringVar(&opts.configPath, "config", "", "YAML configuration (optional)")
	flag.StringVar(&opts.leagueID, "league", "vsl", "league id")
	flag.StringVar(&opts.group, "group", "", "group name (default: every group)")
	flag.StringVar(&opts.dataFile, "data", "", "league data file (default: from config)")
	flag.StringVar(&opts.team, "team", "", "team to estimate odds for")
	flag.IntVar(&opts.trials, "trials", 0, "Monte Carlo trials (default: from config)")
	flag.Int64Var(&opts.seed, "seed", 0, "random seed (0 draws one)")
	flag.BoolVar(&opts.predictAll, "predict-all", false, "fill every open match with an Elo guess")
	flag.BoolVar(&opts.schedule, "schedule", false, "also list the fixture week by week")
	flag.Var(overrideFlag(opts.overrides), "set", "hypothetical result MATCH=SCORE, repeatable")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, "simulate:", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if _, ok := cfg.League(opts.leagueID); !ok {
		cfg.Leagues = append(cfg.Leagues, config.LeagueConfig{
			ID:              opts.leagueID,
			PlayoffSpots:    4,
			RelegationSpots: 2,
		})
	}
	if opts.dataFile != "" {
		path, err := filepath.Abs(opts.dataFile)
		if err != nil {
			return nil, err
		}
		for i := range cfg.Leagues {
			if cfg.Leagues[i].ID == opts.leagueID {
				cfg.Leagues[i].DataFile = path
			}
		}
	}
	if opts.trials > 0 {
		cfg.Simulation.Trials = opts.trials
	}
	return cfg, nil
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	source := datafile.NewSource(cfg)
	svc := scenario.NewService(cfg, source, scenario.NewMemoryOverrides())

	groups := []string{opts.group}
	if opts.group == "" {
		if groups, err = svc.Groups(ctx, opts.leagueID); err != nil {
			return err
		}
	}
	if opts.team != "" && len(groups) != 1 {
		return errors.New("-team needs -group when the league has several groups")
	}

	var seed *int64
	if opts.seed != 0 {
		seed = &opts.seed
	}

	for _, g := range groups {
		overrides := opts.overrides
		if opts.predictAll {
			if overrides, err = svc.PredictAll(ctx, opts.leagueID, g, overrides, seed); err != nil {
				return err
			}
		}
		res, err := svc.Scenario(ctx, opts.leagueID, g, overrides)
		if err != nil {
			return err
		}
		label := fmt.Sprintf("%s %s (%d matches left)", opts.leagueID, g, res.Remaining)
		if err := league.WriteTable(os.Stdout, label, res.Table); err != nil {
			return err
		}
		if opts.schedule {
			matches, err := source.Fixtures(ctx, opts.leagueID, g)
			if err != nil {
				return err
			}
			if err := league.WriteSchedule(os.Stdout, "\nFixture", matches); err != nil {
				return err
			}
		}

		if opts.team == "" {
			continue
		}
		odds, err := svc.Odds(ctx, opts.leagueID, g, scenario.OddsRequest{
			Team:      opts.team,
			Overrides: overrides,
			Seed:      seed,
		})
		if err != nil {
			return err
		}
		printOdds(odds)
	}
	return nil
}

func printOdds(o league.Odds) {
	fmt.Printf("\n%s after %d trials", o.Team, o.Trials)
	if o.Truncated {
		fmt.Print(" (time budget reached)")
	}
	fmt.Println()
	fmt.Printf("  champion:   %6.2f%%\n", o.Championship*100)
	fmt.Printf("  playoff:    %6.2f%%\n", o.Playoff*100)
	fmt.Printf("  relegation: %6.2f%%\n", o.Relegation*100)
	fmt.Printf("  rank:       best %d, worst %d\n", o.BestRank, o.WorstRank)
	fmt.Printf("  points:     %.1f on average\n", o.AveragePoints)
}
