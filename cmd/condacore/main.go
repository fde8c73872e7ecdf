// Command condacore is a thin front door over the condacore engines:
// enough flag parsing to drive an install, proving the package wiring
// compiles into a runnable program. Full CLI ergonomics (subcommands,
// help text, shell completion) are out of scope, mirroring golang-dep's
// own cmd/dep split between "the tool" and "the library".
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/2lambda123/conda-conda/condaerrors"
	"github.com/2lambda123/conda-conda/config"
	"github.com/2lambda123/conda-conda/index"
	"github.com/2lambda123/conda-conda/internal/telemetry"
	"github.com/2lambda123/conda-conda/matchspec"
	"github.com/2lambda123/conda-conda/prefix"
	"github.com/2lambda123/conda-conda/repodata"
	"github.com/2lambda123/conda-conda/resolver"
	"github.com/2lambda123/conda-conda/transaction"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("condacore", flag.ContinueOnError)
	prefixPath := fs.String("prefix", "", "target environment prefix (required)")
	dryRun := fs.Bool("dry-run", false, "only compute and print the plan")
	jsonLogs := fs.Bool("json", false, "emit structured JSON logs instead of plain stderr lines")
	verbose := fs.Bool("v", false, "verbose logging")
	cacheDir := fs.String("cache-dir", "", "repodata cache directory (defaults to $HOME/.conda/pkgs/cache)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	specTexts := fs.Args()
	if *prefixPath == "" || len(specTexts) == 0 {
		fmt.Fprintln(os.Stderr, "usage: condacore -prefix <path> [flags] <spec> [<spec> ...]")
		return 2
	}

	var log telemetry.Logger
	if *jsonLogs {
		log = telemetry.NewJSONLogger()
	} else {
		log = telemetry.NewStderrLogger("condacore", *verbose)
	}
	mx := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	cfg := config.FromEnvironment()
	if home, err := os.UserHomeDir(); err == nil {
		cfg, err = config.ApplyOverrideFile(cfg, home+"/.conda/"+config.OverrideFileName)
		if err != nil {
			fmt.Fprintln(os.Stderr, "condacore:", err)
			return 1
		}
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []config.Channel{{Name: "defaults", BaseURL: "https://repo.anaconda.com/pkgs/main", Priority: 0}}
	}
	dir := *cacheDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "resolving cache dir:", err)
			return 1
		}
		dir = home + "/.conda/pkgs/cache"
	}

	specs := make([]*matchspec.MatchSpec, 0, len(specTexts))
	for _, t := range specTexts {
		ms, err := matchspec.Parse(t)
		if err != nil {
			fmt.Fprintln(os.Stderr, "parsing spec:", err)
			return 2
		}
		specs = append(specs, ms)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := installInto(ctx, cfg, dir, log, mx, *prefixPath, specs, *dryRun); err != nil {
		if dre, ok := err.(*condaerrors.DryRunExit); ok {
			fmt.Println(dre.PlanSummary)
			return 0
		}
		fmt.Fprintln(os.Stderr, "condacore:", err)
		return 1
	}
	return 0
}

func installInto(ctx context.Context, cfg config.CoreConfig, cacheDir string, log telemetry.Logger, mx *telemetry.Metrics, prefixPath string, specs []*matchspec.MatchSpec, dryRun bool) error {
	pdata, err := prefix.Open(prefixPath)
	if err != nil {
		return err
	}

	cache := repodata.NewCache(cacheDir, cfg.LocalRepodataTTL, log, mx)
	engine := index.NewEngine(cfg, cache, log, mx)

	idx, err := engine.Build(ctx, pdata.IterRecords())
	if err != nil {
		return err
	}

	sol, err := resolver.Solve(ctx, resolver.SolveParameters{
		Index:     idx,
		Specs:     specs,
		Installed: pdata.IterRecords(),
	})
	if err != nil {
		return err
	}

	pkgCache, err := transaction.OpenBoltPackageCache(filepath.Join(cacheDir, "extracted.bolt"), filepath.Join(cacheDir, "pkgs"))
	if err != nil {
		return err
	}
	defer pkgCache.Close()

	plan := transaction.BuildPlan(prefixPath, pdata.IterRecords(), sol.Selected, pkgCache.HasExtracted)

	if dryRun {
		return &condaerrors.DryRunExit{PlanSummary: plan.Summary()}
	}

	txn := &transaction.Transaction{
		Prefix:   prefixPath,
		Cache:    pkgCache,
		Meta:     pdata,
		Log:      log,
		Metrics:  mx,
		PyBinRel: "bin",
	}

	specTexts := make([]string, len(specs))
	for i, s := range specs {
		specTexts[i] = s.String()
	}

	outcome := txn.Execute(ctx, plan, false, specTexts)
	switch outcome.Kind {
	case transaction.OutcomeApplied:
		return nil
	case transaction.OutcomeFailed:
		return outcome.Err
	default:
		return fmt.Errorf("unexpected transaction outcome: %s", outcome.Kind)
	}
}
