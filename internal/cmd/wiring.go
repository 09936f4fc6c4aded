package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pgEdge/data-gatekeeper/internal/actuator"
	"github.com/pgEdge/data-gatekeeper/internal/advice"
	"github.com/pgEdge/data-gatekeeper/internal/alert"
	"github.com/pgEdge/data-gatekeeper/internal/baseline"
	"github.com/pgEdge/data-gatekeeper/internal/contract"
	"github.com/pgEdge/data-gatekeeper/internal/models"
	"github.com/pgEdge/data-gatekeeper/internal/obslog"
	"github.com/pgEdge/data-gatekeeper/internal/orchestrator"
	"github.com/pgEdge/data-gatekeeper/internal/scancache"
)

// env bundles the components every command needs, built once from the
// shared envFlags describing the on-disk layout.
type env struct {
	contracts    *contract.Store
	baselines    *baseline.Store
	orchestrator *orchestrator.Orchestrator
	actuator     *actuator.Actuator
	router       *alert.Router
	log          *zap.Logger
}

func buildEnv(f envFlags) (*env, error) {
	log := obslog.NewLogger()

	contracts := contract.New(f.ContractsDir, log)

	baselines, err := baseline.Open(f.BaselineDB)
	if err != nil {
		return nil, fmt.Errorf("open baseline store: %w", err)
	}

	lineage, err := loadLineage(f.LineageFile)
	if err != nil {
		return nil, fmt.Errorf("load lineage graph: %w", err)
	}

	act, err := actuator.New(f.LandingDir, f.StagingDir, f.QuarantineDir)
	if err != nil {
		return nil, fmt.Errorf("init actuator: %w", err)
	}

	routingDoc, err := loadRouting(f.RoutingFile)
	if err != nil {
		return nil, fmt.Errorf("load routing document: %w", err)
	}
	router := alert.New(routingDoc, nil, log)

	o := orchestrator.New(contracts, baselines, lineage, log)
	if f.AnthropicKey != "" {
		o.Advisor = advice.NewAnthropicAdvisor(f.AnthropicKey)
	} else {
		o.Advisor = advice.NoopAdvisor{}
	}
	o.ScanCache = scancache.New(f.RedisAddr, time.Hour)

	return &env{
		contracts:    contracts,
		baselines:    baselines,
		orchestrator: o,
		actuator:     act,
		router:       router,
		log:          log,
	}, nil
}

func (e *env) close() {
	if err := e.baselines.Close(); err != nil {
		e.log.Warn("close baseline store", zap.Error(err))
	}
	if err := e.contracts.Close(); err != nil {
		e.log.Warn("close contract store", zap.Error(err))
	}
}

func loadLineage(path string) (*models.LineageGraph, error) {
	g := &models.LineageGraph{Edges: map[string][]models.Consumer{}}
	if path == "" {
		return g, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, err
	}
	g.ResolveCriticality()
	return g, nil
}

func loadRouting(path string) (alert.RoutingDoc, error) {
	var doc alert.RoutingDoc
	if path == "" {
		return doc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// dispatchActuation promotes or quarantines file per v.Status, then
// routes an alert. Actuator failures are fatal to the run: no silent
// data movement.
func dispatchActuation(e *env, file string, v *models.Verdict) error {
	switch v.Status {
	case models.StatusPass, models.StatusPassWithWarnings:
		if _, err := e.actuator.Promote(file, v); err != nil {
			return fmt.Errorf("promote %s: %w", file, err)
		}
	case models.StatusFail:
		if _, err := e.actuator.Quarantine(file, v); err != nil {
			return fmt.Errorf("quarantine %s: %w", file, err)
		}
	}
	e.router.Dispatch(context.Background(), v, v.TablePriority.Criticality)
	return nil
}

// findInputFile resolves table to a file in dir sharing one of the
// Tabular Loader's supported extensions.
func findInputFile(dir, table string) (string, error) {
	for _, ext := range []string{".csv", ".parquet", ".json"} {
		candidate := filepath.Join(dir, table+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no input file found for table %q in %s", table, dir)
}
