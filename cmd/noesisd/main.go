// Command noesisd is the daemon composition root: it wires storage,
// logging, the catalog, the sense-making agent, and the external
// interfaces (HTTP gateway, Unix socket) into one running process.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noesis-run/noesis/internal/agent"
	"github.com/noesis-run/noesis/internal/auditmirror"
	"github.com/noesis-run/noesis/internal/broadcast"
	"github.com/noesis-run/noesis/internal/catalog"
	"github.com/noesis-run/noesis/internal/chainhash"
	"github.com/noesis-run/noesis/internal/config"
	"github.com/noesis-run/noesis/internal/ifaces"
	"github.com/noesis-run/noesis/internal/ifaces/gateway"
	"github.com/noesis-run/noesis/internal/ifaces/socket"
	"github.com/noesis-run/noesis/internal/logging"
	"github.com/noesis-run/noesis/internal/metaops"
	"github.com/noesis-run/noesis/internal/metrics"
	"github.com/noesis-run/noesis/internal/recovery"
	"github.com/noesis-run/noesis/internal/statemanager"
	"github.com/rs/zerolog"
)

func main() {
	instantiate := flag.String("instantiate", "", "instantiate a new organization with this name if none exists")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	svcLog := logging.New("noesisd", cfg.LogLevel, cfg.LogFormat)
	recoveryLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build recovery logger: %v", err)
	}
	defer recoveryLog.Sync()

	sm, err := statemanager.Open(cfg.BaseDir)
	if err != nil {
		log.Fatalf("open statemanager: %v", err)
	}

	specDir := filepath.Join(cfg.BaseDir, "spec")
	hashOrg := func() (string, error) { return chainhash.OrganizationFingerprint(specDir) }

	if !sm.IsInstantiated() {
		if *instantiate == "" {
			log.Fatalf("no organization instantiated under %s; pass -instantiate=<name>", cfg.BaseDir)
		}
		orgHash, err := hashOrg()
		if err != nil {
			log.Fatalf("compute organization fingerprint: %v", err)
		}
		if _, err := sm.Instantiate(map[string]any{
			"name":              *instantiate,
			"instantiated_by":   "noesisd",
			"specification":     "1.0",
			"organization_hash": orgHash,
		}); err != nil {
			log.Fatalf("instantiate organization: %v", err)
		}
		svcLog.WithContext(context.Background()).Infof("instantiated organization %q", *instantiate)
	}

	cat := catalog.New()
	catalog.RegisterBuiltins(cat)
	rehydrateGeneratedOperations(cat, sm)

	registry := metrics.NewRegistry()
	cycleMetrics := agent.NewMetrics(registry.Registerer())
	cycleLog := agent.NewCycleLogger()

	ag := agent.New(sm, cat, hashOrg, cfg, cycleLog, cycleMetrics)
	if config.IsTestContext() {
		ag.SetManualOverride(agent.ContextTest)
	}

	rt := ifaces.New(sm, cat, ag, hashOrg, recoveryLog, cfg.BaseDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runOptionalCollaborators(ctx, cfg, sm, svcLog)

	scheduler := agent.NewScheduler()
	if err := scheduler.Start(cfg.DecisionInterval, func() {
		outcome, err := ag.RunCycle()
		if err != nil {
			svcLog.WithContext(ctx).WithField("error", err.Error()).Error("agent cycle failed")
			return
		}
		if !outcome.Feeling.VerifyResult.Satisfied() {
			status, err := recovery.Recover(ctx, sm, recoveryLog, outcome.Feeling.VerifyResult)
			if err != nil {
				svcLog.WithContext(ctx).WithField("error", err.Error()).Error("recovery failed")
				return
			}
			svcLog.WithContext(ctx).WithField("status", string(status)).Warn("recovery engaged")
		}
	}); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer scheduler.Stop()

	gw := gateway.New(rt, registry, zerologFromLogrus(cfg))
	httpServer := &http.Server{Addr: cfg.GatewayAddr, Handler: gw.Handler()}
	go func() {
		svcLog.WithContext(ctx).Infof("gateway listening on %s", cfg.GatewayAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			svcLog.WithContext(ctx).WithField("error", err.Error()).Error("gateway stopped")
		}
	}()

	sock := socket.New(cfg.SocketPath, rt, zerologFromLogrus(cfg))
	if err := sock.Listen(); err != nil {
		log.Fatalf("listen on socket: %v", err)
	}
	go func() {
		if err := sock.Serve(ctx); err != nil {
			svcLog.WithContext(ctx).WithField("error", err.Error()).Error("socket server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	svcLog.WithContext(ctx).Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	sock.Close()
	cancel()
}

// rehydrateGeneratedOperations re-registers the handler of every
// generated operation whose template compiles, whatever its lifecycle
// status, with the catalog on startup, since
// handlers are reconstructed from template + parameters and never
// persisted as closures (spec.md §9 "dynamic handlers").
func rehydrateGeneratedOperations(cat *catalog.Catalog, sm *statemanager.Manager) {
	state := sm.ReadState()
	for _, op := range state.Autopoiesis.Generated {
		handler, err := metaops.BuildHandler(op)
		if err != nil {
			continue
		}
		cat.Register(catalog.Definition{
			ID:               op.ID,
			Category:         op.Category,
			Complexity:       op.Complexity,
			EnergyCost:       op.EnergyCost,
			RequiresCoupling: op.RequiresCoupling,
			Handler:          handler,
		})
	}
}

func runOptionalCollaborators(ctx context.Context, cfg *config.Config, sm *statemanager.Manager, svcLog *logging.Logger) {
	if cfg.RedisAddr != "" {
		pub := broadcast.NewPublisher(cfg.RedisAddr)
		go pub.Run(ctx, sm)
	}
	if cfg.AuditMirrorDSN != "" {
		mirror, err := auditmirror.Open(cfg.AuditMirrorDSN)
		if err != nil {
			svcLog.WithContext(ctx).WithField("error", err.Error()).Warn("audit mirror unavailable")
			return
		}
		go func() {
			ch, unsubscribe := sm.Subscribe()
			defer unsubscribe()
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if err := mirror.Record(ctx, ev); err != nil {
						svcLog.WithContext(ctx).WithField("error", err.Error()).Warn("audit mirror record failed")
					}
				case <-ctx.Done():
					mirror.Close()
					return
				}
			}
		}()
	}
}

func zerologFromLogrus(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		level = parsed
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
