// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command
// definitions in the commands package. Handlers are framework-agnostic and
// can be tested independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/imamik/siteflow/internal/addrplan"
	"github.com/imamik/siteflow/internal/assurance"
	"github.com/imamik/siteflow/internal/config"
	"github.com/imamik/siteflow/internal/orchestration"
	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
	"github.com/imamik/siteflow/internal/util/retry"
	"github.com/imamik/siteflow/internal/workflow"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// newService builds the orchestration service from configuration.
	newService = buildService

	// stdout is where handlers print operator-facing output.
	stdout io.Writer = os.Stdout
)

func buildService(ctx context.Context, configPath string) (*orchestration.Service, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	timeouts := config.LoadTimeouts()
	log := newLogger()

	token, err := cfg.Platform.Token()
	if err != nil {
		return nil, err
	}
	client := vendor.NewHTTPClient(vendor.HTTPClientOptions{
		BaseURL: cfg.Platform.BaseURL,
		Token:   token,
		OrgID:   cfg.Platform.OrgID,
		Timeout: timeouts.Vendor,
		Logger:  log,
	})

	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	net, err := networkFromConfig(cfg.Network)
	if err != nil {
		return nil, err
	}

	workflow.RegisterMetrics(prometheus.DefaultRegisterer)

	return orchestration.NewService(st, client, net, assurance.Config{
		Metrics:   cfg.Assurance.Metrics,
		Threshold: cfg.Assurance.Threshold,
		Window:    cfg.Assurance.Window,
		Interval:  cfg.Assurance.Interval,
	}, log, orchestration.WithExecutorOptions(
		workflow.WithStepTimeout(timeouts.Step),
		workflow.WithRetryOptions(
			retry.WithMaxRetries(timeouts.RetryMaxAttempts),
			retry.WithInitialDelay(timeouts.RetryInitialDelay),
		),
	))
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "s3":
		return store.NewS3Store(ctx, store.S3Options{
			Endpoint:  cfg.Store.S3.Endpoint,
			Region:    cfg.Store.S3.Region,
			Bucket:    cfg.Store.S3.Bucket,
			Prefix:    cfg.Store.S3.Prefix,
			AccessKey: os.Getenv("SITEFLOW_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("SITEFLOW_S3_SECRET_KEY"),
		})
	default:
		return store.NewMemory(), nil
	}
}

func networkFromConfig(net config.Network) (orchestration.NetworkConfig, error) {
	root, err := netip.ParsePrefix(net.RootCIDR)
	if err != nil {
		return orchestration.NetworkConfig{}, fmt.Errorf("invalid root CIDR: %w", err)
	}

	roles := make([]addrplan.RoleSize, len(net.Roles))
	for i, r := range net.Roles {
		roles[i] = addrplan.RoleSize{Role: addrplan.Role(r.Name), Bits: r.Bits}
	}
	vlans := make(map[addrplan.Role]int, len(net.VLANs))
	for name, vlan := range net.VLANs {
		vlans[addrplan.Role(name)] = vlan
	}

	return orchestration.NetworkConfig{
		Root:  root,
		Zones: net.Zones,
		Roles: roles,
		VLANs: vlans,
	}, nil
}

// newLogger builds the production logger: console encoding on a terminal,
// JSON otherwise.
func newLogger() logr.Logger {
	var zc zap.Config
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.OutputPaths = []string{"stderr"}

	z, err := zc.Build()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(z)
}
