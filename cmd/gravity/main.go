// Copyright (C) 2025, Lux Industries, Inc.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/gravity"
	"github.com/luxfi/gravity/api"
	"github.com/luxfi/gravity/bridge"
	"github.com/luxfi/gravity/config"
	"github.com/luxfi/gravity/metrics"
	"github.com/luxfi/gravity/settlement"
	"github.com/luxfi/gravity/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gravity",
	Short: "Gravity - validator-set bridge",
	Long: `Gravity tracks a weighted validator set through checkpoints and settles
outbound transfer batches authorized by that set.

This CLI computes checkpoints, signs them, and runs the bridge service.`,
	Version:      fmt.Sprintf("%s (built %s)", version, buildDate),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newCheckpointCmd())
	rootCmd.AddCommand(newSignCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newStateCmd())
	rootCmd.AddCommand(newServeCmd())
}

func newCheckpointCmd() *cobra.Command {
	var gravityID, valsetFile, batchFile string
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Compute the checkpoint of a validator set or batch",
		Long: `Print the checkpoint digest validators sign for a validator set
(--valset) or a transfer batch (--batch), both given as JSON files.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := gravity.GravityIDFromString(gravityID)
			if err != nil {
				return err
			}

			var entity gravity.Entity
			switch {
			case valsetFile != "" && batchFile != "":
				return errors.New("only one of --valset and --batch may be set")
			case valsetFile != "":
				set, err := config.LoadValidatorSet(valsetFile)
				if err != nil {
					return err
				}
				entity = set
			case batchFile != "":
				batch, err := loadBatch(batchFile)
				if err != nil {
					return err
				}
				entity = batch
			default:
				return errors.New("one of --valset or --batch is required")
			}

			digest := gravity.Digest(id, entity)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", entity.Kind(), digest.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&gravityID, config.GravityIDKey, "", "Deployment domain separator")
	cmd.Flags().StringVar(&valsetFile, "valset", "", "Path to a validator set JSON")
	cmd.Flags().StringVar(&batchFile, "batch", "", "Path to a batch JSON")
	_ = cmd.MarkFlagRequired(config.GravityIDKey)
	return cmd
}

func newSignCmd() *cobra.Command {
	var digestHex, keyHex string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a checkpoint digest",
		Long:  `Sign a checkpoint digest with a hex secp256k1 private key.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keyHex == "" {
				keyHex = os.Getenv("GRAVITY_SIGNER_KEY")
			}
			s, err := gravity.NewSignerFromHex(keyHex)
			if err != nil {
				return err
			}
			digestBytes := common.FromHex(digestHex)
			if len(digestBytes) != common.HashLength {
				return fmt.Errorf("digest must be %d bytes, got %d", common.HashLength, len(digestBytes))
			}
			sig, err := s.Sign(common.BytesToHash(digestBytes))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signer: %s\n", s.Address().Hex())
			fmt.Fprintf(cmd.OutOrStdout(), "Signature: %s\n", sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&digestHex, "digest", "", "0x-prefixed checkpoint digest")
	cmd.Flags().StringVar(&keyHex, "key", "", "Hex private key (defaults to $GRAVITY_SIGNER_KEY)")
	_ = cmd.MarkFlagRequired("digest")
	return cmd
}

func newInitCmd() *cobra.Command {
	fs := config.BuildFlagSet()
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the genesis validator set",
		Long: `Save the genesis state built from --genesis-file to the store at
--storage-location. An existing state is left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(fs)
			if err != nil {
				return err
			}
			genesis, err := genesisState(&cfg)
			if err != nil {
				return err
			}
			s, closeStore, err := store.Open(logger, cfg.StorageLocation)
			if err != nil {
				return err
			}
			defer closeStore()

			st, err := store.LoadOrInit(cmd.Context(), s, genesis)
			if err != nil {
				return err
			}
			logger.Info("Bridge state ready", store.Describe(st)...)
			return nil
		},
	}
	cmd.Flags().AddFlagSet(fs)
	return cmd
}

func newStateCmd() *cobra.Command {
	fs := config.BuildFlagSet()
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the stored bridge state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(fs)
			if err != nil {
				return err
			}
			s, closeStore, err := store.Open(logger, cfg.StorageLocation)
			if err != nil {
				return err
			}
			defer closeStore()

			st, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().AddFlagSet(fs)
	return cmd
}

func newServeCmd() *cobra.Command {
	fs := config.BuildFlagSet()
	var fundings []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge service",
		Long: `Run the HTTP bridge service. State is loaded from the store, or
initialized from the genesis validator set on first start.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(fs)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), &cfg, logger, fundings)
		},
	}
	cmd.Flags().AddFlagSet(fs)
	cmd.Flags().StringArrayVar(&fundings, "fund", nil, "Initial custody as asset=amount, repeatable")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logger log.Logger, fundings []string) error {
	logger.Info("Initializing gravity")

	s, closeStore, err := store.Open(logger, cfg.StorageLocation)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}()

	var genesis *bridge.State
	if cfg.GenesisFile != "" {
		if genesis, err = genesisState(cfg); err != nil {
			return err
		}
	}
	st, err := store.LoadOrInit(ctx, s, genesis)
	if err != nil {
		return fmt.Errorf("failed to load bridge state: %w", err)
	}
	if st.GravityID != cfg.GetGravityID() {
		return fmt.Errorf("stored gravity ID %s does not match configured %s",
			common.Hash(st.GravityID), common.Hash(cfg.GetGravityID()))
	}
	logger.Info("Loaded bridge state", store.Describe(st)...)

	ledger := settlement.NewLedger()
	for _, f := range fundings {
		asset, amount, err := parseFunding(f)
		if err != nil {
			return err
		}
		if err := ledger.Fund(asset, amount); err != nil {
			return err
		}
		logger.Info("Funded custody", zap.Stringer("asset", asset), zap.Stringer("amount", amount))
	}

	verifier, err := gravity.NewVerifier(cfg.GetSignatureCacheSize())
	if err != nil {
		return fmt.Errorf("failed to create verifier: %w", err)
	}
	events := bridge.NewEventLog()
	b, err := bridge.New(&bridge.Config{
		Ledger:  gravity.NewPowerLedger(verifier, cfg.StrictSignatures),
		Settler: ledger,
		Store:   s,
		Events:  events,
		Clock:   bridge.UnixClock,
		Log:     logger,
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewGravityMetrics(registry)
	service := api.NewService(logger, m, b, st, events)
	handler := api.NewHandler(logger, service, registry, healthFunc(s))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errGroup, ctx := errgroup.WithContext(ctx)

	logger.Info("Initialization complete", zap.Uint16("apiPort", cfg.APIPort))
	errGroup.Go(func() error {
		httpServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.APIPort),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		// Handle graceful shutdown
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start api server: %w", err)
		}
		return nil
	})

	if err := errGroup.Wait(); err != nil {
		logger.Error("Exited with error", zap.Error(err))
		return err
	}
	logger.Info("Shut down")
	return nil
}

// setup builds the config from fs and the logger it names
func setup(fs *pflag.FlagSet) (config.Config, log.Logger, error) {
	v, err := config.BuildViper(fs)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("couldn't configure flags: %w", err)
	}
	cfg, err := config.NewConfig(v)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("couldn't build config: %w", err)
	}

	logFactory := log.NewFactoryWithConfig(log.Config{
		DisplayLevel: cfg.GetLogLevel(),
		LogLevel:     cfg.GetLogLevel(),
	})
	logger, err := logFactory.Make("gravity")
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed setting up logging: %w", err)
	}
	return cfg, logger, nil
}

func genesisState(cfg *config.Config) (*bridge.State, error) {
	set, err := cfg.LoadGenesis()
	if err != nil {
		return nil, err
	}
	return bridge.NewGenesisState(cfg.GetGravityID(), set, cfg.GetThreshold(), cfg.PowerScale)
}

func loadBatch(path string) (*gravity.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var batch gravity.Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	for i, t := range batch.Transfers {
		if t.Amount == nil || t.Fee == nil {
			return nil, fmt.Errorf("batch %s: missing amount or fee at index %d", path, i)
		}
	}
	return &batch, nil
}

// parseFunding parses asset=amount, with amount in decimal or 0x hex
func parseFunding(s string) (common.Address, *uint256.Int, error) {
	assetHex, amountStr, ok := strings.Cut(s, "=")
	if !ok || !common.IsHexAddress(assetHex) {
		return common.Address{}, nil, fmt.Errorf("invalid funding %q: want asset=amount", s)
	}
	amount, err := uint256.FromDecimal(amountStr)
	if err != nil {
		if amount, err = uint256.FromHex(amountStr); err != nil {
			return common.Address{}, nil, fmt.Errorf("invalid funding amount %q: %w", amountStr, err)
		}
	}
	return common.HexToAddress(assetHex), amount, nil
}

func healthFunc(s bridge.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		if p, ok := s.(interface{ Ping(context.Context) error }); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}
