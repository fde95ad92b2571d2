package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakevault/config"
	"stakevault/core"
	"stakevault/observability/logging"
	"stakevault/rpc"
	"stakevault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfgPath := strings.TrimSpace(*configFile)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("vaultd", cfg.Environment)

	params, err := cfg.VaultParams()
	if err != nil {
		logger.Error("Invalid vault parameters", slog.Any("error", err))
		os.Exit(1)
	}
	vaultAddr, treasury, admin, quality, err := cfg.Addresses()
	if err != nil {
		logger.Error("Invalid address configuration", slog.Any("error", err))
		os.Exit(1)
	}
	allocs, err := cfg.GenesisAllocs()
	if err != nil {
		logger.Error("Invalid genesis allocations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	nodeCfg := core.NodeConfig{
		Params:       params,
		VaultAddress: vaultAddr,
		Treasury:     treasury,
		Admin:        admin,
		Quality:      quality,
	}
	for _, alloc := range allocs {
		nodeCfg.Genesis = append(nodeCfg.Genesis, core.GenesisAlloc{
			Address: alloc.Address,
			Balance: alloc.Balance,
		})
	}

	node, err := core.NewNode(db, nodeCfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("Metrics endpoint listening", slog.String("addr", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics endpoint failed", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(node)
	logger.Info("RPC server listening",
		slog.String("addr", cfg.RPCAddress),
		slog.String("vault", vaultAddr.String()),
		slog.String("treasury", treasury.String()),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		panic(fmt.Sprintf("RPC server failed: %v", err))
	}
}
