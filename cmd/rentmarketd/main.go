package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"rentmarket/config"
	"rentmarket/core"
	"rentmarket/observability/logging"
	"rentmarket/rpc"
	"rentmarket/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	env := strings.TrimSpace(os.Getenv("RENTMARKET_ENV"))
	if env == "" {
		env = cfg.Env
	}
	logger := logging.Setup("rentmarketd", env, cfg.LogFile)

	fees, err := cfg.FeeConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse fee config: %v", err))
	}
	admin, err := cfg.Admin()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse admin address: %v", err))
	}
	operator, err := cfg.Operator()
	if err != nil {
		panic(fmt.Sprintf("Failed to parse operator address: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, fees, admin, operator)
	if err != nil {
		panic(fmt.Sprintf("Failed to create node: %v", err))
	}

	rpcServer := rpc.NewServer(node)
	rpcErrCh := make(chan error, 1)
	go func() {
		err := rpcServer.Start(cfg.RPCAddress)
		rpcErrCh <- err
		close(rpcErrCh)
	}()

	if err := waitForRPCStartup(cfg.RPCAddress, rpcErrCh, 5*time.Second); err != nil {
		logger.Error("RPC server failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("rental marketplace node initialised and running",
		slog.String("network", cfg.NetworkName),
		slog.String("rpc_address", cfg.RPCAddress),
		slog.Uint64("fee_rate", fees.Rate))

	if err, ok := <-rpcErrCh; ok && err != nil {
		logger.Error("RPC server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

func waitForRPCStartup(addr string, errCh <-chan error, timeout time.Duration) error {
	dialAddr := dialAddressFor(addr)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		default:
		}

		conn, err := net.DialTimeout("tcp", dialAddr, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case err, ok := <-errCh:
			if !ok {
				return fmt.Errorf("RPC server terminated before startup confirmation")
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("RPC server exited before startup confirmation")
		case <-ticker.C:
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for RPC server to start on %s", addr)
		}
	}
}

func dialAddressFor(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
