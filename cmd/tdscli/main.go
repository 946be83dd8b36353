// Command tdscli is a minimal demonstration client for the TDS core: it
// dials a server, logs in, runs one SQL batch, and prints the rows it
// got back. It exists to exercise the package end to end, not as a
// general-purpose SQL client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlwire/go-tds/internal/config"
	"github.com/sqlwire/go-tds/internal/tds"
)

func main() {
	var (
		addr       = flag.String("addr", "localhost:1433", "server host:port")
		database   = flag.String("database", "master", "database to select at login")
		user       = flag.String("user", "sa", "SQL login username")
		password   = flag.String("password", "", "SQL login password")
		query      = flag.String("query", "SELECT 1", "SQL batch to run")
		configPath = flag.String("config", "", "optional YAML config file (see internal/config)")
		metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[tdscli] ", log.LstdFlags)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			logger.Printf("serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				logger.Printf("metrics server exited: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.LoginTimeout)
	defer cancel()

	conn, err := tds.Dial(dialCtx, tds.DialOptions{
		Address:  *addr,
		Database: *database,
		UserName: *user,
		Password: *password,
		AppName:  "tdscli",
		HostName: hostname(),
	}, cfg)
	if err != nil {
		logger.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	logger.Printf("connected, state=%s packet_size=%d database=%s", conn.State(), conn.PacketSize(), conn.Database())

	result, err := runBatch(ctx, conn, *query)
	if err != nil {
		logger.Fatalf("query: %v", err)
	}

	for _, rs := range result.ResultSets {
		printResultSet(rs)
	}
	if result.ServerErr != nil {
		logger.Fatalf("server error: %v", result.ServerErr)
	}
}

func runBatch(ctx context.Context, conn *tds.Connection, query string) (*tds.ExchangeResult, error) {
	payload := tds.BuildSQLBatch(query, conn.TransactionDescriptor())
	events, err := conn.Exchange(ctx, tds.PacketSQLBatch, payload)
	if err != nil {
		return nil, err
	}
	return tds.DrainExchange(events)
}

func printResultSet(rs *tds.ResultSet) {
	names := make([]string, len(rs.Columns.Columns))
	for i, c := range rs.Columns.Columns {
		names[i] = c.Name
	}
	fmt.Println(names)
	for _, row := range rs.Rows {
		fmt.Println(row.Values)
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
