// Command emberd runs the daemon: it assembles a Config from flags, builds
// the Matrix, and drives the gateway's listeners until told to stop.
// Everything else — protocol, dispatch, CRDT sync, persistence — lives in
// the irc packages this just wires together.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/emberd/emberd/irc"
	"github.com/emberd/emberd/irc/gateway"
	"github.com/emberd/emberd/irc/logger"
)

func main() {
	log.SetFlags(0)

	var (
		networkName = flag.String("network", "EmberNet", "network name advertised in 001/ISUPPORT")
		serverName  = flag.String("name", "ember.local", "this server's name in the spanning tree")
		sid         = flag.String("sid", "0EM", "this server's 3-character SID")
		listen      = flag.String("listen", ":6667", "plaintext client listener address")
		tlsListen   = flag.String("tls-listen", "", "TLS client listener address, empty to disable")
		certFile    = flag.String("cert", "", "TLS certificate file (required with -tls-listen)")
		keyFile     = flag.String("key", "", "TLS key file (required with -tls-listen)")
		historyPath = flag.String("history", "", "buntdb file for CHATHISTORY, empty for in-memory only")
		relDSN      = flag.String("postgres", "", "Postgres DSN for account/channel registration, empty to disable")
		motdFile    = flag.String("motd", "", "path to a MOTD text file, empty to disable")
		logFormat   = flag.String("log-format", "text", "log output format: text or json")
		logLevel    = flag.String("log-level", "info", "minimum log level: debug, info, warning, error")
	)
	flag.Parse()

	cfg := irc.DefaultConfig()
	cfg.NetworkName = *networkName
	cfg.ServerName = *serverName
	cfg.SID = *sid
	cfg.HistoryPath = *historyPath
	cfg.RelDSN = *relDSN
	cfg.Log = logger.Config{Level: parseLevel(*logLevel), Format: *logFormat}

	cfg.Listeners = []irc.ListenerConfig{{Address: *listen}}
	if *tlsListen != "" {
		if *certFile == "" || *keyFile == "" {
			log.Fatal("-tls-listen requires -cert and -key")
		}
		cfg.Listeners = append(cfg.Listeners, irc.ListenerConfig{
			Address: *tlsListen, TLS: true, CertFile: *certFile, KeyFile: *keyFile,
		})
	}
	if *motdFile != "" {
		motd, err := os.ReadFile(*motdFile)
		if err != nil {
			log.Fatalf("reading motd file: %v", err)
		}
		cfg.MOTD = strings.Split(strings.TrimRight(string(motd), "\n"), "\n")
	}

	matrix := irc.NewMatrix(cfg)
	gw := gateway.New(matrix)

	ctx, cancel := context.WithCancel(context.Background())
	if err := gw.Start(ctx); err != nil {
		log.Fatalf("starting gateway: %v", err)
	}
	matrix.Log.Info("main", "listening", "addresses", listenerAddresses(cfg.Listeners))

	sigs := make(chan os.Signal, 1)
	rehash := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	signal.Notify(rehash, syscall.SIGHUP)

	for {
		select {
		case <-rehash:
			matrix.Log.Info("main", "rehashing on SIGHUP")
			matrix.Rehash(matrix.Config())
		case <-sigs:
			matrix.Log.Info("main", "shutting down")
			cancel()
			gw.Wait()
			closeStores(matrix)
			return
		}
	}
}

func closeStores(matrix *irc.Matrix) {
	if matrix.History != nil {
		_ = matrix.History.Close()
	}
	if matrix.Rel != nil {
		matrix.Rel.Close()
	}
}

func listenerAddresses(listeners []irc.ListenerConfig) []string {
	addrs := make([]string, len(listeners))
	for i, lc := range listeners {
		addrs[i] = lc.Address
	}
	return addrs
}

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.LevelDebug
	case "warning", "warn":
		return logger.LevelWarning
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
