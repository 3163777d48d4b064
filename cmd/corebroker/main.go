// Command corebroker wires the config, storage, routing, session-registry,
// hook, and listener layers into a running MQTT broker, mirroring the
// config-load/graceful-shutdown shape other brokers in this ecosystem use
// for their own entrypoints.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/axmq/corebroker/broker"
	"github.com/axmq/corebroker/config"
	"github.com/axmq/corebroker/hook"
	"github.com/axmq/corebroker/metrics"
	"github.com/axmq/corebroker/network"
	"github.com/axmq/corebroker/pkg/logger"
	"github.com/axmq/corebroker/session"
	"github.com/axmq/corebroker/store"
	"github.com/axmq/corebroker/topic"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults built in if empty)")
	metricsAddr := flag.String("metrics-addr", ":9100", "address the Prometheus /metrics endpoint listens on")
	flag.Parse()

	log := logger.NewSlogLogger(slog.LevelInfo, os.Stdout)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadYAML(*configPath)
		if err != nil {
			log.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backing := store.NewMemoryStore[[]store.QueuedMessage]()
	backlog := store.NewBacklog(backing, cfg.MQTT.Settings.MaxStoreMsgsPerClient)

	router := topic.NewRouter(nil)
	router.SetLogger(log)

	hooks := hook.NewManager()
	router.SetHooks(hooks)
	reg := metrics.New()
	if err := hooks.Add(hook.NewMetricsHook(reg.Registerer())); err != nil {
		log.Error("failed to register metrics hook", "error", err)
	}
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			log.Error("failed to init sentry", "error", err)
		} else if err := hooks.Add(hook.NewErrorReportingHook(sentry.CurrentHub())); err != nil {
			log.Error("failed to register error-reporting hook", "error", err)
		}
	}

	brk := broker.NewBroker(broker.Config{
		MaxTopicLength:        cfg.MQTT.Settings.MaxTopicLength,
		MaxStoreMsgsPerClient: cfg.MQTT.Settings.MaxStoreMsgsPerClient,
		SweepInterval:         broker.DefaultConfig().SweepInterval,
		MaxSessionExpiry:      cfg.MQTT.Settings.SessionExpiryInterval,
		MaxReceiveQueue:       cfg.MQTT.Settings.MaxReceiveQueue,
		MaxPacketSize:         cfg.MQTT.Settings.MaxPacketSize,
	}, router, backlog, hooks)
	brk.SetLogger(log)

	go router.Run(ctx)
	go brk.Run(ctx)

	newSession := func(conn session.Conn) *session.Session {
		return session.New(conn, router, brk, int(cfg.MQTT.Settings.MaxReceiveQueue))
	}
	mqttHandler := network.ServeMQTT(ctx, log, hooks, newSession)

	var pools []*network.Pool
	var listeners []*network.Listener

	if cfg.MQTT.Listener.TCP.Host != "" {
		l, pool, err := startTCPListener(addrOf(cfg.MQTT.Listener.TCP.Host, cfg.MQTT.Listener.TCP.Port), nil, mqttHandler)
		if err != nil {
			log.Error("failed to start tcp listener", "error", err)
			os.Exit(1)
		}
		log.Info("tcp listener started", "addr", l.Addr())
		listeners = append(listeners, l)
		pools = append(pools, pool)
	}

	if cfg.MQTT.Listener.TCPTLS.Host != "" {
		tlsCfg := network.DefaultTLSConfig()
		tlsCfg.CertFile = cfg.MQTT.Listener.TCPTLS.CertPath
		tlsCfg.KeyFile = cfg.MQTT.Listener.TCPTLS.KeyPath
		built, err := tlsCfg.Build()
		if err != nil {
			log.Error("failed to build tls config", "error", err)
			os.Exit(1)
		}
		l, pool, err := startTCPListener(addrOf(cfg.MQTT.Listener.TCPTLS.Host, cfg.MQTT.Listener.TCPTLS.Port), built, mqttHandler)
		if err != nil {
			log.Error("failed to start tcp+tls listener", "error", err)
			os.Exit(1)
		}
		log.Info("tcp+tls listener started", "addr", l.Addr())
		listeners = append(listeners, l)
		pools = append(pools, pool)
	}

	var mux *http.ServeMux
	if cfg.MQTT.Listener.WS.Host != "" || cfg.MQTT.Listener.WSS.Host != "" {
		mux = http.NewServeMux()
	}

	if cfg.MQTT.Listener.WS.Host != "" {
		pool, err := network.NewPool(network.DefaultPoolConfig())
		if err != nil {
			log.Error("failed to build ws pool", "error", err)
			os.Exit(1)
		}
		path := cfg.MQTT.Listener.WS.Path
		if path == "" {
			path = "/mqtt"
		}
		mux.Handle(path, network.WebSocketHandler(pool, mqttHandler))
		pools = append(pools, pool)
		addr := cfg.MQTT.Listener.WS.Host + portSuffix(cfg.MQTT.Listener.WS.Port)
		go serveHTTP(log, addr, mux)
	}

	if cfg.MQTT.Listener.WSS.Host != "" {
		pool, err := network.NewPool(network.DefaultPoolConfig())
		if err != nil {
			log.Error("failed to build wss pool", "error", err)
			os.Exit(1)
		}
		path := cfg.MQTT.Listener.WSS.Path
		if path == "" {
			path = "/mqtt"
		}
		mux.Handle(path, network.WebSocketHandler(pool, mqttHandler))
		pools = append(pools, pool)
		addr := cfg.MQTT.Listener.WSS.Host + portSuffix(cfg.MQTT.Listener.WSS.Port)
		go serveHTTPS(log, addr, mux, cfg.MQTT.Listener.WSS.CertPath, cfg.MQTT.Listener.WSS.KeyPath)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", reg.Handler())
	go func() {
		log.Info("metrics listener started", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			log.Error("metrics listener stopped", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	for _, l := range listeners {
		_ = l.Close()
	}

	dm := network.NewDisconnectManager(5 * time.Second)
	dm.OnDisconnect(func(conn *network.Connection, packet *network.DisconnectPacket) error {
		log.Info("disconnecting client for shutdown", "remote_addr", conn.RemoteAddr(), "reason", packet.ReasonCode)
		return nil
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	for _, p := range pools {
		gs := network.NewGracefulShutdown(p, dm, 30*time.Second)
		if err := gs.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful pool shutdown failed", "error", err)
		}
		_ = p.Close()
	}
}

// startTCPListener binds addr, retrying a transient bind failure (e.g. a
// restart racing the previous process's socket teardown) with the pack's
// exponential backoff before giving up.
func startTCPListener(addr string, tlsCfg *tls.Config, handler network.ConnectionHandler) (*network.Listener, *network.Pool, error) {
	pool, err := network.NewPool(network.DefaultPoolConfig())
	if err != nil {
		return nil, nil, err
	}

	lcfg := network.DefaultListenerConfig(addr)
	lcfg.TLSConfig = tlsCfg

	var l *network.Listener
	recovery, err := network.NewRecovery(&network.RecoveryConfig{
		BackoffConfig:  &network.BackoffConfig{InitialInterval: 100 * time.Millisecond, MaxInterval: 2 * time.Second, Multiplier: 2, MaxRetries: 5, Jitter: true, JitterFactor: 0.2},
		EnableRecovery: true,
	})
	if err != nil {
		return nil, nil, err
	}

	bindErr := recovery.Retry(context.Background(), func() error {
		var startErr error
		l, startErr = network.NewListener(lcfg, pool)
		if startErr != nil {
			return startErr
		}
		l.OnConnection(handler)
		return l.Start()
	})
	if bindErr != nil {
		return nil, nil, bindErr
	}
	return l, pool, nil
}

func addrOf(host string, port int) string {
	return host + portSuffix(port)
}

func portSuffix(port int) string {
	if port == 0 {
		return ""
	}
	return ":" + strconv.Itoa(port)
}

func serveHTTP(log *logger.SlogLogger, addr string, mux *http.ServeMux) {
	log.Info("ws listener started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("ws listener stopped", "error", err)
	}
}

func serveHTTPS(log *logger.SlogLogger, addr string, mux *http.ServeMux, certFile, keyFile string) {
	log.Info("wss listener started", "addr", addr)
	if err := http.ListenAndServeTLS(addr, certFile, keyFile, mux); err != nil && err != http.ErrServerClosed {
		log.Error("wss listener stopped", "error", err)
	}
}
