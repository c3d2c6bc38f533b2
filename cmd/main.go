package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"artnetnode/internal/artnet"
	"artnetnode/internal/bridge"
	"artnetnode/internal/config"
	"artnetnode/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "artnetnode",
		Short:         "Art-Net node with an MQTT bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
	root.Flags().StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "artnetnode: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		return fmt.Errorf("configuration file read error: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create a logger: %w", err)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	opts, err := ConvertConfigNode(log, cfg.Node)
	if err != nil {
		return err
	}
	node, err := artnet.NewNode(log, opts)
	if err != nil {
		return fmt.Errorf("error while creating a new art-net node: %w", err)
	}
	log.With(logger.Fields{"module": "art-net"}).Debug("NewNode created ok")

	sup := suture.New("artnetnode", suture.Spec{
		EventHook: func(e suture.Event) {
			log.With(logger.Fields{"module": "supervisor"}).Warn(e.String())
		},
		Timeout: 10 * time.Second,
	})
	sup.Add(node)

	if cfg.MQTT.Enabled {
		sup.Add(bridge.New(log, ConvertConfigBridge(cfg.MQTT), node))
		log.With(logger.Fields{"module": "mqtt"}).Debug("bridge created ok")
	}
	if cfg.Metrics.Listen != "" {
		sup.Add(&metricsService{addr: cfg.Metrics.Listen, log: log})
	}

	err = sup.Serve(ctx)
	node.Close()
	log.Info("shutdown complete")

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ConvertConfigNode преобразует структуры.
func ConvertConfigNode(log *logger.Log, cfg config.NodeConf) (artnet.Options, error) {
	addr, err := artnet.NewAddress(cfg.Subnet, cfg.Net)
	if err != nil {
		log.With(logger.Fields{"module": "art-net"}).Warnf("%v, using 0:0", err)
	}
	opts := artnet.Options{
		Address:         addr,
		Hibernate:       cfg.Hibernate,
		Unicast:         cfg.Unicast,
		IgnoreLocalData: cfg.IgnoreLocalData,
		Channels:        cfg.Channels,
		Port:            cfg.Port,
		AddressRange:    cfg.AddressRange,
		RetryInterval:   cfg.RetryInterval.Duration,
		ProbeTimeout:    cfg.ProbeTimeout.Duration,
	}
	if cfg.Broadcast != "" {
		if opts.Broadcast, err = netip.ParseAddr(cfg.Broadcast); err != nil {
			return opts, fmt.Errorf("invalid broadcast address: %w", err)
		}
	}
	if cfg.FallbackIP != "" {
		if opts.FallbackIP, err = netip.ParseAddr(cfg.FallbackIP); err != nil {
			return opts, fmt.Errorf("invalid fallback ip: %w", err)
		}
	}
	return opts, nil
}

// ConvertConfigBridge преобразует структуры.
func ConvertConfigBridge(cfg config.MQTTConf) bridge.MQTTConf {
	return bridge.MQTTConf{
		ClientID:     cfg.ClientID,
		Schema:       "tcp",
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		Qos:          cfg.Qos,
		TopicPrefix:  cfg.TopicPrefix,
		PollInterval: cfg.PollInterval.Duration,
	}
}

// metricsService serves /metrics for prometheus.
type metricsService struct {
	addr string
	log  *logger.Log
}

func (s *metricsService) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: s.addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.With(logger.Fields{"module": "metrics"}).Infof("serving metrics on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

func (s *metricsService) String() string {
	return "metrics@" + s.addr
}
