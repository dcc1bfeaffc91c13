// The gateway binary is the live TCP ingest server: it binds the configured
// address, frames and parses incoming Galileosky packets, and feeds decoded
// records through the bounded Work Queue to a Sink Facade.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/galileosky/ingest-gateway/config"
	"github.com/galileosky/ingest-gateway/logging"
	"github.com/galileosky/ingest-gateway/metrics"
	"github.com/galileosky/ingest-gateway/pipeline"
	"github.com/galileosky/ingest-gateway/sink"
)

func main() {
	configFile := flag.String("config", "./galileosky.yaml", "path to the gateway config file")
	logDir := flag.String("log-dir", ".", "directory for the daily event log")
	csvPath := flag.String("csv", "./galileosky-records.csv", "path to the CSV persistence log")
	broadcastAddr := flag.String("broadcast-addr", ":5028", "address serving the live-record WebSocket subscription endpoint")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		os.Exit(1)
	}

	log := logging.New(*logDir, "gateway.")
	log.WithField("bind", cfg.TCPBind).Info("starting gateway")

	metrics.Serve(cfg.MetricsPort)

	csvFile, err := os.OpenFile(*csvPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Fatal("cannot open CSV persistence log")
	}
	defer csvFile.Close()

	wsSink := sink.NewWebSocketSink()
	serveBroadcastSubscriptions(*broadcastAddr, wsSink, log)

	facade := sink.NewFacade(
		sink.MultiSink{sink.NewCSVSink(csvFile), wsSink},
		log,
		func(stage string, err error) {
			metrics.SinkFailures.WithLabelValues(stage).Inc()
		},
	)

	queue := pipeline.NewQueue(cfg.QueueMaxDepth)
	workers := pipeline.NewWorkerPool(queue, facade, cfg.PerJobTimeout(), cfg.QueueMaxRetries, log)
	workers.Start(cfg.QueueMaxConcurrency)

	server := pipeline.NewServer(cfg, queue, pipeline.FormMain, log)

	// A lightweight scheduled tick logs queue stats periodically, the way
	// rtcmlogger rotates its daily logs on a schedule rather than on
	// every write.
	statsCron := cron.New()
	statsCron.AddFunc("@every 1m", func() {
		stats := queue.Stats()
		log.WithFields(map[string]interface{}{
			"queued":    stats.Queued,
			"processed": stats.Processed,
			"failed":    stats.Failed,
			"dropped":   stats.Dropped,
			"avg_ms":    stats.AvgProcessTimeMs,
		}).Info("queue stats")
	})
	statsCron.Start()
	defer statsCron.Stop()

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.WithError(err).Error("gateway server stopped")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	server.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	shutdownComplete := make(chan struct{})
	go func() {
		workers.Stop()
		close(shutdownComplete)
	}()
	select {
	case <-shutdownComplete:
	case <-shutdownCtx.Done():
		log.Warn("shutdown grace period expired with jobs still in flight")
	}
}

// serveBroadcastSubscriptions starts the WebSocket endpoint that fulfils
// spec.md §1(f): a client opens a subscription for one IMEI and receives
// every record the gateway broadcasts to it via wsSink. It runs on its own
// port, separate from the metrics exposition server and the TCP ingest
// listener.
func serveBroadcastSubscriptions(addr string, wsSink *sink.WebSocketSink, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		imei := r.URL.Query().Get("imei")
		if imei == "" {
			http.Error(w, "imei query parameter is required", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("websocket subscription accept failed")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "subscription closed")

		wsSink.Subscribe(imei, conn)
		defer wsSink.Unsubscribe(imei, conn)

		// The connection stays open only to receive broadcasts; block
		// until the client disconnects.
		<-r.Context().Done()
	})

	log.WithField("bind", addr).Info("serving broadcast subscriptions")
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Error("broadcast subscription server stopped")
		}
	}()
}
