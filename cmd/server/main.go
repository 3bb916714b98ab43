// Server runs the agent gateway: websocket endpoint, session registry,
// activity buffer, compliance classifier, and capture pipeline.
// Requires DATABASE_URL; see .env.example for the optional collaborators.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"activity-compliance-plane/backend/internal/activity/buffer"
	activityrepo "activity-compliance-plane/backend/internal/activity/repository"
	alertrepo "activity-compliance-plane/backend/internal/alert/repository"
	"activity-compliance-plane/backend/internal/analysis"
	"activity-compliance-plane/backend/internal/capability"
	"activity-compliance-plane/backend/internal/capture"
	capturerepo "activity-compliance-plane/backend/internal/capture/repository"
	"activity-compliance-plane/backend/internal/config"
	"activity-compliance-plane/backend/internal/db"
	"activity-compliance-plane/backend/internal/gateway"
	"activity-compliance-plane/backend/internal/media"
	policydomain "activity-compliance-plane/backend/internal/policy/domain"
	"activity-compliance-plane/backend/internal/policy/engine"
	"activity-compliance-plane/backend/internal/search"
	"activity-compliance-plane/backend/internal/session/registry"
	"activity-compliance-plane/backend/internal/telemetry"
	teleotel "activity-compliance-plane/backend/internal/telemetry/otel"
	"activity-compliance-plane/backend/internal/telemetry/producer"
	"activity-compliance-plane/backend/internal/violation"
	"activity-compliance-plane/backend/internal/whitelist"
	whitelistrepo "activity-compliance-plane/backend/internal/whitelist/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := teleotel.NewProviders(ctx, cfg.OTLPEndpoint, "acp-server", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	activities := activityrepo.NewPostgresRepository(sqlDB)
	alerts := alertrepo.NewPostgresRepository(sqlDB)
	captures := capturerepo.NewPostgresRepository(sqlDB)
	whitelists := whitelistrepo.NewPostgresRepository(sqlDB)

	var indexer buffer.Indexer
	if cfg.ElasticsearchURL != "" {
		es, err := search.NewElasticIndexer(cfg.ElasticsearchURL)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
		indexer = es
	}

	buf := buffer.New(activities, cfg.ActivityBufferMax, indexer)
	scheduler := buffer.NewScheduler(buf, cfg.FlushInterval())
	go scheduler.Run(ctx)

	reg := registry.New(cfg.Cooldown(), buf)

	rules := policydomain.DefaultRuleSet()
	if cfg.PolicyRulesFile != "" {
		rules, err = policydomain.LoadRules(cfg.PolicyRulesFile)
		if err != nil {
			log.Fatalf("policy rules: %v", err)
		}
	}
	classifier := engine.New(rules)
	wlCache := whitelist.NewCache(whitelists, 0)

	var emitter telemetry.EventEmitter
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		kp, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Fatalf("kafka: %v", err)
		}
		defer kp.Close()
		emitter = kp
	} else {
		emitter = teleotel.NewEventEmitter(providers.LoggerProvider)
	}

	coordinator := violation.New(reg, alerts, emitter)

	uploader := media.NewHTTPUploader(cfg.MediaBaseURL, cfg.MediaAPIKey)
	var ocr analysis.OCR
	if cfg.OCRServiceURL != "" {
		ocr = analysis.NewHTTPOCR(cfg.OCRServiceURL)
	}
	var analyzer analysis.Analyzer
	if cfg.AIAnalysisURL != "" {
		analyzer = analysis.NewHTTPAnalyzer(cfg.AIAnalysisURL)
	}
	captureSvc := capture.NewService(captures, uploader, ocr, analyzer)

	caps := capability.Detect()
	log.Printf("capability: headless=%v (%s) host=%s virt=%s", caps.Headless, caps.Reason, caps.Hostname, caps.Virtualization)

	gw := gateway.New(reg, buf, classifier, wlCache, coordinator, captureSvc, emitter, caps)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gateway listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gateway...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	// Stopping the scheduler triggers its final flush of all buffers.
	cancel()

	// Give in-flight async telemetry time to land before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("gateway stopped")
}
