package main

import (
	"log"
	"time"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/conversation"
	"github.com/siftly/siftly/internal/lead"
	"github.com/siftly/siftly/internal/metrics"
	"github.com/siftly/siftly/internal/notify"
	"github.com/siftly/siftly/internal/oracle"
	"github.com/siftly/siftly/internal/oracle/claude"
	"github.com/siftly/siftly/internal/oracle/gpt"
	"github.com/siftly/siftly/internal/qualify"
	"github.com/siftly/siftly/internal/script"
	"github.com/siftly/siftly/internal/sms"
)

// services is the wired inbound message pipeline.
type services struct {
	engine   *qualify.Engine
	router   *conversation.Router
	notifier *notify.Notifier
	recorder *metrics.PrometheusRecorder
}

// newServices wires the pipeline for cfg on top of store.
func newServices(cfg *config.Config, store lead.Store) (*services, error) {
	rec := metrics.NewPrometheusRecorder()

	catalog, err := script.Load(cfg.MessagesPath, cfg.ContractorName)
	if err != nil {
		return nil, err
	}

	engine := newEngine(cfg, rec)
	policy, err := newPolicy(cfg, catalog, engine, rec)
	if err != nil {
		return nil, err
	}

	notifier := newNotifier(cfg, rec)

	router := conversation.NewRouter(conversation.Options{
		Store:    store,
		Policy:   policy,
		Notifier: notifier,
		Catalog:  catalog,
		Recorder: rec,
	})

	return &services{
		engine:   engine,
		router:   router,
		notifier: notifier,
		recorder: rec,
	}, nil
}

// newCompleter returns the configured provider client for model.
func newCompleter(cfg *config.Config, model string) oracle.Completer {
	model = cfg.ModelOrDefault(model)
	if cfg.OracleProvider == config.ProviderAnthropic {
		return claude.New(cfg.AnthropicAPIKey, model)
	}
	return gpt.New(cfg.OpenAIAPIKey, model)
}

// newEngine selects oracle scoring or the local rubric.
func newEngine(cfg *config.Config, rec metrics.Recorder) *qualify.Engine {
	opts := qualify.Options{Recorder: rec}
	if cfg.Scoring == config.ScoringOracle {
		opts.Scorer = oracle.NewScorer(newCompleter(cfg, cfg.ScoringModel), cfg.OracleTimeout(), rec)
	}
	return qualify.NewEngine(opts)
}

// newPolicy selects the conversation strategy for cfg.Mode.
func newPolicy(cfg *config.Config, catalog *script.Catalog, engine *qualify.Engine, rec metrics.Recorder) (conversation.Policy, error) {
	if cfg.Mode != config.ModeConversational {
		return conversation.NewScripted(catalog, engine), nil
	}

	responder, err := oracle.NewResponder(newCompleter(cfg, cfg.ChatModel), oracle.ResponderConfig{
		Instructions:        catalog.Instructions(),
		Sentinel:            cfg.CompletionSentinel,
		Timeout:             cfg.OracleTimeout(),
		MaxTranscriptTokens: cfg.TranscriptMaxTokens,
		Recorder:            rec,
	})
	if err != nil {
		return nil, err
	}
	return conversation.NewAgent(catalog, responder, engine), nil
}

// newNotifier wires the HOT lead alert channels that are configured.
func newNotifier(cfg *config.Config, rec metrics.Recorder) *notify.Notifier {
	opts := notify.Options{
		ContractorPhone: cfg.ContractorPhone,
		Timeout:         cfg.NotifyTimeout(),
		Location:        time.Local,
		Recorder:        rec,
	}

	if cfg.TwilioConfigured() {
		opts.Sender = sms.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioNumber)
	} else {
		log.Printf("Twilio credentials not set; contractor alerts will only be logged")
		opts.Sender = sms.LogSender{}
	}
	if cfg.ContractorPhone == "" {
		log.Printf("contractor_phone not set; SMS alerts disabled")
	}

	if cfg.DashboardURL != "" {
		opts.Dashboard = notify.NewDashboardClient(cfg.DashboardURL)
	}

	return notify.New(opts)
}
