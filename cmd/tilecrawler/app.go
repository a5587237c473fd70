package main

import (
	"context"
	"fmt"
	"os"

	"tilecrawler/cmd/tilecrawler/ui"
	"tilecrawler/internal/cache"
	"tilecrawler/internal/eventstream"
	"tilecrawler/internal/glyph"
	"tilecrawler/internal/llmclient"
	"tilecrawler/internal/llmclient/recorded"
	"tilecrawler/internal/mcp"
	"tilecrawler/internal/metrics"
	"tilecrawler/internal/narrative"
	"tilecrawler/internal/prefetch"
	"tilecrawler/internal/promptctx"
	"tilecrawler/internal/router"
	"tilecrawler/internal/session"
	"tilecrawler/internal/sqlstore"
	"tilecrawler/internal/telemetry"
	"tilecrawler/internal/validator"
	"tilecrawler/internal/worldstate"
)

const defaultSavePath = "tilecrawler.save"

// createApp wires every Intelligence Core component into one session.Engine
// and hands back the top-level Bubble Tea model, mirroring the way the
// teacher's cmd/game/app.go assembles its dependencies before constructing
// ui.Model — only the concrete wiring differs.
func createApp() (ui.Model, func(), error) {
	ctx := context.Background()
	debugMode := os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true"

	logger := telemetry.NewLogger(os.Stderr, "tilecrawler ")
	if !debugMode {
		logger = telemetry.NewLogger(nil, "tilecrawler ")
	}

	tp, err := telemetry.InitTracing(ctx, telemetry.LoadConfigFromEnv())
	if err != nil {
		return ui.Model{}, nil, fmt.Errorf("init tracing: %w", err)
	}
	tracer := tp.GetTracer("tilecrawler/session")

	sink := metrics.Sink(metrics.NewMemory())
	var store *sqlstore.Store
	if dbPath := os.Getenv("TILECRAWLER_METRICS_DB"); dbPath != "" {
		store, err = sqlstore.Open(dbPath, func(err error) { logger.Errorf("metrics sink: %v", err) })
		if err != nil {
			return ui.Model{}, nil, fmt.Errorf("open metrics store: %w", err)
		}
		sink = store
	}

	legend := glyph.NewDefault()
	val := validator.New(legend, knownQuestTemplates(), sink)

	backend, model := buildBackend()

	r := router.NewRouter(backend, router.WithSink(sink))

	worldStateForFacts := worldstate.NewStore(seedFromEnv(), worldstate.NewPlayer(playerNameFromEnv()))
	mcpServer := mcp.NewServer(worldStateForFacts, questCatalog())
	mcpClient, err := mcp.Connect(ctx, mcpServer)
	if err != nil {
		return ui.Model{}, nil, fmt.Errorf("connect mcp client: %w", err)
	}

	asm := promptctx.NewAssembler(promptctx.WithFactRetriever(mcpClient))
	c := cache.New(256)
	pf := prefetch.New(r, asm, c, val, model, prefetch.DefaultBudget)

	mem := narrative.New(narrative.DefaultConfig())
	stream := eventstream.NewStream()

	engine := session.New(session.Config{
		Store:     worldStateForFacts,
		Memory:    mem,
		Assembler: asm,
		Router:    r,
		Validator: val,
		Cache:     c,
		Prefetch:  pf,
		Stream:    stream,
		Logger:    logger,
		Tracer:    tracer,
		Model:     model,
		SavePath:  defaultSavePath,
	})
	engine.SetQuestCatalog(questCatalog())

	cleanup := func() {
		_ = mcpClient.Close()
		if store != nil {
			_ = store.Close()
		}
		_ = tp.Shutdown(ctx)
	}

	return ui.NewModel(engine, debugMode), cleanup, nil
}

// buildBackend picks the recorded.Backend (no network, deterministic) unless
// OPENAI_API_KEY is set, matching the "LLM backend replaced by a recorded
// mock" testable property without requiring a live key for the harness to
// run at all.
func buildBackend() (llmclient.Backend, string) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		return llmclient.NewOpenAIBackend(apiKey), envOr("TILECRAWLER_MODEL", "gpt-5")
	}
	return recorded.New(), "recorded"
}

func seedFromEnv() int64 {
	return 1
}

func playerNameFromEnv() string {
	return envOr("TILECRAWLER_PLAYER", "Wanderer")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func questCatalog() mcp.QuestCatalog {
	return mcp.QuestCatalog{
		"the_lost_seal": {
			Title:       "The Lost Seal",
			Description: "Recover the shattered seal fragments scattered through the crypt.",
			Objectives:  []string{"find 3 seal fragments", "return to the shrine"},
		},
	}
}

func knownQuestTemplates() validator.KnownQuestTemplates {
	out := validator.KnownQuestTemplates{}
	for id := range questCatalog() {
		out[id] = true
	}
	return out
}
