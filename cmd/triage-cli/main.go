package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/spool"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/adapters/store"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/classifier"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/config"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/core"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/dispatch"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/factory"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/logging"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/pool"
	"github.com/hackerman-thebest/mail-mind-sub001/internal/utils"
	"go.uber.org/zap"
)

var (
	// Backend flags
	provider    = flag.String("provider", "openai", "Backend provider (openai, gemini, bedrock)")
	baseURL     = flag.String("base-url", "http://localhost:11434/v1", "Base URL for an OpenAI-compatible local backend")
	apiKey      = flag.String("api-key", "ollama", "API key for the selected backend")
	modelName   = flag.String("model", "llama3.1:8b", "Model name or ID")
	maxTokens   = flag.Int("max-tokens", 1000, "Maximum tokens for the model response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size sent to the model")

	// Pool and batch flags
	poolSize       = flag.Int("pool-size", 2, "Number of backend connections")
	itemTimeout    = flag.Duration("item-timeout", 2*time.Minute, "Per-email processing timeout")
	acquireTimeout = flag.Duration("acquire-timeout", 30*time.Second, "Timeout waiting for a pool connection")

	// Output flags
	verbose = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	files := flag.Args()
	if len(files) == 0 {
		logger.Fatal("No email files given; pass one or more RFC-822 files (or - for stdin)")
	}

	emails := make([]*core.Email, 0, len(files))
	for _, path := range files {
		email, err := readEmail(path)
		if err != nil {
			logger.Fatal("Failed to read email", zap.String("file", path), zap.Error(err))
		}
		emails = append(emails, email)
	}

	cfg := createConfigFromFlags()
	ctx := context.Background()

	backendFactory := factory.NewBackendFactory(cfg, logger)
	dialer, err := backendFactory.CreateDialer()
	if err != nil {
		logger.Fatal("Failed to create backend dialer", zap.Error(err))
	}

	inferencePool, err := pool.New(dialer, *poolSize, logger)
	if err != nil {
		logger.Fatal("Invalid pool configuration", zap.Error(err))
	}
	if err := inferencePool.Initialize(ctx); err != nil {
		logger.Fatal("Failed to initialize inference pool", zap.Error(err))
	}
	defer inferencePool.Stop()

	textProcessor := utils.NewTextProcessor(logger)
	service := core.NewTriageService(logger, textProcessor,
		backendFactory.ModelName(), backendFactory.GenerateOptions(), backendFactory.MaxBodySize())

	// The one-shot CLI keeps its learning state in memory; profiles do
	// not survive the run
	priorityClassifier := classifier.New(
		store.NewMemoryStore(logger), classifier.DefaultConfig(), logger)

	pipeline := classifier.NewPipeline(service, priorityClassifier)
	dispatcher := dispatch.NewDispatcher(inferencePool, pipeline, *acquireTimeout, logger)

	// Progress arrives on a channel so terminal writes stay on one goroutine
	notifier := dispatch.NewProgressNotifier(len(emails))
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for u := range notifier.Updates() {
			fmt.Fprintf(os.Stderr, "\rprocessed %d/%d", u.Done, u.Total)
		}
	}()

	batch, err := dispatcher.ProcessBatch(ctx, emails, *itemTimeout, notifier.Func())
	notifier.Close()
	<-drained
	if err != nil {
		logger.Fatal("Batch failed", zap.Error(err))
	}
	fmt.Fprintln(os.Stderr)

	printBatch(batch)
	if batch.Failed > 0 {
		os.Exit(1)
	}
}

func printBatch(batch *core.BatchResult) {
	for _, item := range batch.Results {
		switch item.Status {
		case core.ItemSuccess:
			r := item.Result
			fmt.Printf("%s %s  [%s]  base=%s confidence=%.2f\n",
				r.Indicator, item.ItemID, r.Priority, r.BasePriority, r.Confidence)
			if r.Summary != "" {
				fmt.Printf("   %s\n", r.Summary)
			}
			for _, action := range r.ActionItems {
				fmt.Printf("   - %s\n", action)
			}
		case core.ItemTimeout:
			fmt.Printf("⏱  %s  timed out: %s\n", item.ItemID, item.Error)
		default:
			fmt.Printf("✗  %s  failed: %s\n", item.ItemID, item.Error)
		}
	}
	fmt.Printf("\n%d emails, %d ok, %d failed in %s (%.1f/min)\n",
		batch.Total, batch.Success, batch.Failed, batch.Elapsed.Round(time.Millisecond), batch.Throughput)
}

// readEmail parses an RFC-822 message from a file, or stdin for "-"
func readEmail(path string) (*core.Email, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		reader = file
	}
	return spool.ParseMessage(reader, path)
}

// createConfigFromFlags builds a config equivalent to the flag values
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	v.Set("llm.provider", *provider)
	v.Set("openai.api_key", *apiKey)
	v.Set("openai.base_url", *baseURL)
	v.Set("openai.model_name", *modelName)
	v.Set("openai.max_tokens", *maxTokens)
	v.Set("openai.temperature", *temperature)
	v.Set("openai.top_p", *topP)
	v.Set("openai.max_body_size", *maxBodySize)
	v.Set("gemini.api_key", *apiKey)
	v.Set("gemini.model_name", *modelName)
	v.Set("gemini.max_tokens", *maxTokens)
	v.Set("gemini.temperature", *temperature)
	v.Set("gemini.top_p", *topP)
	v.Set("gemini.max_body_size", *maxBodySize)
	v.Set("bedrock.model_id", *modelName)
	v.Set("bedrock.max_tokens", *maxTokens)
	v.Set("bedrock.temperature", *temperature)
	v.Set("bedrock.top_p", *topP)
	v.Set("bedrock.max_body_size", *maxBodySize)
	v.Set("pool.size", *poolSize)

	return config.NewFromViper(v)
}
