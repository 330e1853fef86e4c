// Command loadgen drives an in-process agent over HTTP and reports latency
// percentiles plus whether duplicate processing stayed idempotent.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iago/career-agent/internal/ai"
	"github.com/iago/career-agent/internal/domain"
	httpserver "github.com/iago/career-agent/internal/http"
	"github.com/iago/career-agent/internal/http/handlers"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/mail"
	"github.com/iago/career-agent/internal/pipeline"
	"github.com/iago/career-agent/internal/queue"
	"github.com/iago/career-agent/internal/records"
	"github.com/iago/career-agent/internal/router"
	"github.com/iago/career-agent/internal/service"
	"github.com/iago/career-agent/internal/state"
	"github.com/iago/career-agent/internal/worker"
)

var companies = []string{"Acme Corp", "Globex", "Initech", "Umbrella", "Hooli", "Stark Industries", "Wayne Enterprises", "Soylent"}

var categories = []string{"APPLIED", "INTERVIEW", "REJECTION", "OTHER"}

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Messages       int              `json:"messages"`
	Results        []scenarioResult `json:"results"`
	Updates        int              `json:"updates"`
	Logs           int              `json:"logs"`
	Records        int              `json:"records"`
	DeadLetters    int              `json:"dead_letters"`
	Checks         map[string]bool  `json:"checks"`
}

// latencyClassifier answers from the message subject after a fixed delay, which
// stands in for a provider round trip.
type latencyClassifier struct {
	delay time.Duration
}

func (c latencyClassifier) Complete(ctx context.Context, task ai.TaskKind, prompt string) string {
	select {
	case <-ctx.Done():
		return domain.ClassifierFailure
	case <-time.After(c.delay):
	}
	switch task {
	case ai.TaskRelevance:
		return "TRUE"
	case ai.TaskCategory:
		for _, category := range categories {
			if strings.Contains(prompt, "["+category+"]") {
				return category
			}
		}
		return "OTHER"
	case ai.TaskCompany:
		for _, company := range companies {
			if strings.Contains(prompt, company) {
				return company
			}
		}
	}
	return domain.ClassifierFailure
}

type environment struct {
	server    *httptest.Server
	state     *state.AgentState
	store     *records.MemoryStore
	queue     *queue.LocalQueue
	processor *worker.Processor
	cancel    context.CancelFunc
}

func main() {
	messages := flag.Int("messages", 64, "distinct mailbox messages to seed")
	duplicates := flag.Int("duplicates", 4, "concurrent process calls per message")
	concurrency := flag.Int("concurrency", 24, "client concurrency")
	signalsTotal := flag.Int("signals-total", 400, "total notification posts")
	readsTotal := flag.Int("reads-total", 200, "total log/update reads")
	aiDelay := flag.Duration("ai-delay", 15*time.Millisecond, "simulated classifier latency")
	outputPath := flag.String("output", "", "optional path to persist results JSON")
	flag.Parse()

	env := startEnvironment(*messages, *aiDelay)
	defer env.close()

	client := &http.Client{Timeout: 30 * time.Second}

	processScenario := runScenario("process_duplicates", *messages**duplicates, *concurrency, func(index int) error {
		id := fmt.Sprintf("msg-%04d", index%*messages)
		return postJSON(client, env.server.URL+"/v1/messages/"+id+"/process", nil, http.StatusOK)
	})

	packages := []string{"com.google.android.gm", "com.linkedin.android", "com.whatsapp", "org.example.unknown"}
	signalsScenario := runScenario("signals_ingest", *signalsTotal, *concurrency, func(index int) error {
		payload := map[string]any{
			"package_id": packages[index%len(packages)],
			"title":      companies[index%len(companies)],
			"text":       "Update on your application",
		}
		return postJSON(client, env.server.URL+"/v1/signals", payload, http.StatusAccepted)
	})

	readsScenario := runScenario("logs_read", *readsTotal, *concurrency, func(index int) error {
		path := "/v1/logs"
		if index%2 == 1 {
			path = "/v1/updates"
		}
		return getJSON(client, env.server.URL+path, http.StatusOK)
	})

	// Let queued signals drain before counting.
	deadline := time.Now().Add(10 * time.Second)
	for env.queue.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	env.cancel()
	env.processor.Wait()

	updates := env.state.Updates()
	seen := make(map[string]int, len(updates))
	for _, update := range updates {
		seen[update.Subject]++
	}
	noDuplicateUpdates := true
	for _, count := range seen {
		if count > 1 {
			noDuplicateUpdates = false
		}
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Messages:       *messages,
		Results:        []scenarioResult{processScenario, signalsScenario, readsScenario},
		Updates:        len(updates),
		Logs:           len(env.state.Logs()),
		Records:        len(env.store.List()),
		DeadLetters:    len(env.queue.DeadLetters()),
		Checks: map[string]bool{
			"one_update_per_message":   noDuplicateUpdates && len(updates) == *messages,
			"records_within_companies": len(env.store.List()) <= len(companies),
			"process_errors_zero":      processScenario.Errors == 0,
		},
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal report: %v\n", err)
		os.Exit(1)
	}
	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			os.Exit(1)
		}
	}
	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startEnvironment(messages int, aiDelay time.Duration) *environment {
	ctx, cancel := context.WithCancel(context.Background())
	logger := logging.Nop()
	now := time.Now()

	fetcher := mail.NewMemoryFetcher()
	for i := 0; i < messages; i++ {
		company := companies[i%len(companies)]
		category := categories[i%len(categories)]
		fetcher.Put(mail.FullMessage{
			Metadata: mail.Metadata{
				ID:           fmt.Sprintf("msg-%04d", i),
				Subject:      fmt.Sprintf("[%s] %s #%d", category, company, i),
				From:         "talent@example.com",
				InternalDate: now.Add(-time.Duration(i) * time.Second),
			},
			PlainBody: "Regarding your application at " + company,
		})
	}

	store := records.NewMemoryStore()
	agentState := state.New()
	p, err := pipeline.New(pipeline.Dependencies{
		Fetcher:    fetcher,
		Classifier: latencyClassifier{delay: aiDelay},
		Store:      store,
		State:      agentState,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline: %v\n", err)
		os.Exit(1)
	}

	local := queue.NewLocalQueue(4096, logger)
	processor := worker.NewProcessor(local, local, p, logger)
	go processor.Start(ctx)

	api := handlers.NewAPI(handlers.Dependencies{
		Signals:   service.NewSignalsService(router.New(router.Config{}), local, logger),
		Processor: p,
		State:     agentState,
		Logger:    logger,
	})
	server := httptest.NewServer(httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	}))

	return &environment{
		server:    server,
		state:     agentState,
		store:     store,
		queue:     local,
		processor: processor,
		cancel:    cancel,
	}
}

func (e *environment) close() {
	e.cancel()
	e.server.Close()
}

func runScenario(name string, total, concurrency int, requestFn func(index int) error) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	type sample struct {
		durationMS float64
		err        string
	}

	startedAt := time.Now()
	indexes := make(chan int, total)
	samples := make(chan sample, total)
	for i := 0; i < total; i++ {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range indexes {
				start := time.Now()
				err := requestFn(index)
				s := sample{durationMS: float64(time.Since(start).Microseconds()) / 1000.0}
				if err != nil {
					s.err = err.Error()
				}
				samples <- s
			}
		}()
	}
	wg.Wait()
	close(samples)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success, failures := 0, 0
	for item := range samples {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		failures++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	throughput := 0.0
	if elapsed := time.Since(startedAt).Seconds(); elapsed > 0 {
		throughput = float64(total) / elapsed
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        failures,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(client *http.Client, url string, payload any, expectedStatus int) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	return do(client, request, expectedStatus)
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	return do(client, request, expectedStatus)
}

func do(client *http.Client, request *http.Request, expectedStatus int) error {
	request.Header.Set("Accept", "application/json")
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
