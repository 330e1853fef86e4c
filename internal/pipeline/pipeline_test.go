package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/career-agent/internal/ai"
	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/mail"
	"github.com/iago/career-agent/internal/records"
	"github.com/iago/career-agent/internal/state"
)

type fakeClassifier struct {
	mu      sync.Mutex
	answers map[ai.TaskKind]string
	calls   map[ai.TaskKind]int
	delay   time.Duration
}

func newFakeClassifier(answers map[ai.TaskKind]string) *fakeClassifier {
	return &fakeClassifier{answers: answers, calls: make(map[ai.TaskKind]int)}
}

func (c *fakeClassifier) Complete(_ context.Context, task ai.TaskKind, _ string) string {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[task]++
	if answer, ok := c.answers[task]; ok {
		return answer
	}
	return domain.ClassifierFailure
}

func (c *fakeClassifier) count(task ai.TaskKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[task]
}

type spyStore struct {
	*records.MemoryStore
	findErr   error
	updateErr error
	finds     atomic.Int32
	updates   atomic.Int32
	creates   atomic.Int32
}

func (s *spyStore) FindMatch(ctx context.Context, company string) (domain.RecordMatch, error) {
	s.finds.Add(1)
	if s.findErr != nil {
		return domain.RecordMatch{}, s.findErr
	}
	return s.MemoryStore.FindMatch(ctx, company)
}

func (s *spyStore) UpdateStatus(ctx context.Context, id, status string) error {
	s.updates.Add(1)
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.UpdateStatus(ctx, id, status)
}

func (s *spyStore) CreateRecord(ctx context.Context, company, title string, applied time.Time) error {
	s.creates.Add(1)
	return s.MemoryStore.CreateRecord(ctx, company, title, applied)
}

func (s *spyStore) calls() int32 {
	return s.finds.Load() + s.updates.Load() + s.creates.Load()
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestPipeline(t *testing.T, fetcher mail.Fetcher, classifier Classifier, store records.Store) *Pipeline {
	t.Helper()
	p, err := New(Dependencies{
		Fetcher:    fetcher,
		Classifier: classifier,
		Store:      store,
		State:      state.New(),
		Now:        func() time.Time { return fixedNow },
		Location:   time.UTC,
	})
	require.NoError(t, err)
	return p
}

func message(id, subject, body string) mail.FullMessage {
	return mail.FullMessage{
		Metadata:  mail.Metadata{ID: id, Subject: subject, From: "jobs@example.com", InternalDate: fixedNow.Add(-5 * time.Minute)},
		PlainBody: body,
		Snippet:   body,
	}
}

func TestInterviewUpdatesExistingRecord(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "acme", Company: "Acme Corp", Status: records.StatusApplied})}
	fetcher := mail.NewMemoryFetcher(message("m1", "Interview invite: Acme Corp", "Please pick a slot."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "INTERVIEW",
		ai.TaskCompany:   "Acme Corp",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m1")

	require.Equal(t, domain.ResultClassified, result.Kind)
	record, _ := store.Get("acme")
	assert.Equal(t, records.StatusExamScheduled, record.Status)

	updates := p.State().Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "Acme Corp", updates[0].Company)
	assert.Equal(t, domain.CategoryInterview, updates[0].Category)
	assert.Equal(t, "09:30", updates[0].Timestamp)

	log, ok := p.State().Log("m1")
	require.True(t, ok)
	assert.True(t, log.IsCompleted)
	assert.Equal(t, "INTERVIEW: Acme Corp", log.Message)
	assert.Equal(t, "09:25", log.EmailTime)
}

func TestAppliedWithoutRecordCreatesOne(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m2", "Thanks for applying to Beta Inc", "We received your application."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "true",
		ai.TaskCategory:  "APPLIED",
		ai.TaskCompany:   "Beta Inc",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m2")

	require.Equal(t, domain.ResultClassified, result.Kind)
	all := store.List()
	require.Len(t, all, 1)
	assert.Equal(t, "Beta Inc", all[0].Company)
	assert.Equal(t, "Thanks for applying to Beta Inc", all[0].Title)
	assert.Equal(t, records.StatusApplied, all[0].Status)
	assert.Equal(t, fixedNow, all[0].DateApplied)
	assert.Len(t, p.State().Updates(), 1)
}

func TestIrrelevantMessageIsSkipped(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m3", "Weekly newsletter", "Top stories"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskRelevance: "FALSE"})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m3")

	assert.Equal(t, domain.ResultSkipped, result.Kind)
	assert.Empty(t, p.State().Logs())
	assert.Empty(t, p.State().Updates())
	assert.Zero(t, store.calls())
	assert.Zero(t, classifier.count(ai.TaskCategory))
}

func TestClassifierFailureSkipsRelevance(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m4", "Your application", "..."))
	p := newTestPipeline(t, fetcher, newFakeClassifier(nil), store)

	result := p.Process(context.Background(), "m4")
	assert.Equal(t, domain.ResultSkipped, result.Kind)
	assert.Zero(t, store.calls())
}

func TestUnknownConnectionCompanyRecordsNothing(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "r", Company: "Initech"})}
	fetcher := mail.NewMemoryFetcher(message("m5", "Priya Shah accepted your invitation", "Priya Shah, Engineer"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya Shah | UNKNOWN"})
	p := newTestPipeline(t, fetcher, classifier, store)

	log, ok := p.ProcessAcceptance(context.Background(), "m5", "Priya Shah")

	assert.False(t, ok)
	assert.Empty(t, log.MessageID)
	assert.Empty(t, p.State().Logs())
	assert.Zero(t, store.calls())
}

func TestConcurrentAcceptanceRecordsOnce(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "initech", Company: "Initech"})}
	fetcher := mail.NewMemoryFetcher(message("m6", "Priya Shah accepted your invitation", "Priya Shah, Staff Engineer at Initech"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya Shah | Initech"})
	classifier.delay = 20 * time.Millisecond
	p := newTestPipeline(t, fetcher, classifier, store)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log, ok := p.ProcessAcceptance(context.Background(), "m6", "Priya Shah")
			assert.True(t, ok)
			assert.Equal(t, "m6", log.MessageID)
		}()
	}
	wg.Wait()

	logs := p.State().Logs()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "Priya Shah")
	assert.Contains(t, logs[0].Message, "Initech")
	assert.True(t, logs[0].IsCompleted)
	assert.Equal(t, "LinkedIn Sync", logs[0].EmailTime)

	record, _ := store.Get("initech")
	assert.Equal(t, records.StatusLinkedInChat, record.Status)

	updates := p.State().Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, domain.CategoryLinkedInAccepted, updates[0].Category)
	require.NotNil(t, updates[0].PersonName)
	assert.Equal(t, "Priya Shah", *updates[0].PersonName)

	// A later replay reuses the stored entry without asking the model again.
	before := classifier.count(ai.TaskConnection)
	_, ok := p.ProcessAcceptance(context.Background(), "m6", "Priya Shah")
	assert.True(t, ok)
	assert.Equal(t, before, classifier.count(ai.TaskConnection))
}

func TestProcessRoutesAcceptanceSubjects(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "initech", Company: "Initech Corp"})}
	fetcher := mail.NewMemoryFetcher(message("m7", "Priya Shah accepted your invitation", "Priya Shah"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya Shah | Initech"})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m7")

	require.Equal(t, domain.ResultConnectionFound, result.Kind)
	assert.Equal(t, "CONNECTED: Priya Shah @ Initech Corp", result.Log.Message)
	assert.Zero(t, classifier.count(ai.TaskRelevance))
}

func TestMalformedConnectionAnswerIsDropped(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{Company: "Initech"})}
	fetcher := mail.NewMemoryFetcher(message("m8", "Priya Shah accepted your invitation", "..."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya | Shah | Initech"})
	p := newTestPipeline(t, fetcher, classifier, store)

	_, ok := p.ProcessAcceptance(context.Background(), "m8", "")
	assert.False(t, ok)
	assert.Zero(t, store.calls())
}

func TestReplayDoesNotDuplicateUpdates(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "acme", Company: "Acme"})}
	fetcher := mail.NewMemoryFetcher(message("m9", "Update on your application", "Unfortunately..."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "REJECTION, not an INTERVIEW",
		ai.TaskCompany:   "\"Acme\"",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	first := p.Process(context.Background(), "m9")
	second := p.Process(context.Background(), "m9")

	assert.Equal(t, first, second)
	assert.Equal(t, domain.CategoryRejection, first.Update.Category)
	assert.Len(t, p.State().Logs(), 1)
	assert.Len(t, p.State().Updates(), 1)
	record, _ := store.Get("acme")
	assert.Equal(t, records.StatusRejected, record.Status)
}

func TestConcurrentProcessSharesOneRun(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m10", "Application received", "..."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "OTHER",
		ai.TaskCompany:   "Globex",
	})
	classifier.delay = 10 * time.Millisecond
	p := newTestPipeline(t, fetcher, classifier, store)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Process(context.Background(), "m10")
		}()
	}
	wg.Wait()

	assert.Len(t, p.State().Logs(), 1)
	assert.Len(t, p.State().Updates(), 1)
	assert.Zero(t, store.calls())
}

func TestStoreFailureIsSurfacedAsLogEntry(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(), findErr: errors.New("notion: 502 bad gateway")}
	fetcher := mail.NewMemoryFetcher(message("m11", "Interview invitation", "..."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "INTERVIEW",
		ai.TaskCompany:   "Acme",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m11")
	require.Equal(t, domain.ResultClassified, result.Kind)

	errLog, ok := p.State().Log("m11#store")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(errLog.Message, "Notion Error: "))
	assert.Contains(t, errLog.Message, "502")

	log, ok := p.State().Log("m11")
	require.True(t, ok)
	assert.False(t, log.IsCompleted)
	assert.Len(t, p.State().Updates(), 1)
}

func TestFetchFailureIsReported(t *testing.T) {
	p := newTestPipeline(t, mail.NewMemoryFetcher(), newFakeClassifier(nil), &spyStore{MemoryStore: records.NewMemoryStore()})

	result := p.Process(context.Background(), "missing")
	assert.Equal(t, domain.ResultFailed, result.Kind)
	assert.Equal(t, domain.ErrorKindFetch, result.Error)

	blank := p.Process(context.Background(), "  ")
	assert.Equal(t, domain.ErrorKindInvalidInput, blank.Error)
}

func TestUnknownCompanyFallback(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m12", "Your candidacy", "..."))
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "OTHER",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	result := p.Process(context.Background(), "m12")
	require.Equal(t, domain.ResultClassified, result.Kind)
	assert.Equal(t, "Unknown", result.Update.Company)
	assert.Equal(t, domain.CategoryOther, result.Update.Category)
}

func TestDispatchRunsEachSearchResult(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "initech", Company: "Initech"})}
	fetcher := mail.NewMemoryFetcher(
		message("a1", "Priya Shah accepted your invitation", "Priya Shah"),
		message("e1", "Application received at Globex", "..."),
	)
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskConnection: "Priya Shah | Initech",
		ai.TaskRelevance:  "TRUE",
		ai.TaskCategory:   "OTHER",
		ai.TaskCompany:    "Globex",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	require.NoError(t, p.Dispatch(context.Background(), domain.SignalMessage{
		SignalID:  "s1",
		Source:    domain.SourceProfessional,
		SearchKey: "Priya Shah",
		Query:     `"Priya Shah" "accepted your invitation" newer_than:1d`,
	}))
	require.NoError(t, p.Dispatch(context.Background(), domain.SignalMessage{
		SignalID: "s2",
		Source:   domain.SourceEmail,
		Query:    `"Application received at Globex" newer_than:1h`,
	}))

	assert.True(t, p.State().HasLog("a1"))
	assert.True(t, p.State().HasLog("e1"))
	assert.Len(t, p.State().Updates(), 2)
}

func TestReconcileBranches(t *testing.T) {
	cases := []struct {
		name       string
		category   string
		company    string
		wantStatus string
		updates    int32
		creates    int32
		records    int
	}{
		{"applied with record", "APPLIED", "Acme Corp", records.StatusApplied, 1, 0, 1},
		{"applied without record", "APPLIED", "Globex", records.StatusLinkedInChat, 0, 1, 2},
		{"interview with record", "INTERVIEW", "Acme Corp", records.StatusExamScheduled, 1, 0, 1},
		{"interview without record", "INTERVIEW", "Globex", records.StatusLinkedInChat, 0, 0, 1},
		{"rejection with record", "REJECTION", "Acme Corp", records.StatusRejected, 1, 0, 1},
		{"rejection without record", "REJECTION", "Globex", records.StatusLinkedInChat, 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "acme", Company: "Acme Corp", Status: records.StatusLinkedInChat})}
			fetcher := mail.NewMemoryFetcher(message("m20", "Update on your application", "..."))
			classifier := newFakeClassifier(map[ai.TaskKind]string{
				ai.TaskRelevance: "TRUE",
				ai.TaskCategory:  tc.category,
				ai.TaskCompany:   tc.company,
			})
			p := newTestPipeline(t, fetcher, classifier, store)

			result := p.Process(context.Background(), "m20")

			require.Equal(t, domain.ResultClassified, result.Kind)
			assert.EqualValues(t, 1, store.finds.Load())
			assert.Equal(t, tc.updates, store.updates.Load())
			assert.Equal(t, tc.creates, store.creates.Load())
			assert.Len(t, store.List(), tc.records)
			record, _ := store.Get("acme")
			assert.Equal(t, tc.wantStatus, record.Status)

			log, ok := p.State().Log("m20")
			require.True(t, ok)
			assert.True(t, log.IsCompleted)
			assert.Len(t, p.State().Updates(), 1)
		})
	}
}

func TestUnextractedCompanyLeavesTrackerUntouched(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(
		message("m21", "Thanks for applying", "..."),
		message("m22", "We received your application", "..."),
	)
	classifier := newFakeClassifier(map[ai.TaskKind]string{
		ai.TaskRelevance: "TRUE",
		ai.TaskCategory:  "APPLIED",
	})
	p := newTestPipeline(t, fetcher, classifier, store)

	for _, id := range []string{"m21", "m22"} {
		result := p.Process(context.Background(), id)
		require.Equal(t, domain.ResultClassified, result.Kind)
		require.NotNil(t, result.Update)
		assert.Equal(t, "Unknown", result.Update.Company)

		log, ok := p.State().Log(id)
		require.True(t, ok)
		assert.Equal(t, "APPLIED: Unknown", log.Message)
	}

	assert.Zero(t, store.calls())
	assert.Empty(t, store.List())
	assert.Len(t, p.State().Updates(), 2)
}

func TestAcceptanceWithUntrackedEmployerRecordsNothing(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore(records.Record{ID: "r", Company: "Initech"})}
	fetcher := mail.NewMemoryFetcher(message("m23", "Priya Shah accepted your invitation", "Priya Shah, Engineer at Hooli"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya Shah | Hooli"})
	p := newTestPipeline(t, fetcher, classifier, store)

	log, ok := p.ProcessAcceptance(context.Background(), "m23", "Priya Shah")

	assert.False(t, ok)
	assert.Empty(t, log.MessageID)
	assert.Empty(t, p.State().Logs())
	assert.Empty(t, p.State().Updates())
	assert.EqualValues(t, 1, store.finds.Load())
	assert.Zero(t, store.updates.Load())
	assert.Zero(t, store.creates.Load())
}

func TestAcceptanceUpdateFailureIsNotCompleted(t *testing.T) {
	store := &spyStore{
		MemoryStore: records.NewMemoryStore(records.Record{ID: "r", Company: "Initech"}),
		updateErr:   errors.New("notion: 429 rate limited"),
	}
	fetcher := mail.NewMemoryFetcher(message("m24", "Priya Shah accepted your invitation", "Priya Shah, Engineer at Initech"))
	classifier := newFakeClassifier(map[ai.TaskKind]string{ai.TaskConnection: "Priya Shah | Initech"})
	p := newTestPipeline(t, fetcher, classifier, store)

	log, ok := p.ProcessAcceptance(context.Background(), "m24", "Priya Shah")

	require.True(t, ok)
	assert.False(t, log.IsCompleted)
	errLog, found := p.State().Log("m24#store")
	require.True(t, found)
	assert.Contains(t, errLog.Message, "429")
}

// cancellableClassifier honors ctx like a real provider call and signals when
// the first call starts.
type cancellableClassifier struct {
	*fakeClassifier
	started chan struct{}
	once    sync.Once
}

func (c *cancellableClassifier) Complete(ctx context.Context, task ai.TaskKind, prompt string) string {
	c.once.Do(func() { close(c.started) })
	select {
	case <-ctx.Done():
		return domain.ClassifierFailure
	case <-time.After(30 * time.Millisecond):
	}
	return c.fakeClassifier.Complete(ctx, task, prompt)
}

func TestSharedRunSurvivesFirstCallerCancellation(t *testing.T) {
	store := &spyStore{MemoryStore: records.NewMemoryStore()}
	fetcher := mail.NewMemoryFetcher(message("m25", "Update from Globex", "..."))
	classifier := &cancellableClassifier{
		fakeClassifier: newFakeClassifier(map[ai.TaskKind]string{
			ai.TaskRelevance: "TRUE",
			ai.TaskCategory:  "OTHER",
			ai.TaskCompany:   "Globex",
		}),
		started: make(chan struct{}),
	}
	p := newTestPipeline(t, fetcher, classifier, store)

	callerCtx, cancel := context.WithCancel(context.Background())
	first := make(chan domain.Result, 1)
	go func() { first <- p.Process(callerCtx, "m25") }()

	<-classifier.started
	second := make(chan domain.Result, 1)
	go func() { second <- p.Process(context.Background(), "m25") }()
	cancel()

	assert.Equal(t, domain.ResultClassified, (<-first).Kind)
	assert.Equal(t, domain.ResultClassified, (<-second).Kind)
	assert.Equal(t, 1, classifier.count(ai.TaskRelevance))
}
