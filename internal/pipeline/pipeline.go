// Package pipeline turns a mailbox message into tracker updates and agent log entries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iago/career-agent/internal/ai"
	"github.com/iago/career-agent/internal/classify"
	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/mail"
	"github.com/iago/career-agent/internal/policy"
	"github.com/iago/career-agent/internal/records"
	"github.com/iago/career-agent/internal/state"
)

const (
	clockLayout      = "15:04"
	linkedInSyncTime = "LinkedIn Sync"
	storeLogSuffix   = "#store"
)

// Classifier answers a prompt, returning domain.ClassifierFailure when it cannot.
type Classifier interface {
	Complete(ctx context.Context, task ai.TaskKind, prompt string) string
}

type Dependencies struct {
	Fetcher    mail.Fetcher
	Classifier Classifier
	Store      records.Store
	State      *state.AgentState
	Logger     *logging.Logger
	Now        func() time.Time
	Location   *time.Location
	// SearchLimit caps how many messages one signal's search may return.
	SearchLimit int64
	// RunTimeout bounds one shared run. Runs are detached from the caller's
	// cancellation because concurrent callers for the same id share them.
	RunTimeout time.Duration
}

type Pipeline struct {
	fetcher     mail.Fetcher
	classifier  Classifier
	store       records.Store
	state       *state.AgentState
	logger      *logging.Logger
	now         func() time.Time
	location    *time.Location
	searchLimit int64
	runTimeout  time.Duration

	flights singleflight.Group
}

func New(deps Dependencies) (*Pipeline, error) {
	if deps.Fetcher == nil || deps.Classifier == nil || deps.Store == nil {
		return nil, errors.New("pipeline: fetcher, classifier and store are required")
	}
	if deps.State == nil {
		deps.State = state.New()
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.SearchLimit <= 0 {
		deps.SearchLimit = 3
	}
	if deps.RunTimeout <= 0 {
		deps.RunTimeout = 2 * time.Minute
	}
	return &Pipeline{
		fetcher:     deps.Fetcher,
		classifier:  deps.Classifier,
		store:       deps.Store,
		state:       deps.State,
		logger:      deps.Logger,
		now:         deps.Now,
		location:    deps.Location,
		searchLimit: deps.SearchLimit,
		runTimeout:  deps.RunTimeout,
	}, nil
}

func (p *Pipeline) State() *state.AgentState {
	return p.state
}

// Process classifies one message and reconciles the tracker. Concurrent calls
// for the same message id share a single run.
func (p *Pipeline) Process(ctx context.Context, messageID string) domain.Result {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.Failed(messageID, domain.ErrorKindInvalidInput, errors.New("message id is required"))
	}
	value, _, _ := p.flights.Do("process:"+messageID, func() (any, error) {
		runCtx, cancel := p.detach(ctx)
		defer cancel()
		return p.process(runCtx, messageID), nil
	})
	return value.(domain.Result)
}

func (p *Pipeline) process(ctx context.Context, messageID string) domain.Result {
	logger := p.logger.With("message_id", messageID)

	meta, err := p.fetcher.GetMetadata(ctx, messageID)
	if err != nil {
		logger.Warn("metadata fetch failed", "error", err)
		return domain.Failed(messageID, domain.ErrorKindFetch, err)
	}

	if classify.IsAcceptance(meta.Subject) {
		searchKey := classify.AcceptedPersonName(meta.Subject, "")
		if log, ok := p.ProcessAcceptance(ctx, messageID, searchKey); ok {
			return domain.ConnectionFound(messageID, log)
		}
		return domain.Skipped(messageID, "no tracked connection")
	}

	if !classify.IsRelevant(p.classifier.Complete(ctx, ai.TaskRelevance, classify.RelevancePrompt(meta.Subject))) {
		logger.Debug("message not career related", "from", policy.MaskAddress(meta.From))
		return domain.Skipped(messageID, "not career related")
	}

	full, err := p.fetcher.GetFull(ctx, messageID)
	if err != nil {
		logger.Warn("message fetch failed", "error", err)
		return domain.Failed(messageID, domain.ErrorKindFetch, err)
	}
	body := policy.MaskText(full.BodyText())

	category := classify.ParseCategory(
		p.classifier.Complete(ctx, ai.TaskCategory, classify.CategoryPrompt(meta.Subject, body)),
	)
	company := classify.CleanCompany(
		p.classifier.Complete(ctx, ai.TaskCompany, classify.CompanyPrompt(meta.Subject, body)),
	)

	now := p.now().In(p.location)
	entry := domain.AgentLog{
		Message:          fmt.Sprintf("%s: %s", category, company),
		NotificationTime: now.Format(clockLayout),
		EmailTime:        p.emailTime(meta),
		MessageID:        messageID,
		IsCompleted:      true,
	}

	switch {
	case category.Reconcilable() && company == classify.UnknownCompany:
		logger.Warn("company not extracted, tracker left untouched", "category", category)
	case category.Reconcilable():
		pending := entry
		pending.Message = fmt.Sprintf("SYNCING %s: %s", category, company)
		pending.IsCompleted = false
		p.state.UpsertLog(pending)

		displayName, ok := p.reconcile(ctx, messageID, category, company, meta.Subject, now)
		entry.Message = fmt.Sprintf("%s: %s", category, displayName)
		entry.IsCompleted = ok
	}

	update := domain.CareerUpdate{
		Company:   company,
		Subject:   meta.Subject,
		Category:  category,
		Timestamp: now.Format(clockLayout),
	}
	if added := p.state.RecordOutcome(entry, update); !added {
		logger.Debug("replayed message, feed unchanged")
	}
	logger.Info("message classified", "category", category, "company", company, "completed", entry.IsCompleted)
	return domain.Classified(messageID, update)
}

// reconcile applies the category to the tracker. It returns the name to show
// and whether every store call succeeded.
func (p *Pipeline) reconcile(
	ctx context.Context,
	messageID string,
	category domain.Category,
	company string,
	subject string,
	now time.Time,
) (string, bool) {
	ok := true
	match, err := p.store.FindMatch(ctx, company)
	if err != nil {
		p.storeFailure(messageID, "find match", err)
		ok = false
	}
	displayName := match.DisplayName(company)

	var (
		op       string
		storeErr error
	)
	switch {
	case category == domain.CategoryApplied && !match.Found():
		op, storeErr = "create record", p.store.CreateRecord(ctx, company, subject, now)
	case category == domain.CategoryApplied:
		op, storeErr = "update status", p.store.UpdateStatus(ctx, *match.PageID, records.StatusApplied)
	case category == domain.CategoryInterview && match.Found():
		op, storeErr = "update status", p.store.UpdateStatus(ctx, *match.PageID, records.StatusExamScheduled)
	case category == domain.CategoryRejection && match.Found():
		op, storeErr = "update status", p.store.UpdateStatus(ctx, *match.PageID, records.StatusRejected)
	default:
		p.logger.Debug("no tracker record to reconcile", "message_id", messageID, "category", category, "company", company)
	}
	if storeErr != nil {
		p.storeFailure(messageID, op, storeErr)
		ok = false
	}
	return displayName, ok
}

// ProcessAcceptance records a newly accepted connection whose employer is in
// the tracker. It reports false when nothing was recorded.
func (p *Pipeline) ProcessAcceptance(ctx context.Context, messageID, searchKey string) (domain.AgentLog, bool) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.AgentLog{}, false
	}
	type outcome struct {
		log domain.AgentLog
		ok  bool
	}
	value, _, _ := p.flights.Do("accept:"+messageID, func() (any, error) {
		runCtx, cancel := p.detach(ctx)
		defer cancel()
		log, ok := p.processAcceptance(runCtx, messageID, searchKey)
		return outcome{log: log, ok: ok}, nil
	})
	result := value.(outcome)
	return result.log, result.ok
}

func (p *Pipeline) processAcceptance(ctx context.Context, messageID, searchKey string) (domain.AgentLog, bool) {
	logger := p.logger.With("message_id", messageID, "search_key", searchKey)

	if existing, ok := p.state.Log(messageID); ok && existing.EmailTime == linkedInSyncTime {
		return existing, true
	}

	full, err := p.fetcher.GetFull(ctx, messageID)
	if err != nil {
		logger.Warn("acceptance fetch failed", "error", err)
		return domain.AgentLog{}, false
	}
	body := policy.MaskText(full.BodyText())

	answer := p.classifier.Complete(ctx, ai.TaskConnection, classify.ConnectionPrompt(body, searchKey))
	connection, err := classify.ParseConnection(answer)
	if err != nil {
		logger.Debug("connection answer dropped", "answer", answer, "error", err)
		return domain.AgentLog{}, false
	}
	if !connection.KnownCompany() {
		logger.Debug("connection employer unknown", "name", connection.Name)
		return domain.AgentLog{}, false
	}

	match, err := p.store.FindMatch(ctx, connection.Company)
	if err != nil {
		p.storeFailure(messageID, "find match", err)
	}
	if !match.Found() {
		logger.Debug("connection employer not tracked", "company", connection.Company)
		return domain.AgentLog{}, false
	}

	synced := true
	if err := p.store.UpdateStatus(ctx, *match.PageID, records.StatusLinkedInChat); err != nil {
		p.storeFailure(messageID, "update status", err)
		synced = false
	}

	displayName := match.DisplayName(connection.Company)
	now := p.now().In(p.location)
	entry := domain.AgentLog{
		Message:          fmt.Sprintf("CONNECTED: %s @ %s", connection.Name, displayName),
		NotificationTime: now.Format(clockLayout),
		EmailTime:        linkedInSyncTime,
		MessageID:        messageID,
		IsCompleted:      synced,
	}
	personName := connection.Name
	update := domain.CareerUpdate{
		Company:    displayName,
		Subject:    full.Subject,
		Category:   domain.CategoryLinkedInAccepted,
		Timestamp:  now.Format(clockLayout),
		PersonName: &personName,
	}

	if !p.state.RecordConnection(entry, update) {
		existing, _ := p.state.Log(messageID)
		return existing, true
	}
	logger.Info("connection recorded", "name", connection.Name, "company", displayName)
	return entry, true
}

// Dispatch resolves a routed signal into message ids and runs each through the
// matching flow, one after the other.
func (p *Pipeline) Dispatch(ctx context.Context, signal domain.SignalMessage) error {
	ids, err := p.fetcher.Search(ctx, signal.Query, p.searchLimit)
	if err != nil {
		return fmt.Errorf("search %q: %w", signal.Query, err)
	}
	if len(ids) == 0 {
		p.logger.Info("signal matched no messages", "signal_id", signal.SignalID, "query", signal.Query)
		return nil
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if signal.Source == domain.SourceProfessional {
			p.ProcessAcceptance(ctx, id, signal.SearchKey)
			continue
		}
		result := p.Process(ctx, id)
		p.logger.Debug("signal message processed", "signal_id", signal.SignalID, "message_id", id, "kind", result.Kind)
	}
	return nil
}

func (p *Pipeline) storeFailure(messageID, op string, err error) {
	p.logger.Error("tracker call failed", "message_id", messageID, "op", op, "error", err)
	p.state.UpsertLog(domain.AgentLog{
		Message:          "Notion Error: " + err.Error(),
		NotificationTime: p.now().In(p.location).Format(clockLayout),
		EmailTime:        op,
		MessageID:        messageID + storeLogSuffix,
	})
}

// detach keeps the caller's values but not its cancellation, so one caller
// going away does not fail the run for others waiting on the same flight.
func (p *Pipeline) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.runTimeout)
}

func (p *Pipeline) emailTime(meta mail.Metadata) string {
	if meta.InternalDate.IsZero() {
		return ""
	}
	return meta.InternalDate.In(p.location).Format(clockLayout)
}
