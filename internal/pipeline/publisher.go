package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/wikiclaim/internal/metrics"
	"github.com/ppiankov/wikiclaim/internal/model"
	"github.com/ppiankov/wikiclaim/internal/publish"
	"github.com/ppiankov/wikiclaim/internal/store"
	"github.com/ppiankov/wikiclaim/internal/wikibase"
	"github.com/ppiankov/wikiclaim/internal/worker"
)

// ErrNotPublishable means the entity failed the notability gate
var ErrNotPublishable = errors.New("entity is not publishable")

// publishSleepFunc waits between retries. Tests replace it.
var publishSleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EntityAPI creates items on a Wikibase. *publish.Client implements it.
type EntityAPI interface {
	APIURL() string
	Publish(ctx context.Context, entity *wikibase.Entity, csrfToken string) (*publish.Result, error)
}

// TokenProvider supplies CSRF tokens. *publish.TokenSource implements it.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// PublisherDeps are the collaborators of a Publisher
type PublisherDeps struct {
	API     EntityAPI
	Tokens  TokenProvider
	Store   *store.Store
	Limiter *worker.Limiter // Optional
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Publisher publishes notable entities to one target with the retry policy
// from the publish config. The store status row is the per-business lock.
type Publisher struct {
	pipeline    *Pipeline
	api         EntityAPI
	tokens      TokenProvider
	store       *store.Store
	limiter     *worker.Limiter
	metrics     *metrics.Metrics
	logger      *slog.Logger
	target      model.Target
	maxRetries  int
	backoffBase time.Duration

	group singleflight.Group
}

// NewPublisher creates a publisher for target
func NewPublisher(p *Pipeline, target model.Target, deps PublisherDeps) *Publisher {
	logger := deps.Logger
	if logger == nil {
		logger = p.logger
	}

	maxRetries := p.config.Publish.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Publisher{
		pipeline:    p,
		api:         deps.API,
		tokens:      deps.Tokens,
		store:       deps.Store,
		limiter:     deps.Limiter,
		metrics:     deps.Metrics,
		logger:      logger.With("target", string(target)),
		target:      target,
		maxRetries:  maxRetries,
		backoffBase: p.config.Publish.BackoffBase,
	}
}

// Target is the Wikibase instance written to
func (pub *Publisher) Target() model.Target {
	return pub.target
}

// Publish assesses input and, when it passes the gate, creates the item.
// The returned report always carries the assessment; Report.Publish is set
// once a publish was attempted or refused by the lock.
func (pub *Publisher) Publish(ctx context.Context, input model.Input) (*model.Report, error) {
	return pub.PublishReport(ctx, input, pub.pipeline.Assess(input))
}

// PublishReport publishes input using a report Assess already produced for
// it, so the input is not assessed a second time. A nil report is assessed
// here. The returned report is a copy; assessed is not modified.
func (pub *Publisher) PublishReport(ctx context.Context, input model.Input, assessed *model.Report) (*model.Report, error) {
	if assessed == nil {
		assessed = pub.pipeline.Assess(input)
	}
	copied := *assessed
	report := &copied
	report.Publish = nil
	if !report.Notability.IsNotable {
		return report, fmt.Errorf("%w: %s", ErrNotPublishable, strings.Join(report.Notability.Reasons, "; "))
	}

	key := string(pub.target) + "/" + input.Business.ID
	v, err, _ := pub.group.Do(key, func() (interface{}, error) {
		return pub.publishEntity(ctx, input.Business.ID, report.Subject, report.Entity)
	})
	if outcome, ok := v.(*model.PublishOutcome); ok {
		o := *outcome
		report.Publish = &o
	}
	return report, err
}

func (pub *Publisher) publishEntity(ctx context.Context, businessID, name string, entity *wikibase.Entity) (*model.PublishOutcome, error) {
	if err := pub.store.BeginPublish(ctx, businessID, name, pub.target); err != nil {
		if errors.Is(err, store.ErrAlreadyPublished) {
			outcome := &model.PublishOutcome{Target: pub.target, Status: model.StatusPublished}
			if rec, getErr := pub.store.Get(ctx, businessID, pub.target); getErr == nil {
				outcome.QID = rec.QID
				outcome.Attempts = rec.Attempts
			}
			return outcome, fmt.Errorf("publish %s: %w", businessID, err)
		}
		return &model.PublishOutcome{Target: pub.target, Status: model.StatusPublishing}, fmt.Errorf("publish %s: %w", businessID, err)
	}

	// Once sent, a write cannot be safely abandoned, so the API call and the
	// status update outlive cancellation of ctx
	detached := context.WithoutCancel(ctx)
	log := pub.logger.With("business", businessID)

	var (
		lastErr        error
		attempt        int
		tokenRefreshed bool
		retries        int
	)

	for {
		attempt++
		if pub.limiter != nil {
			if err := pub.limiter.Wait(ctx, pub.api.APIURL()); err != nil {
				lastErr = err
				attempt--
				break
			}
		}

		result, err := pub.attempt(ctx, detached, businessID, attempt, entity)
		if err == nil {
			if markErr := pub.store.MarkPublished(detached, businessID, pub.target, result.QID, attempt); markErr != nil {
				// The item exists remotely; report the QID even if it could not be stored
				log.Error("item created but status not saved", "qid", result.QID, "error", markErr)
				return &model.PublishOutcome{Target: pub.target, Status: model.StatusPublished, QID: result.QID, Attempts: attempt},
					fmt.Errorf("save qid %s for %s: %w", result.QID, businessID, markErr)
			}
			log.Info("published", "qid", result.QID, "attempts", attempt)
			return &model.PublishOutcome{Target: pub.target, Status: model.StatusPublished, QID: result.QID, Attempts: attempt}, nil
		}
		lastErr = err

		if publish.IsTokenError(err) && !tokenRefreshed {
			log.Warn("csrf token rejected, refreshing", "attempt", attempt)
			pub.tokens.Invalidate()
			tokenRefreshed = true
			continue
		}

		if publish.IsRetryable(err) && retries < pub.maxRetries {
			delay := backoffDelay(pub.backoffBase, retries, publish.RetryAfterOf(err))
			retries++
			log.Warn("transient publish failure, retrying", "attempt", attempt, "delay", delay, "error", err)
			if sleepErr := publishSleepFunc(ctx, delay); sleepErr != nil {
				lastErr = fmt.Errorf("%w (after %v)", sleepErr, err)
				break
			}
			continue
		}
		break
	}

	kind := errorKind(lastErr)
	if markErr := pub.store.MarkError(detached, businessID, pub.target, lastErr.Error(), attempt); markErr != nil {
		log.Error("failed to save publish error", "error", markErr)
	}
	log.Error("publish failed", "attempts", attempt, "kind", kind, "error", lastErr)

	return &model.PublishOutcome{
		Target:    pub.target,
		Status:    model.StatusError,
		ErrorKind: kind,
		Error:     lastErr.Error(),
		Attempts:  attempt,
	}, fmt.Errorf("publish %s: %w", businessID, lastErr)
}

// attempt performs one token fetch plus API call and logs it
func (pub *Publisher) attempt(ctx, detached context.Context, businessID string, number int, entity *wikibase.Entity) (*publish.Result, error) {
	started := time.Now()

	var result *publish.Result
	token, err := pub.tokens.Token(ctx)
	if err == nil {
		result, err = pub.api.Publish(detached, entity, token)
	}
	finished := time.Now()

	a := store.Attempt{
		BusinessID: businessID,
		Target:     pub.target,
		Number:     number,
		Outcome:    store.OutcomeSuccess,
		StartedAt:  started,
		FinishedAt: finished,
	}
	label := store.OutcomeSuccess
	if err != nil {
		a.Outcome = store.OutcomeFailure
		a.ErrorKind = errorKind(err)
		a.Error = err.Error()
		label = a.ErrorKind
	} else {
		a.QID = result.QID
	}

	if _, recErr := pub.store.RecordAttempt(detached, a); recErr != nil {
		pub.logger.Warn("failed to record publish attempt", "business", businessID, "error", recErr)
	}
	pub.metrics.ObservePublishAttempt(string(pub.target), label, finished.Sub(started))

	return result, err
}

// backoffDelay is base*2^retry, raised to the server's Retry-After when longer
func backoffDelay(base time.Duration, retry int, retryAfter time.Duration) time.Duration {
	delay := base << uint(retry)
	if retryAfter > delay {
		return retryAfter
	}
	return delay
}

func errorKind(err error) string {
	if kind := publish.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return string(publish.KindFatal)
}
