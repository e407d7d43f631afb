package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/ruanwenjun/spark/internal/adapt"
	"github.com/ruanwenjun/spark/internal/analyzer"
	"github.com/ruanwenjun/spark/internal/ir"
	"github.com/ruanwenjun/spark/internal/store"
)

var (
	// ErrAlreadySubmitted is returned when the same *ir.Relation is submitted
	// twice in one session. A plan is frozen once transmitted; build a new
	// tree for a new submission.
	ErrAlreadySubmitted = errors.New("relation already submitted in this session")

	// ErrNilRelation is returned by Submit for a nil plan.
	ErrNilRelation = errors.New("nil relation")
)

// Submission is the result of Submit: what was stored and how the planner
// judged it.
type Submission struct {
	store.Submission
	Outcome  store.Outcome
	Analysis analyzer.Result
}

// Accepted reports whether the planner accepted the plan.
func (s Submission) Accepted() bool {
	return s.Outcome.Status == store.StatusAccepted
}

// Session is a client's submission pipeline. Each submitted plan is
// validated, encoded once, hashed, stamped with a seq and an operation id,
// and appended to the store together with its planning outcome.
//
// Thread-safety: Submit may be called from any goroutine; submissions are
// serialized so seq order matches store order.
type Session struct {
	id     string
	store  *store.Store
	clock  *Clock
	ids    IDGenerator
	logger *slog.Logger

	mu        sync.Mutex
	submitted map[*ir.Relation]string // relation -> operation id
	quota     *quotaEnforcer
}

// Option configures a Session.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	maxSubmissions int
}

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMaxSubmissions sets the submission quota for the session.
//
// Default: 10000 (DefaultMaxSubmissions)
func WithMaxSubmissions(n int) Option {
	return func(c *config) {
		c.maxSubmissions = n
	}
}

// New opens session id on s. An existing session resumes from its last
// stored seq, and its earlier submissions count toward the quota.
func New(ctx context.Context, s *store.Store, id string, ids IDGenerator, opts ...Option) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}

	cfg := config{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSubmissions: DefaultMaxSubmissions,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	state, err := s.GetSessionState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}

	sess := &Session{
		id:        id,
		store:     s,
		clock:     NewClockAt(state.LastSeq),
		ids:       ids,
		logger:    cfg.logger.With("session", id),
		submitted: make(map[*ir.Relation]string),
		quota:     newQuotaEnforcer(cfg.maxSubmissions, len(state.Submissions)),
	}

	if state.PendingCount > 0 {
		sess.logger.Warn("session has submissions without an outcome",
			"pending", state.PendingCount,
		)
	}

	return sess, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// LastSeq returns the seq of the most recent submission.
func (s *Session) LastSeq() int64 {
	return s.clock.Current()
}

// Submit transmits rel. Structurally invalid plans are refused with
// *ir.InvalidPlanError and nothing is stored. Valid plans are stored and
// then analyzed; a plan with semantic conflicts is still logged, with a
// rejected outcome, and Submit returns no error for it.
func (s *Session) Submit(ctx context.Context, rel *ir.Relation) (Submission, error) {
	if rel == nil {
		return Submission{}, ErrNilRelation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if opID, ok := s.submitted[rel]; ok {
		return Submission{}, fmt.Errorf("%w (operation %s)", ErrAlreadySubmitted, opID)
	}
	if err := s.quota.check(s.id); err != nil {
		s.logger.Error("submission quota exceeded", "limit", s.quota.max)
		return Submission{}, err
	}

	data, err := ir.Marshal(rel)
	if err != nil {
		return Submission{}, fmt.Errorf("submit: %w", err)
	}

	sub := store.Submission{
		OperationID:   s.ids.Generate(),
		SessionID:     s.id,
		Seq:           s.clock.Next(),
		PlanID:        ir.PlanIDFromBytes(data),
		Plan:          data,
		RootKind:      rel.WhichOneof(),
		SourceInfo:    rel.SourceInfo(),
		SchemaVersion: ir.SchemaVersion,
		ToolVersion:   ir.ToolVersion,
	}
	if err := s.store.WriteSubmission(ctx, sub); err != nil {
		return Submission{}, fmt.Errorf("submit: %w", err)
	}
	s.submitted[rel] = sub.OperationID
	s.quota.consume()

	s.logger.Info("plan submitted",
		"operation", sub.OperationID,
		"seq", sub.Seq,
		"plan_id", sub.PlanID,
		"root", sub.RootKind,
		"bytes", len(data),
	)

	result := analyzer.Analyze(rel)
	out := outcomeFor(sub, result)
	if err := s.store.WriteOutcome(ctx, out); err != nil {
		return Submission{}, fmt.Errorf("submit: %w", err)
	}

	if out.Status == store.StatusRejected {
		s.logger.Warn("plan rejected",
			"operation", sub.OperationID,
			"codes", out.Codes,
		)
	} else if len(result.Warnings) > 0 {
		s.logger.Debug("plan accepted with warnings",
			"operation", sub.OperationID,
			"codes", out.Codes,
		)
	}

	return Submission{Submission: sub, Outcome: out, Analysis: result}, nil
}

// outcomeFor records conflict codes first, then warning codes.
func outcomeFor(sub store.Submission, result analyzer.Result) store.Outcome {
	code := func(d analyzer.Diagnostic) string { return d.Code }
	codes := slices.Collect(adapt.Map(
		slices.Values(slices.Concat(result.Conflicts, result.Warnings)), code))

	out := store.Outcome{
		OperationID: sub.OperationID,
		Status:      store.StatusAccepted,
		Codes:       codes,
		Seq:         sub.Seq,
	}
	if err := result.Err(); err != nil {
		out.Status = store.StatusRejected
		out.Message = err.Error()
	}
	return out
}
