package sweep

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/promo-sweeper/internal/core"
	"github.com/mikey/promo-sweeper/internal/gate"
	"github.com/mikey/promo-sweeper/internal/protected"
	"github.com/mikey/promo-sweeper/internal/session"
)

type fakeMail struct {
	mu       sync.Mutex
	emails   map[string]*core.Email
	order    []string
	trashed  []string
	trashErr error
	// trashLimit, when > 0, trashes that many ids per call before failing with trashErr
	trashLimit int
	fetchErr   map[string]error
}

func newFakeMail() *fakeMail {
	return &fakeMail{emails: make(map[string]*core.Email), fetchErr: make(map[string]error)}
}

func (m *fakeMail) add(id, sender string, starred bool) {
	m.emails[id] = &core.Email{
		EmailMetadata: core.EmailMetadata{ID: id, Sender: sender, Starred: starred},
		Subject:       "subject " + id,
	}
	m.order = append(m.order, id)
}

func (m *fakeMail) List(_ context.Context, _ string, max int) ([]string, error) {
	ids := append([]string(nil), m.order...)
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (m *fakeMail) Fetch(_ context.Context, id string) (*core.Email, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fetchErr[id]; err != nil {
		return nil, err
	}
	e, ok := m.emails[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *fakeMail) Trash(_ context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.trashErr == nil {
		m.trashed = append(m.trashed, ids...)
		return ids, nil
	}
	n := m.trashLimit
	if n > len(ids) {
		n = len(ids)
	}
	done := append([]string(nil), ids[:n]...)
	m.trashed = append(m.trashed, done...)
	return done, m.trashErr
}

type fakeClassifier struct {
	results map[string]*core.ClassificationResult
	onCall  func(id string)
}

func (c *fakeClassifier) Classify(_ context.Context, email *core.Email) (*core.ClassificationResult, error) {
	if c.onCall != nil {
		c.onCall(email.ID)
	}
	r, ok := c.results[email.ID]
	if !ok {
		return nil, errors.New("oracle unavailable")
	}
	copied := *r
	return &copied, nil
}

type fakeRepo struct {
	mu    sync.Mutex
	saved map[string]*core.DecisionResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{saved: make(map[string]*core.DecisionResult)}
}

func (r *fakeRepo) Save(_ context.Context, d *core.DecisionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[d.MessageID] = d
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id string) (*core.DecisionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.saved[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return d, nil
}

func (r *fakeRepo) ListByDecision(context.Context, core.Decision) ([]*core.DecisionResult, error) {
	return nil, nil
}

func (r *fakeRepo) SetGroundTruth(context.Context, string, core.Label) error { return nil }

func (r *fakeRepo) LabeledOutcomes(context.Context) ([]core.LabeledOutcome, error) { return nil, nil }

func (r *fakeRepo) Cleanup(context.Context) error { return nil }

type fakeNotifier struct {
	sessionID string
	flagged   []*core.DecisionResult
}

func (n *fakeNotifier) NotifyFlagged(_ context.Context, sessionID string, flagged []*core.DecisionResult) error {
	n.sessionID = sessionID
	n.flagged = flagged
	return nil
}

type fixture struct {
	mail       *fakeMail
	classifier *fakeClassifier
	repo       *fakeRepo
	notifier   *fakeNotifier
	dir        string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mail := newFakeMail()
	mail.add("approve-1", "deals@shop-example.com", false)
	mail.add("protected", "offers@zerodha.com", false)
	mail.add("flag-1", "news@shop-example.com", false)
	mail.add("starred", "deals@shop-example.com", true)
	mail.add("personal", "friend@example.org", false)
	mail.add("approve-2", "sale@store-example.net", false)

	promo := func(conf float64) *core.ClassificationResult {
		return &core.ClassificationResult{Label: core.LabelPromotional, Confidence: conf, Verified: true}
	}
	classifier := &fakeClassifier{results: map[string]*core.ClassificationResult{
		"approve-1": promo(96),
		"protected": promo(99),
		"flag-1":    promo(78),
		"starred":   promo(97),
		"personal":  {Label: core.LabelPersonalSafe, Confidence: 95, Verified: true},
		"approve-2": promo(91),
	}}

	return &fixture{
		mail:       mail,
		classifier: classifier,
		repo:       newFakeRepo(),
		notifier:   &fakeNotifier{},
		dir:        t.TempDir(),
	}
}

func (f *fixture) service(t *testing.T, opts Options) *Service {
	t.Helper()
	matcher, err := protected.NewMatcher(protected.MarketAll, protected.DefaultEntries(), nil)
	require.NoError(t, err)
	evaluator, err := gate.NewEvaluator(matcher, gate.DefaultTierClassifier(), gate.Options{
		DeleteThreshold: gate.DefaultDeleteThreshold,
		HumanReview:     true,
	}, nil)
	require.NoError(t, err)
	tracker, err := session.NewTracker(f.dir, nil)
	require.NoError(t, err)
	return NewService(f.mail, f.classifier, evaluator, tracker, f.repo, f.notifier, opts, nil)
}

func TestRunDryRunDecidesEverything(t *testing.T) {
	f := newFixture(t)

	report, err := f.service(t, Options{BatchSize: 2, Workers: 3}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Completed)
	assert.False(t, report.Delete)
	assert.NotEmpty(t, report.ArchivePath)
	assert.Equal(t, 6, report.Found)
	assert.Equal(t, 6, report.Decided)
	assert.Equal(t, 2, report.Approved)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, 3, report.Rejected)
	assert.Equal(t, 0, report.Trashed)
	assert.Empty(t, f.mail.trashed)
	assert.Len(t, f.repo.saved, 6)

	assert.Equal(t, core.DecisionRejected, f.repo.saved["protected"].Decision)
	assert.Equal(t, core.DecisionRejected, f.repo.saved["starred"].Decision)
	assert.Equal(t, core.DecisionFlagged, f.repo.saved["flag-1"].Decision)

	require.Len(t, f.notifier.flagged, 1)
	assert.Equal(t, "flag-1", f.notifier.flagged[0].MessageID)
	assert.Equal(t, report.SessionID, f.notifier.sessionID)
}

func TestRunTrashesOnlyApproved(t *testing.T) {
	f := newFixture(t)

	report, err := f.service(t, Options{Delete: true, BatchSize: 4}).Run(context.Background())
	require.NoError(t, err)

	trashed := append([]string(nil), f.mail.trashed...)
	sort.Strings(trashed)
	assert.Equal(t, []string{"approve-1", "approve-2"}, trashed)
	assert.Equal(t, 2, report.Trashed)
	assert.True(t, report.Delete)
}

func TestRunSkipsFailedMessagesForResume(t *testing.T) {
	f := newFixture(t)
	saved := f.classifier.results["approve-2"]
	delete(f.classifier.results, "approve-2")
	f.mail.fetchErr["personal"] = errors.New("timeout")

	report, err := f.service(t, Options{Delete: true, Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 4, report.Decided)
	assert.False(t, report.Completed)
	assert.NotContains(t, f.repo.saved, "approve-2")
	assert.NotContains(t, f.repo.saved, "personal")

	f.classifier.results["approve-2"] = saved
	delete(f.mail.fetchErr, "personal")

	again, err := f.service(t, Options{Delete: true, Resume: true}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, report.SessionID, again.SessionID)
	assert.Equal(t, 4, again.Skipped)
	assert.Equal(t, 2, again.Decided)
	assert.True(t, again.Completed)
	assert.Contains(t, f.mail.trashed, "approve-2")
}

func TestRunTrashFailureLeavesApprovedUnprocessed(t *testing.T) {
	f := newFixture(t)
	f.mail.trashErr = errors.New("quota exceeded")

	report, err := f.service(t, Options{Delete: true, BatchSize: 6, Resume: true}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Trashed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 4, report.Decided)
	assert.False(t, report.Completed)

	f.mail.trashErr = nil
	again, err := f.service(t, Options{Delete: true, BatchSize: 6, Resume: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, again.Trashed)
	assert.True(t, again.Completed)
}

func TestRunPartialTrashFailureCountsTrashedMessages(t *testing.T) {
	f := newFixture(t)
	f.mail.trashErr = errors.New("rate limited")
	f.mail.trashLimit = 1

	report, err := f.service(t, Options{Delete: true, BatchSize: 6, Resume: true}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"approve-1"}, f.mail.trashed)
	assert.Equal(t, 1, report.Trashed)
	assert.Equal(t, 1, report.Approved)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 5, report.Decided)
	assert.False(t, report.Completed)

	tracker, err := session.NewTracker(f.dir, nil)
	require.NoError(t, err)
	require.True(t, tracker.Load())
	assert.True(t, tracker.IsProcessed("approve-1"))
	assert.False(t, tracker.IsProcessed("approve-2"))

	// the trashed message no longer shows up in the mailbox
	f.mail.order = []string{"protected", "flag-1", "starred", "personal", "approve-2"}
	f.mail.trashErr = nil
	again, err := f.service(t, Options{Delete: true, BatchSize: 6, Resume: true}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Completed)
	assert.Equal(t, 1, again.Trashed)
	assert.Equal(t, 4, again.Skipped)
	assert.Equal(t, []string{"approve-1", "approve-2"}, f.mail.trashed)

	tracker, err = session.NewTracker(f.dir, nil)
	require.NoError(t, err)
	assert.False(t, tracker.CanResume())
}

func TestRunResumesAfterInterruption(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	seen := map[string]int{}
	f.classifier.onCall = func(id string) {
		mu.Lock()
		defer mu.Unlock()
		seen[id]++
		// cancel while the first batch is in flight; the batch still completes
		if id == "protected" {
			cancel()
		}
	}

	first, err := f.service(t, Options{BatchSize: 2, Workers: 1, Resume: true}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, first.Completed)

	tracker, err := session.NewTracker(f.dir, nil)
	require.NoError(t, err)
	require.True(t, tracker.CanResume())

	second, err := f.service(t, Options{BatchSize: 2, Workers: 1, Resume: true}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.SessionID, second.SessionID)
	assert.True(t, second.Completed)
	assert.Equal(t, first.Decided, second.Skipped)
	assert.Equal(t, 6, first.Decided+second.Decided)

	for id, n := range seen {
		if f.repo.saved[id] != nil && n > 1 {
			assert.Fail(t, "message classified twice after being processed", id)
		}
	}
	assert.Len(t, f.repo.saved, 6)
	assert.False(t, tracker.CanResume())
}

func TestRunWithoutResumeStartsFresh(t *testing.T) {
	f := newFixture(t)
	tracker, err := session.NewTracker(f.dir, nil)
	require.NoError(t, err)
	oldID, err := tracker.Start(session.Parameters{Query: "old"})
	require.NoError(t, err)
	require.NoError(t, tracker.MarkProcessed("approve-1"))
	require.NoError(t, tracker.Flush())

	report, err := f.service(t, Options{Resume: false}).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Resumed)
	assert.NotEqual(t, oldID, report.SessionID)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 6, report.Decided)
}
