package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facegate/internal/biometric"
	"github.com/saturnino-fabrica-de-software/facegate/internal/capture"
	"github.com/saturnino-fabrica-de-software/facegate/internal/domain"
	"github.com/saturnino-fabrica-de-software/facegate/internal/provider"
)

const testDimension = 128

func axis(x float64) biometric.FeatureVector {
	v := make(biometric.FeatureVector, testDimension)
	v[0] = x
	return v
}

func testMatcher(t *testing.T) *biometric.Matcher {
	t.Helper()

	m, err := biometric.NewMatcher(biometric.Profile{
		Name:      "embedding-128",
		Method:    biometric.MethodEmbedding,
		Dimension: testDimension,
		Threshold: 0.6,
	})
	require.NoError(t, err)
	return m
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDirectory is an in-memory directory with failure injection.
type memDirectory struct {
	mu      sync.Mutex
	users   []domain.EnrolledUser
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func newMemDirectory(users ...domain.EnrolledUser) *memDirectory {
	return &memDirectory{users: users}
}

func (d *memDirectory) LoadAll(_ context.Context) ([]domain.EnrolledUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.loads++
	if d.loadErr != nil {
		return nil, d.loadErr
	}
	return cloneUsers(d.users), nil
}

func (d *memDirectory) SaveAll(_ context.Context, users []domain.EnrolledUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.saves++
	if d.saveErr != nil {
		return d.saveErr
	}
	d.users = cloneUsers(users)
	return nil
}

func (d *memDirectory) snapshot() []domain.EnrolledUser {
	d.mu.Lock()
	defer d.mu.Unlock()

	return cloneUsers(d.users)
}

func (d *memDirectory) setUsers(users ...domain.EnrolledUser) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users = users
}

func (d *memDirectory) saveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.saves
}

func cloneUsers(users []domain.EnrolledUser) []domain.EnrolledUser {
	out := make([]domain.EnrolledUser, len(users))
	for i, u := range users {
		out[i] = u
		if u.FaceVector != nil {
			out[i].FaceVector = append([]float64(nil), u.FaceVector...)
		}
	}
	return out
}

// recordingEvents keeps appended events and can fail on demand.
type recordingEvents struct {
	mu     sync.Mutex
	events []domain.MatchEvent
	err    error
}

func (r *recordingEvents) Append(_ context.Context, event domain.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	return r.err
}

func (r *recordingEvents) all() []domain.MatchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.MatchEvent(nil), r.events...)
}

// countingExtractor returns whatever next() yields and tracks how many
// calls ran and how many overlapped.
type countingExtractor struct {
	next        func(call int) ([]biometric.FeatureVector, error)
	calls       atomic.Int32
	active      atomic.Int32
	maxParallel atomic.Int32
}

func (c *countingExtractor) Extract(ctx context.Context, _ []byte) ([]biometric.FeatureVector, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)

	for {
		peak := c.maxParallel.Load()
		if n <= peak || c.maxParallel.CompareAndSwap(peak, n) {
			break
		}
	}

	call := int(c.calls.Add(1))
	return c.next(call)
}

func always(vectors ...biometric.FeatureVector) func(int) ([]biometric.FeatureVector, error) {
	return func(int) ([]biometric.FeatureVector, error) {
		return vectors, nil
	}
}

var _ provider.Extractor = (*countingExtractor)(nil)

var errSinkDown = errors.New("sink down")

type fixture struct {
	dir       *memDirectory
	events    *recordingEvents
	devices   *capture.Exclusive
	extractor *countingExtractor
	deps      Deps
}

func newFixture(t *testing.T, next func(int) ([]biometric.FeatureVector, error), users ...domain.EnrolledUser) *fixture {
	t.Helper()

	f := &fixture{
		dir:       newMemDirectory(users...),
		events:    &recordingEvents{},
		devices:   capture.NewExclusive(),
		extractor: &countingExtractor{next: next},
	}
	f.deps = Deps{
		Matcher:   testMatcher(t),
		Extractor: f.extractor,
		Directory: f.dir,
		Events:    f.events,
		Devices:   f.devices,
		Logger:    quietLogger(),
	}
	return f
}

func fastVerify() VerifyConfig {
	return VerifyConfig{Deadline: 300 * time.Millisecond, PollInterval: 5 * time.Millisecond}
}

func fastEnroll(confirm bool) EnrollConfig {
	return EnrollConfig{Deadline: 2 * time.Second, PollInterval: 5 * time.Millisecond, RequireConfirmation: confirm}
}

func frameDevice() capture.Device {
	return capture.NewReplay([]byte("frame"))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func alice() domain.EnrolledUser {
	return domain.EnrolledUser{Username: "alice", FullName: "Alice", Credential: "pw", FaceVector: axis(0.3), FaceMethod: "embedding"}
}

func bob() domain.EnrolledUser {
	return domain.EnrolledUser{Username: "bob", FullName: "Bob", Credential: "pw", FaceVector: axis(0.8), FaceMethod: "embedding"}
}
