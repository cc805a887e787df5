package neo4jtest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/neo4j/testinstance/internal/adminapi"
	"github.com/neo4j/testinstance/internal/bootstrap"
	"github.com/neo4j/testinstance/internal/config"
	"github.com/neo4j/testinstance/internal/database"
	"github.com/neo4j/testinstance/internal/database/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stubAdmin struct {
	err error
}

func (s *stubAdmin) UserStatus(ctx context.Context, username string) (*adminapi.UserStatus, error) {
	if s.err != nil {
		return nil, s.err
	}
	required := false
	return &adminapi.UserStatus{Username: username, PasswordChangeRequired: &required}, nil
}

func (s *stubAdmin) ChangePassword(ctx context.Context, username, newPassword string) (int, error) {
	return 200, nil
}

// recordingTB captures what the fixture reports instead of failing the real test.
type recordingTB struct {
	testing.TB
	fatals   []string
	errors   []string
	cleanups []func()
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatalf(format string, args ...any) {
	r.fatals = append(r.fatals, fmt.Sprintf(format, args...))
	runtime.Goexit()
}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingTB) Cleanup(fn func()) {
	r.cleanups = append(r.cleanups, fn)
}

func (r *recordingTB) runCleanups() {
	for i := len(r.cleanups) - 1; i >= 0; i-- {
		r.cleanups[i]()
	}
}

func setupIn(s *Suite, tb *recordingTB) *Fixture {
	var fx *Fixture
	done := make(chan struct{})
	go func() {
		defer close(done)
		fx = s.Setup(tb)
	}()
	<-done
	return fx
}

func newTestSuite(admin bootstrap.AdminClient, db database.Service) *Suite {
	cfg := config.Default()
	cfg.Connect = config.RetryPolicy{MaxAttempts: 3}
	cfg.Rotate = config.RetryPolicy{MaxAttempts: 2}

	b := bootstrap.New(cfg,
		bootstrap.WithAdminClient(admin),
		bootstrap.WithConnectFunc(func(ctx context.Context, creds database.Credentials) (database.Service, error) {
			return db, nil
		}),
	)
	return NewSuite(bootstrap.NewShared(b))
}

func TestSuite_SetupPurgesAfterEachTest(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockService(ctrl)
	s := newTestSuite(&stubAdmin{}, db)

	db.EXPECT().Purge(gomock.Any()).Return(database.PurgeResult{NodesDeleted: 1}, nil).Times(2)

	var first, second *Fixture
	t.Run("first", func(t *testing.T) {
		first = s.Setup(t)
		assert.Same(t, db, first.DB())
	})
	t.Run("second", func(t *testing.T) {
		second = s.Setup(t)
	})

	assert.Same(t, first.Instance, second.Instance, "tests share one instance")
	assert.NotEqual(t, first.TestID, second.TestID)

	db.EXPECT().Close(gomock.Any()).Return(nil)
	require.NoError(t, s.Release(context.Background()))
}

func TestSuite_PurgeFailureIsReported(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockService(ctrl)
	s := newTestSuite(&stubAdmin{}, db)

	tb := &recordingTB{}
	fx := setupIn(s, tb)
	require.NotNil(t, fx)
	require.Len(t, tb.cleanups, 1)

	db.EXPECT().Purge(gomock.Any()).Return(database.PurgeResult{}, errors.New("database unavailable"))
	tb.runCleanups()

	require.Len(t, tb.errors, 1)
	assert.Contains(t, tb.errors[0], "failed to purge neo4j test database")
	assert.Contains(t, tb.errors[0], "database unavailable")
}

func TestSuite_BootstrapFailureIsFatal(t *testing.T) {
	s := newTestSuite(&stubAdmin{err: adminapi.ErrMalformedResponse}, nil)

	tb := &recordingTB{}
	fx := setupIn(s, tb)

	assert.Nil(t, fx)
	require.Len(t, tb.fatals, 1)
	assert.Contains(t, tb.fatals[0], "cannot connect to the neo4j test instance")
	assert.Empty(t, tb.cleanups, "nothing to purge without an instance")
}

func TestSuite_ReleaseRunsHooks(t *testing.T) {
	s := newTestSuite(&stubAdmin{}, nil)

	var released bool
	s.onRelease = append(s.onRelease, func(ctx context.Context) error {
		released = true
		return errors.New("container already gone")
	})

	err := s.Release(context.Background())

	assert.True(t, released)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "container already gone")
}

func TestFixture_UniqueLabel(t *testing.T) {
	fx := &Fixture{TestID: makeTestID()}

	label := fx.UniqueLabel("Node")

	assert.True(t, strings.HasPrefix(label, "Node_test_"))
	assert.NotContains(t, label, "-")
}

func TestFixture_SeedNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockService(ctrl)
	s := newTestSuite(&stubAdmin{}, db)

	inst, err := s.Instance(context.Background())
	require.NoError(t, err)
	fx := &Fixture{Instance: inst, TestID: "test_1"}

	db.EXPECT().
		ExecuteWriteQuery(gomock.Any(), "CREATE (n:`Person_test_1` $props) RETURN n", map[string]any{"props": map[string]any{"name": "Ada"}}).
		Return(nil, nil)

	label, err := fx.SeedNode(context.Background(), "Person", map[string]any{"name": "Ada"})

	require.NoError(t, err)
	assert.Equal(t, "Person_test_1", label)
}
