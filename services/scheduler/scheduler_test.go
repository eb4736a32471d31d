package schedsvc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	logsvc "github.com/trezcool/darasa/services/logger"
)

type releaserMock struct {
	calls     int32
	olderThan time.Duration
	err       error
}

func (r *releaserMock) ReleaseStale(_ context.Context, olderThan time.Duration) (int, error) {
	atomic.AddInt32(&r.calls, 1)
	r.olderThan = olderThan
	return 0, r.err
}

func testConfig(interval time.Duration) *core.Config {
	return &core.Config{Grading: core.GradingConfig{
		Timeout:       time.Second,
		StaleAfter:    10 * time.Minute,
		SweepInterval: interval,
	}}
}

func TestNew(t *testing.T) {
	staleWithinTimeout := testConfig(time.Minute)
	staleWithinTimeout.Grading.Timeout = 10 * time.Minute
	staleBeforeTimeout := testConfig(time.Minute)
	staleBeforeTimeout.Grading.StaleAfter = 30 * time.Second

	tests := []struct {
		name    string
		conf    *core.Config
		wantErr bool
	}{
		{name: "no sweep interval", conf: testConfig(0), wantErr: true},
		{name: "stale after equals timeout", conf: staleWithinTimeout, wantErr: true},
		{name: "stale after below timeout", conf: staleBeforeTimeout, wantErr: true},
		{name: "valid", conf: testConfig(time.Minute)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&releaserMock{}, tt.conf, logsvc.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s.cron.Entries(), 1)
		})
	}
}

func TestScheduler_SweepStale(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "released"},
		{name: "store failure is logged", err: errors.New("db down")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &releaserMock{err: tc.err}
			s, err := New(r, testConfig(time.Minute), logsvc.NewNop())
			require.NoError(t, err)

			s.SweepStale()
			assert.Equal(t, int32(1), atomic.LoadInt32(&r.calls))
			assert.Equal(t, 10*time.Minute, r.olderThan)
		})
	}
}
