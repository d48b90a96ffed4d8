package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartOfAccountsIsCachedPerCompany(t *testing.T) {
	h := newHarness(t)
	h.connect(t, time.Hour)
	h.remote.Accounts = []domain.RemoteAccount{
		{ID: "80", Name: "Cost of Goods Sold", AccountType: "Cost of Goods Sold", Active: true},
		{ID: "81", Name: "Work in Progress", AccountType: "Other Current Asset", Active: true},
		{ID: "99", Name: "Old Revenue", AccountType: "Income", Active: false},
	}

	first, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	second, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, h.remote.QueryAccountCalls)
	assert.Len(t, first.Accounts, 2)
	assert.Equal(t, testNow, first.FetchedAt)
}

func TestChartOfAccountsConcurrentMissesFetchOnce(t *testing.T) {
	h := newHarness(t)
	h.connect(t, time.Hour)

	var wg sync.WaitGroup
	results := make([]*domain.ChartOfAccounts, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chart, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
			assert.NoError(t, err)
			results[i] = chart
		}(i)
	}
	wg.Wait()

	for _, chart := range results {
		assert.Same(t, results[0], chart)
	}
	assert.Equal(t, 1, h.remote.QueryAccountCalls)
}

func TestChartOfAccountsExpiresAndInvalidates(t *testing.T) {
	h := newHarness(t)
	h.connect(t, 24*time.Hour)

	first, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)

	h.charts.Invalidate(testCompanyID)
	second, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	h.clock.Advance(31 * time.Minute)
	third, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.NotSame(t, second, third)
	assert.Equal(t, 3, h.remote.QueryAccountCalls)
}

func TestChartOfAccountsErrorsAreNotCached(t *testing.T) {
	h := newHarness(t)

	_, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	assert.ErrorIs(t, err, domain.ErrIntegrationNotFound)

	h.connect(t, time.Hour)
	h.remote.QueryAccountErr = errors.New("throttled")
	_, err = h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	assert.Error(t, err)

	h.remote.QueryAccountErr = nil
	chart, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.NotNil(t, chart)
}

func TestReconnectDropsCachedChart(t *testing.T) {
	h := newHarness(t)
	h.connect(t, time.Hour)

	first, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)

	h.connect(t, time.Hour)
	second, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestInvalidateDuringFetchIsNotCachedStale(t *testing.T) {
	h := newHarness(t)
	h.connect(t, time.Hour)
	h.remote.Accounts = []domain.RemoteAccount{{ID: "80", Name: "Cost of Goods Sold", Active: true}}

	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	var once sync.Once
	h.remote.QueryAccountsHook = func(ctx context.Context) error {
		once.Do(func() {
			entered <- struct{}{}
			<-gate
		})
		return nil
	}

	done := make(chan *domain.ChartOfAccounts, 1)
	go func() {
		chart, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
		assert.NoError(t, err)
		done <- chart
	}()
	<-entered
	h.charts.Invalidate(testCompanyID)
	close(gate)
	stale := <-done
	require.NotNil(t, stale)

	fresh, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh)
	assert.Equal(t, 2, h.remote.QueryCalls())

	again, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
	require.NoError(t, err)
	assert.Same(t, fresh, again)
}

func TestCancelledWaiterDoesNotFailSharedFetch(t *testing.T) {
	h := newHarness(t)
	h.connect(t, time.Hour)

	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	h.remote.QueryAccountsHook = func(ctx context.Context) error {
		entered <- struct{}{}
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := h.charts.GetChartOfAccounts(ctx, testCompanyID)
		first <- err
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		_, err := h.charts.GetChartOfAccounts(context.Background(), testCompanyID)
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(gate)
	assert.NoError(t, <-second)
	assert.Equal(t, 1, h.remote.QueryCalls())
}
