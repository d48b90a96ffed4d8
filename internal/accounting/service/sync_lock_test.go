package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/accounting/oauth"
	"github.com/smallbiznis/caskr/internal/accounting/repository"
	"github.com/smallbiznis/caskr/internal/synclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func invoiceLockKey() string {
	return fmt.Sprintf("sync:%s:%s:%s", testCompanyID, domain.EntityTypeInvoice, testInvoiceID)
}

// blockInvoices holds CreateInvoice open until the returned func is called.
func (h *harness) blockInvoices() (entered <-chan struct{}, unblock func()) {
	in := make(chan struct{}, 4)
	gate := make(chan struct{})
	h.remote.InvoiceHook = func(ctx context.Context) error {
		in <- struct{}{}
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}
	var once sync.Once
	return in, func() { once.Do(func() { close(gate) }) }
}

func (h *harness) successRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&domain.AccountingSyncLog{}).
		Where("entity_id = ? AND status = ?", testInvoiceID, domain.SyncStatusSuccess).
		Count(&n).Error)
	return n
}

func TestSyncInvoiceRejectsWhileLockHeld(t *testing.T) {
	h, _ := newLockedHarness(t, harnessOptions{})
	h.connect(t, time.Hour)
	h.mapAccount(t, domain.AccountTypeFinishedGoods, "acct-fg")
	h.seedInvoice(t)

	release, err := h.locker.Acquire(context.Background(), invoiceLockKey(), time.Minute)
	require.NoError(t, err)

	_, err = h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Zero(t, h.remote.InvoiceCalls())
	assert.Empty(t, h.clients.Contexts)

	release()
	res, err := h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, h.remote.InvoiceCalls())
}

// concurrentSuccessLogs records a Success row for the invoice right after
// the first idempotency lookup misses, as a worker finishing elsewhere would.
type concurrentSuccessLogs struct {
	domain.SyncLogRepository
	mu     sync.Mutex
	lookup int
}

func (r *concurrentSuccessLogs) FindLatestSuccess(ctx context.Context, db *gorm.DB, companyID snowflake.ID, entityType domain.EntityType, entityID snowflake.ID) (*domain.AccountingSyncLog, error) {
	found, err := r.SyncLogRepository.FindLatestSuccess(ctx, db, companyID, entityType, entityID)
	r.mu.Lock()
	r.lookup++
	first := r.lookup == 1
	r.mu.Unlock()
	if first && found == nil && err == nil {
		err = r.SyncLogRepository.Insert(ctx, db, &domain.AccountingSyncLog{
			ID:               8888,
			CompanyID:        companyID,
			Provider:         domain.ProviderQuickBooks,
			EntityType:       entityType,
			EntityID:         entityID,
			ExternalEntityID: "inv-elsewhere",
			Status:           domain.SyncStatusSuccess,
			SyncedAt:         testNow,
		})
	}
	return found, err
}

func TestSyncInvoiceRechecksAfterAcquiringLock(t *testing.T) {
	logs := &concurrentSuccessLogs{SyncLogRepository: repository.ProvideSyncLogs()}
	h, _ := newLockedHarness(t, harnessOptions{syncLogs: logs})
	h.connect(t, time.Hour)
	h.mapAccount(t, domain.AccountTypeFinishedGoods, "acct-fg")
	h.seedInvoice(t)

	res, err := h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
	require.NoError(t, err)

	assert.True(t, res.AlreadySynced)
	assert.Equal(t, "inv-elsewhere", res.ExternalID)
	assert.Zero(t, h.remote.InvoiceCalls())
	assert.Equal(t, 2, logs.lookup)
	assert.EqualValues(t, 1, h.successRows(t))
}

func TestSyncLockOutlivesItsTTLWhileRemoteCallRuns(t *testing.T) {
	h, mr := newLockedHarness(t, harnessOptions{})
	h.connect(t, time.Hour)
	h.mapAccount(t, domain.AccountTypeFinishedGoods, "acct-fg")
	h.seedInvoice(t)
	entered, unblock := h.blockInvoices()
	defer unblock()

	type outcome struct {
		res *domain.SyncResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
		done <- outcome{res, err}
	}()
	<-entered

	// Redis time moves well past the 45s lock TTL; the keepalive keeps the
	// key from expiring.
	for i := 0; i < 3; i++ {
		time.Sleep(50 * time.Millisecond)
		mr.FastForward(40 * time.Second)
	}

	_, err := h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	unblock()
	first := <-done
	require.NoError(t, first.err)
	assert.True(t, first.res.Success)

	assert.Equal(t, 1, h.remote.InvoiceCalls())
	assert.EqualValues(t, 1, h.successRows(t))
	assert.False(t, mr.Exists("caskr:lock:"+invoiceLockKey()))
}

func TestSyncStopsWhenLockIsLost(t *testing.T) {
	h, mr := newLockedHarness(t, harnessOptions{})
	h.connect(t, time.Hour)
	h.mapAccount(t, domain.AccountTypeFinishedGoods, "acct-fg")
	h.seedInvoice(t)
	entered, unblock := h.blockInvoices()
	defer unblock()

	done := make(chan *domain.SyncResult, 1)
	go func() {
		res, err := h.invoices.SyncInvoiceToQuickBooks(h.ctx(), testInvoiceID)
		assert.NoError(t, err)
		done <- res
	}()
	<-entered
	mr.Del("caskr:lock:" + invoiceLockKey())

	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.False(t, res.Success)
		assert.Contains(t, res.ErrorMessage, synclock.ErrLockLost.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("sync kept running after losing its lock")
	}
	assert.Zero(t, h.remote.InvoiceCalls())
	assert.Zero(t, h.successRows(t))
}

func TestConcurrentContextsRefreshTokenOnce(t *testing.T) {
	h, _ := newLockedHarness(t, harnessOptions{})
	h.connect(t, 3*time.Minute)

	h.tokens.On("Refresh", "refresh-plain-1").Return(&oauth.Token{
		AccessToken:  "access-plain-2",
		RefreshToken: "refresh-plain-2",
		Expiry:       testNow.Add(time.Hour),
	}, nil).After(100 * time.Millisecond).Once()

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sc, err := h.contexts.CreateContext(context.Background(), testCompanyID)
			if assert.NoError(t, err) {
				tokens[i] = sc.AccessToken
			}
		}(i)
	}
	wg.Wait()

	h.tokens.AssertNumberOfCalls(t, "Refresh", 1)
	assert.Equal(t, []string{"access-plain-2", "access-plain-2"}, tokens)
}
