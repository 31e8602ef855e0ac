package wallet

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/money"
)

func newTestService() (*Service, *MemStore) {
	store := NewMemStore()
	return &Service{Store: store, MaxRetries: 50}, store
}

func TestCreditAndDebit(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	account, txn, err := svc.Credit(ctx, userID, money.FromRupees(500), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	require.Equal(t, money.FromRupees(500), account.Balance)
	require.Equal(t, money.FromRupees(500), account.TotalCredits)
	require.Equal(t, StatusCompleted, txn.Status)
	require.Equal(t, account.Balance, txn.BalanceAfter)

	account, _, err = svc.Debit(ctx, userID, money.FromRupees(500), Metadata{Category: CategoryOrderPayment})
	require.NoError(t, err)
	require.Equal(t, money.Zero, account.Balance)
	require.Equal(t, money.FromRupees(500), account.TotalDebits)

	// Spec scenario: draining the wallet then debiting one more rupee fails
	// and leaves the balance untouched.
	_, _, err = svc.Debit(ctx, userID, money.FromRupees(1), Metadata{Category: CategoryOrderPayment})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	account, err = svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, money.Zero, account.Balance)
}

func TestInvalidAmount(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	_, _, err := svc.Credit(context.Background(), userID, 0, Metadata{})
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = svc.Debit(context.Background(), userID, money.FromPaise(-5), Metadata{})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestBlockedWallet(t *testing.T) {
	svc, store := newTestService()
	userID := uuid.New()
	ctx := context.Background()
	account, err := store.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	blocked := account
	blocked.Blocked = true
	blocked.Version = account.Version + 1
	require.NoError(t, store.ApplyTransaction(ctx, blocked, account.Version, Transaction{ID: uuid.New(), WalletID: account.ID, Status: StatusCompleted}))

	_, _, err = svc.Credit(ctx, userID, money.FromRupees(10), Metadata{})
	require.ErrorIs(t, err, ErrWalletBlocked)
	_, _, err = svc.Debit(ctx, userID, money.FromRupees(10), Metadata{})
	require.ErrorIs(t, err, ErrWalletBlocked)
}

func TestReverseCreditRestoresBalance(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, _, err := svc.Credit(ctx, userID, money.FromRupees(300), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, credit, err := svc.Credit(ctx, userID, money.FromRupees(100), Metadata{Category: CategoryTopup})
	require.NoError(t, err)

	reversal, err := svc.Reverse(ctx, credit.ID, "duplicate topup")
	require.NoError(t, err)
	require.Equal(t, TxDebit, reversal.Type)
	require.Equal(t, credit.Amount, reversal.Amount)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, credit.ID, *reversal.ReversalOf)

	account, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, money.FromRupees(300), account.Balance)

	original, err := svc.Store.GetTransaction(ctx, credit.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, original.Status)
	require.NotNil(t, original.ReversedBy)
	require.Equal(t, reversal.ID, *original.ReversedBy)
}

func TestReverseGuards(t *testing.T) {
	svc, store := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, credit, err := svc.Credit(ctx, userID, money.FromRupees(100), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, credit.ID, "first")
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, credit.ID, "second")
	require.ErrorIs(t, err, ErrAlreadyReversed)

	// Pending transactions cannot be reversed.
	account, err := store.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	pending := Transaction{ID: uuid.New(), WalletID: account.ID, Type: TxCredit, Amount: 100, Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, store.ApplyTransaction(ctx, withVersionBump(account), account.Version, pending))
	_, err = svc.Reverse(ctx, pending.ID, "nope")
	require.ErrorIs(t, err, ErrNotCompleted)
}

func TestReversalOfReversalNotReversible(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, credit, err := svc.Credit(ctx, userID, money.FromRupees(50), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	reversal, err := svc.Reverse(ctx, credit.ID, "undo")
	require.NoError(t, err)

	_, err = svc.Reverse(ctx, reversal.ID, "undo the undo")
	require.ErrorIs(t, err, ErrNotReversible)
}

func TestDebitReversalCanHitInsufficientBalance(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, _, err := svc.Credit(ctx, userID, money.FromRupees(100), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, credit, err := svc.Credit(ctx, userID, money.FromRupees(100), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, _, err = svc.Debit(ctx, userID, money.FromRupees(150), Metadata{Category: CategoryOrderPayment})
	require.NoError(t, err)

	// Reversing the 100 credit needs a 100 debit but only 50 remains.
	_, err = svc.Reverse(ctx, credit.ID, "late cancel")
	require.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed attempt leaves the credit completed and unclaimed, so a
	// later reversal can still go through.
	original, err := svc.Store.GetTransaction(ctx, credit.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, original.Status)
	require.Nil(t, original.ReversedBy)

	_, _, err = svc.Credit(ctx, userID, money.FromRupees(50), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, credit.ID, "late cancel")
	require.NoError(t, err)
}

func TestConcurrentReversalAppliesOnce(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, _, err := svc.Credit(ctx, userID, money.FromRupees(100), Metadata{Category: CategoryTopup})
	require.NoError(t, err)
	_, debit, err := svc.Debit(ctx, userID, money.FromRupees(60), Metadata{Category: CategoryOrderPayment})
	require.NoError(t, err)

	start := make(chan struct{})
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := svc.Reverse(ctx, debit.ID, "refund race")
			errs <- err
		}()
	}
	close(start)

	var succeeded, alreadyReversed int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyReversed):
			alreadyReversed++
		default:
			t.Fatalf("unexpected reversal error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, alreadyReversed)

	// The refund lands exactly once; the losing call must not move money.
	account, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, money.FromRupees(100), account.Balance)
}

func TestLedgerConservation(t *testing.T) {
	svc, store := newTestService()
	userID := uuid.New()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(99))

	var completed []uuid.UUID
	for i := 0; i < 200; i++ {
		amount := money.FromPaise(1 + rng.Int63n(50000))
		switch rng.Intn(3) {
		case 0:
			_, txn, err := svc.Credit(ctx, userID, amount, Metadata{Category: CategoryTopup})
			require.NoError(t, err)
			completed = append(completed, txn.ID)
		case 1:
			_, txn, err := svc.Debit(ctx, userID, amount, Metadata{Category: CategoryOrderPayment})
			if errors.Is(err, ErrInsufficientBalance) {
				continue
			}
			require.NoError(t, err)
			completed = append(completed, txn.ID)
		case 2:
			if len(completed) == 0 {
				continue
			}
			_, err := svc.Reverse(ctx, completed[rng.Intn(len(completed))], "random reversal")
			if err != nil {
				require.True(t,
					errors.Is(err, ErrAlreadyReversed) ||
						errors.Is(err, ErrNotReversible) ||
						errors.Is(err, ErrInsufficientBalance),
					"unexpected reversal error: %v", err)
			}
		}
	}

	account, err := svc.Balance(ctx, userID)
	require.NoError(t, err)

	// The balance equals the signed fold of all completed transactions in
	// creation order, with each reversed pair cancelling out entirely.
	var fold money.Money
	for _, txn := range store.AllTransactions(account.ID) {
		if txn.Status != StatusCompleted || txn.ReversalOf != nil {
			continue
		}
		switch txn.Type {
		case TxCredit:
			fold = fold.Add(txn.Amount)
		case TxDebit:
			fold -= txn.Amount
		}
	}
	require.Equal(t, account.Balance, fold)
	require.False(t, account.Balance.IsNegative())
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	svc, _ := newTestService()
	userID := uuid.New()
	ctx := context.Background()

	_, _, err := svc.Credit(ctx, userID, money.FromRupees(500), Metadata{Category: CategoryTopup})
	require.NoError(t, err)

	const workers = 10
	debit := money.FromRupees(100)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded int
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Debit(ctx, userID, debit, Metadata{Category: CategoryOrderPayment})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrInsufficientBalance) && !errors.Is(err, ErrConcurrencyExhausted) {
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	wg.Wait()

	account, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.False(t, account.Balance.IsNegative())
	require.Equal(t, money.FromRupees(500)-debit.MulQty(succeeded), account.Balance)
	require.LessOrEqual(t, succeeded, 5)
}

func withVersionBump(a Account) Account {
	a.Version++
	return a
}
