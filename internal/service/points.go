package service

import (
	"errors"
	"sync"
	"time"

	"github.com/boostgw/boostgw/internal/models"
)

// ErrInsufficientBalance is returned by Debit when the account cannot cover
// the cost.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Ledger is the in-memory points store for points-mode deployments.
// Accounts are created lazily on first contact with the configured starting
// balance and are lost on restart.
//
// Debits happen before the upstream submission; the compensating Credit on
// failure is best-effort, not atomic with the debit.
type Ledger struct {
	mu              sync.RWMutex
	accounts        map[string]*models.Account
	startingBalance float64
}

func NewLedger(startingBalance float64) *Ledger {
	return &Ledger{
		accounts:        make(map[string]*models.Account),
		startingBalance: startingBalance,
	}
}

// Account returns a copy of the account, creating it if needed.
func (l *Ledger) Account(id string) models.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.get(id)
}

// Debit removes cost points, failing without mutation when the balance is
// short.
func (l *Ledger) Debit(id string, cost float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.get(id)
	if acct.Balance < cost {
		return ErrInsufficientBalance
	}

	acct.Balance -= cost
	acct.SpentTotal += cost
	acct.OrderCount++
	return nil
}

// Credit refunds cost points after a failed submission.
func (l *Ledger) Credit(id string, cost float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.get(id)
	acct.Balance += cost
	acct.SpentTotal -= cost
}

// get assumes the lock is held.
func (l *Ledger) get(id string) *models.Account {
	acct, ok := l.accounts[id]
	if !ok {
		acct = &models.Account{
			ID:        id,
			Balance:   l.startingBalance,
			CreatedAt: time.Now().UTC(),
		}
		l.accounts[id] = acct
	}
	return acct
}
