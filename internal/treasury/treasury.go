package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"registry-be/internal/domain"

	"go.uber.org/zap"
)

// Transferer moves value between the escrow held by the registry and outside
// accounts. Both directions return plain errors consumed uniformly by the
// registry: any failure means no value moved.
type Transferer interface {
	// Collect pulls amount of token from the given account into escrow.
	Collect(ctx context.Context, token, from string, amount *big.Int) error

	// Payout releases amount of token from escrow to the given account.
	Payout(ctx context.Context, token, to string, amount *big.Int) error
}

// Bank is the native-coin transferer: a per-account balance ledger with a
// single escrow pot, serialized by one mutex.
type Bank struct {
	mu       sync.Mutex
	balances map[string]*big.Int
	escrow   *big.Int
	log      *zap.Logger
}

// NewBank creates an empty native-coin ledger.
func NewBank(log *zap.Logger) *Bank {
	return &Bank{
		balances: make(map[string]*big.Int),
		escrow:   new(big.Int),
		log:      log,
	}
}

// Deposit credits an account balance. Used by the dev treasury endpoints to
// make native flows drivable end to end.
func (b *Bank) Deposit(account string, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(account, amount)
}

// Balance returns the current balance of an account.
func (b *Bank) Balance(account string) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Escrowed returns the total value currently held in escrow.
func (b *Bank) Escrowed() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.escrow)
}

func (b *Bank) Collect(ctx context.Context, token, from string, amount *big.Int) error {
	if token != domain.NativeToken {
		return fmt.Errorf("bank only holds the native coin, got token %s", token)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bal, ok := b.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("account %s has insufficient balance", from)
	}
	bal.Sub(bal, amount)
	b.escrow.Add(b.escrow, amount)
	return nil
}

func (b *Bank) Payout(ctx context.Context, token, to string, amount *big.Int) error {
	if token != domain.NativeToken {
		return fmt.Errorf("bank only holds the native coin, got token %s", token)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.escrow.Cmp(amount) < 0 {
		return fmt.Errorf("escrow underflow paying %s", to)
	}
	b.escrow.Sub(b.escrow, amount)
	b.credit(to, amount)
	return nil
}

func (b *Bank) credit(account string, amount *big.Int) {
	if bal, ok := b.balances[account]; ok {
		bal.Add(bal, amount)
		return
	}
	b.balances[account] = new(big.Int).Set(amount)
}

// TokenClient is the external-token transferer. It speaks to a token service
// that fronts the token contract's own transfer semantics; those calls may
// fail and the failure propagates as a transfer error.
type TokenClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewTokenClient creates a transferer for external reward tokens.
func NewTokenClient(baseURL string, log *zap.Logger) *TokenClient {
	return &TokenClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type transferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Amount string `json:"amount"`
}

func (c *TokenClient) Collect(ctx context.Context, token, from string, amount *big.Int) error {
	// Pull-funding relies on a pre-approved allowance on the token side.
	return c.post(ctx, "/transfer-from", transferRequest{
		Token:  token,
		From:   from,
		Amount: amount.String(),
	})
}

func (c *TokenClient) Payout(ctx context.Context, token, to string, amount *big.Int) error {
	return c.post(ctx, "/transfer", transferRequest{
		Token:  token,
		To:     to,
		Amount: amount.String(),
	})
}

func (c *TokenClient) post(ctx context.Context, path string, body transferRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("token transfer call failed",
			zap.String("path", path),
			zap.String("token", body.Token),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return fmt.Errorf("token service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("token transfer rejected",
			zap.String("path", path),
			zap.String("token", body.Token),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("token service returned status %d", resp.StatusCode)
	}

	c.log.Debug("token transfer completed",
		zap.String("path", path),
		zap.String("token", body.Token),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Router dispatches each transfer to the native bank or the token client
// based on the reward token, so completion and withdrawal logic consume one
// capability regardless of the value unit.
type Router struct {
	native Transferer
	token  Transferer
}

// NewRouter creates a transferer that routes on the token sentinel.
func NewRouter(native, token Transferer) *Router {
	return &Router{native: native, token: token}
}

func (r *Router) pick(token string) Transferer {
	if token == domain.NativeToken {
		return r.native
	}
	return r.token
}

func (r *Router) Collect(ctx context.Context, token, from string, amount *big.Int) error {
	return r.pick(token).Collect(ctx, token, from, amount)
}

func (r *Router) Payout(ctx context.Context, token, to string, amount *big.Int) error {
	return r.pick(token).Payout(ctx, token, to, amount)
}
