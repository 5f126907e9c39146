// Package mock provides test doubles for the engine capabilities
package mock

import (
	"context"
	"fmt"
	"sync"

	"mev_engine/internal/core"
)

// MockLogger discards everything
type MockLogger struct{}

func (m *MockLogger) Debug(msg string, fields ...interface{})               {}
func (m *MockLogger) Info(msg string, fields ...interface{})                {}
func (m *MockLogger) Warn(msg string, fields ...interface{})                {}
func (m *MockLogger) Error(msg string, fields ...interface{})               {}
func (m *MockLogger) Fatal(msg string, fields ...interface{})               {}
func (m *MockLogger) WithField(key string, value interface{}) core.ILogger  { return m }
func (m *MockLogger) WithFields(fields map[string]interface{}) core.ILogger { return m }

// Call is one recorded capability invocation
type Call struct {
	Method string
	Token  core.Pubkey
	Amount uint64
}

// MockVenue implements core.IVenue with scripted answers and records every call.
// Quotes are keyed by (tokenIn, tokenOut); a missing pair falls back to echoing the input.
type MockVenue struct {
	mu       sync.Mutex
	Quotes   map[[2]core.Pubkey]uint64
	Balances map[core.Pubkey]uint64
	// FailOn makes the named method (or "Method#n" for the n-th call, 1-based) return the error
	FailOn map[string]error
	// TradeResult maps an ExecuteTrade input to its proceeds; nil echoes the amount
	TradeResult func(token core.Pubkey, amount uint64) uint64
	calls       []Call
	counts      map[string]int
}

func NewMockVenue() *MockVenue {
	return &MockVenue{
		Quotes:   make(map[[2]core.Pubkey]uint64),
		Balances: make(map[core.Pubkey]uint64),
		FailOn:   make(map[string]error),
		counts:   make(map[string]int),
	}
}

func (m *MockVenue) Name() string { return "mock" }

// SetQuote fixes the output of the tokenIn -> tokenOut leg
func (m *MockVenue) SetQuote(tokenIn, tokenOut core.Pubkey, out uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Quotes[[2]core.Pubkey{tokenIn, tokenOut}] = out
}

// Calls returns a copy of the recorded calls
func (m *MockVenue) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsTo filters recorded calls by method
func (m *MockVenue) CallsTo(method string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockVenue) record(method string, token core.Pubkey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[method]++
	m.calls = append(m.calls, Call{Method: method, Token: token, Amount: amount})
	if err, ok := m.FailOn[method]; ok {
		return err
	}
	if err, ok := m.FailOn[fmt.Sprintf("%s#%d", method, m.counts[method])]; ok {
		return err
	}
	return nil
}

func (m *MockVenue) Quote(ctx context.Context, tokenIn, tokenOut core.Pubkey, amountIn uint64) (uint64, error) {
	if err := m.record("Quote", tokenIn, amountIn); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if out, ok := m.Quotes[[2]core.Pubkey{tokenIn, tokenOut}]; ok {
		return out, nil
	}
	return amountIn, nil
}

func (m *MockVenue) Sell(ctx context.Context, token core.Pubkey, amount uint64) error {
	return m.record("Sell", token, amount)
}

func (m *MockVenue) Buy(ctx context.Context, token core.Pubkey, amount uint64) error {
	return m.record("Buy", token, amount)
}

func (m *MockVenue) ExecuteTrade(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	if err := m.record("ExecuteTrade", token, amount); err != nil {
		return 0, err
	}
	if m.TradeResult != nil {
		return m.TradeResult(token, amount), nil
	}
	return amount, nil
}

func (m *MockVenue) AdjustLiquidity(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	if err := m.record("AdjustLiquidity", token, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

func (m *MockVenue) Flashloan(ctx context.Context, token core.Pubkey, amount uint64) (uint64, error) {
	if err := m.record("Flashloan", token, amount); err != nil {
		return 0, err
	}
	return amount * 2, nil
}

func (m *MockVenue) AtomicArbitrage(ctx context.Context, tokenIn, tokenOut core.Pubkey, amount uint64) (uint64, error) {
	if err := m.record("AtomicArbitrage", tokenIn, amount); err != nil {
		return 0, err
	}
	return amount + amount>>2, nil
}

func (m *MockVenue) Balance(ctx context.Context, token core.Pubkey) (uint64, error) {
	if err := m.record("Balance", token, 0); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances[token], nil
}

// StaticResolver resolves routers from a fixed map
type StaticResolver map[core.Pubkey]core.IVenue

func (r StaticResolver) Resolve(router core.Pubkey) (core.IVenue, error) {
	v, ok := r[router]
	if !ok {
		return nil, fmt.Errorf("no venue for router %s", router)
	}
	return v, nil
}
