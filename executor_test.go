package lnurlpay

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) (*Executor, *mockTransport, *mockWallet) {
	transport := newMockTransport()
	wallet := newMockWallet()

	e, err := NewExecutor(&ExecutorConfig{
		Transport: transport,
		Wallet:    wallet,
	})
	require.NoError(t, err)

	return e, transport, wallet
}

func TestExecutorSingleFixedPayment(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	req := &PayRequest{
		Tag:         TypePayRequest,
		Callback:    "https://coffee.example.com/cb",
		MinSendable: 1000,
		MaxSendable: 1000,
		Metadata:    "[[\"text/plain\",\"Coffee\"]]",
	}
	transport.invoices[req.Callback] = "lnbc-coffee"

	plan, err := Negotiate([]*PayRequest{req}, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1000, plan.Amount)

	pd := BuildPayerData(req, "Satoshi", true)
	require.Nil(t, pd)

	var (
		mu     sync.Mutex
		states []State
	)
	outcome := e.Pay(context.Background(), &Attempt{
		Request:   req,
		Amount:    plan.Amount,
		PayerData: pd,
		Progress: func(_ int, s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	require.NoError(t, outcome.Err)
	require.True(t, outcome.Settled())
	require.Equal(t, StateInvoiceReceived, outcome.Reached)
	require.Equal(t, preimageFor("lnbc-coffee"), outcome.Preimage)
	require.Len(t, outcome.Preimage[:], 32)
	require.Equal(t, []State{
		StateCallbackInvoked, StateInvoiceReceived, StateSettled,
	}, states)

	call, ok := transport.call(req.Callback)
	require.True(t, ok)
	require.EqualValues(t, 1000, call.Amount)
	require.Nil(t, call.PayerData)
	require.Empty(t, call.Comment)
	require.Equal(t, 1, wallet.numPaid())
}

func TestExecutorValidation(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	tests := []struct {
		name    string
		mutate  func(a *Attempt)
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "wrong tag",
			mutate: func(a *Attempt) {
				a.Request.Tag = "withdrawRequest"
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrValidation)
				require.Contains(t, err.Error(), "payRequest")
			},
		},
		{
			name: "missing callback",
			mutate: func(a *Attempt) {
				a.Request.Callback = ""
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrValidation)
			},
		},
		{
			name: "inverted range",
			mutate: func(a *Attempt) {
				a.Request.MinSendable = 5000
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrValidation)
			},
		},
		{
			name: "amount above own range",
			mutate: func(a *Attempt) {
				a.Amount = 4001
			},
			checkFn: func(t *testing.T, err error) {
				var rangeErr *AmountOutOfRangeError
				require.ErrorAs(t, err, &rangeErr)
			},
		},
		{
			name: "comment not allowed",
			mutate: func(a *Attempt) {
				a.Comment = "hi"
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrValidation)
			},
		},
		{
			name: "comment too long",
			mutate: func(a *Attempt) {
				a.Request.CommentAllowed = 3
				a.Comment = "four"
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrValidation)
			},
		},
		{
			name: "malformed metadata",
			mutate: func(a *Attempt) {
				a.Request.Metadata = `["text/plain"]`
			},
			checkFn: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrMalformedMetadata)
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			a := &Attempt{
				Request: payRequest("alice", 1000, 4000),
				Amount:  2000,
			}
			test.mutate(a)

			require.True(t, IsPreNetwork(e.Prepare(a)))

			outcome := e.Pay(context.Background(), a)
			require.Equal(t, StateFailed, outcome.State)
			require.Equal(t, StatePrepared, outcome.Reached)
			require.True(t, IsPreNetwork(outcome.Err))
			test.checkFn(t, outcome.Err)
		})
	}

	require.Zero(t, transport.numCalls())
	require.Zero(t, wallet.numPaid())
}

func TestExecutorCallbackErrors(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	tests := []struct {
		name     string
		err      error
		invoice  string
		expected error
	}{
		{
			name:     "network error",
			err:      errors.New("connection refused"),
			expected: ErrCallbackTransport,
		},
		{
			name: "transport error",
			err: errors.Join(
				ErrCallbackTransport, errors.New("502"),
			),
			expected: ErrCallbackTransport,
		},
		{
			name: "protocol error",
			err: errors.Join(
				ErrCallbackProtocol, errors.New("amount too low"),
			),
			expected: ErrCallbackProtocol,
		},
		{
			name:     "no invoice",
			expected: ErrCallbackProtocol,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			req := payRequest("bob", 1000, 1000)
			if test.err != nil {
				transport.errs[req.Callback] = test.err
			} else {
				delete(transport.errs, req.Callback)
			}

			outcome := e.Pay(context.Background(), &Attempt{
				Request: req,
				Amount:  1000,
			})
			require.ErrorIs(t, outcome.Err, test.expected)
			require.Equal(t, StateCallbackInvoked, outcome.Reached)
			require.False(t, IsPreNetwork(outcome.Err))
		})
	}

	require.Zero(t, wallet.numPaid())
}

func TestExecutorSettlementError(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	req := payRequest("carol", 1000, 1000)
	transport.invoices[req.Callback] = "lnbc-carol"

	noRoute := errors.New("no route")
	wallet.errs["lnbc-carol"] = noRoute

	outcome := e.Pay(context.Background(), &Attempt{
		Request: req,
		Amount:  1000,
	})
	require.Equal(t, StateFailed, outcome.State)
	require.Equal(t, StateInvoiceReceived, outcome.Reached)
	require.ErrorIs(t, outcome.Err, ErrSettlement)
	require.ErrorIs(t, outcome.Err, noRoute)
	require.Equal(t, "lnbc-carol", outcome.Invoice)
	require.Equal(t, "carol@example.com", outcome.Identifier)
}

func TestExecutorSendsCommentAndPayerData(t *testing.T) {
	e, transport, _ := newTestExecutor(t)

	req := payRequest("dave", 1000, 1000)
	req.CommentAllowed = 100
	req.PayerData = &PayerDataSpec{Name: &PayerDataField{Mandatory: true}}
	transport.invoices[req.Callback] = "lnbc-dave"

	outcome := e.Pay(context.Background(), &Attempt{
		Request:   req,
		Amount:    1000,
		Comment:   "for the pizza",
		PayerData: BuildPayerData(req, "", false),
	})
	require.NoError(t, outcome.Err)

	call, ok := transport.call(req.Callback)
	require.True(t, ok)
	require.Equal(t, "for the pizza", call.Comment)
	require.JSONEq(t, `{"name":"Anonymous"}`, string(call.PayerData))
}

func TestExecutorCancelled(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	req := payRequest("erin", 1000, 1000)
	transport.invoices[req.Callback] = "lnbc-erin"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := e.Pay(ctx, &Attempt{Request: req, Amount: 1000})
	require.ErrorIs(t, outcome.Err, ErrCancelled)
	require.ErrorIs(t, outcome.Err, context.Canceled)
	require.Equal(t, StatePrepared, outcome.Reached)
	require.Zero(t, transport.numCalls())
	require.Zero(t, wallet.numPaid())
}

// cancellingTransport cancels the payment's context once it hands out the
// invoice.
type cancellingTransport struct {
	*mockTransport
	cancel context.CancelFunc
}

func (c *cancellingTransport) InvokeCallback(ctx context.Context,
	req *CallbackRequest) (*InvoiceResponse, error) {

	resp, err := c.mockTransport.InvokeCallback(ctx, req)
	c.cancel()

	return resp, err
}

func TestExecutorCancelledBeforeSettlement(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &cancellingTransport{
		mockTransport: newMockTransport(),
		cancel:        cancel,
	}
	wallet := newMockWallet()

	e, err := NewExecutor(&ExecutorConfig{
		Transport: transport,
		Wallet:    wallet,
	})
	require.NoError(t, err)

	req := payRequest("frank", 1000, 1000)
	transport.invoices[req.Callback] = "lnbc-frank"

	outcome := e.Pay(ctx, &Attempt{Request: req, Amount: 1000})
	require.ErrorIs(t, outcome.Err, ErrCancelled)
	require.Equal(t, StateInvoiceReceived, outcome.Reached)
	require.Zero(t, wallet.numPaid())
}

func TestExecutorSettlementSurvivesCancel(t *testing.T) {
	e, transport, wallet := newTestExecutor(t)

	req := payRequest("grace", 1000, 1000)
	transport.invoices[req.Callback] = "lnbc-grace"

	release := make(chan struct{})
	wallet.blockers["lnbc-grace"] = release

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan PaymentOutcome)
	go func() {
		done <- e.Pay(ctx, &Attempt{Request: req, Amount: 1000})
	}()

	// Cancel while the payment is in flight, then let it complete.
	require.Eventually(t, func() bool {
		return wallet.numPaid() == 1
	}, defaultTimeout, pollInterval)
	cancel()
	close(release)

	outcome := <-done
	require.NoError(t, outcome.Err)
	require.True(t, outcome.Settled())
}

func TestNewExecutorRequiresCollaborators(t *testing.T) {
	_, err := NewExecutor(&ExecutorConfig{Wallet: newMockWallet()})
	require.Error(t, err)

	_, err = NewExecutor(&ExecutorConfig{Transport: newMockTransport()})
	require.Error(t, err)
}
