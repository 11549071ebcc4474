package lnurlpay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

// mockTransport answers callbacks from a per callback table.
type mockTransport struct {
	sync.Mutex

	invoices map[string]string
	errs     map[string]error
	calls    []CallbackRequest
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		invoices: make(map[string]string),
		errs:     make(map[string]error),
	}
}

func (m *mockTransport) InvokeCallback(_ context.Context,
	req *CallbackRequest) (*InvoiceResponse, error) {

	m.Lock()
	defer m.Unlock()

	m.calls = append(m.calls, *req)
	if err, ok := m.errs[req.Callback]; ok {
		return nil, err
	}

	return &InvoiceResponse{PayRequest: m.invoices[req.Callback]}, nil
}

func (m *mockTransport) numCalls() int {
	m.Lock()
	defer m.Unlock()

	return len(m.calls)
}

func (m *mockTransport) call(callback string) (CallbackRequest, bool) {
	m.Lock()
	defer m.Unlock()

	for _, c := range m.calls {
		if c.Callback == callback {
			return c, true
		}
	}

	return CallbackRequest{}, false
}

// mockWallet settles every invoice with a preimage derived from it unless
// an error is registered.
type mockWallet struct {
	sync.Mutex

	errs     map[string]error
	paid     []string
	balance  lnwire.MilliSatoshi
	blockers map[string]chan struct{}
}

func newMockWallet() *mockWallet {
	return &mockWallet{
		errs:     make(map[string]error),
		blockers: make(map[string]chan struct{}),
	}
}

func (m *mockWallet) SendPayment(ctx context.Context,
	invoice string) (lntypes.Preimage, error) {

	m.Lock()
	m.paid = append(m.paid, invoice)
	err := m.errs[invoice]
	block := m.blockers[invoice]
	m.Unlock()

	if block != nil {
		<-block
	}

	// The payment must not be aborted by the caller.
	if ctx.Err() != nil {
		return lntypes.Preimage{}, ctx.Err()
	}

	if err != nil {
		return lntypes.Preimage{}, err
	}

	return preimageFor(invoice), nil
}

func (m *mockWallet) Balance(context.Context) (lnwire.MilliSatoshi, error) {
	return m.balance, nil
}

func (m *mockWallet) numPaid() int {
	m.Lock()
	defer m.Unlock()

	return len(m.paid)
}

func preimageFor(invoice string) lntypes.Preimage {
	var p lntypes.Preimage
	copy(p[:], invoice)
	p[31] = 0xff

	return p
}

func metadataJSON(fields ...[2]string) string {
	b, err := json.Marshal(fields)
	if err != nil {
		panic(err)
	}

	return string(b)
}

func payRequest(name string, min, max lnwire.MilliSatoshi) *PayRequest {
	return &PayRequest{
		Tag:         TypePayRequest,
		Callback:    fmt.Sprintf("https://%s.example.com/callback", name),
		MinSendable: min,
		MaxSendable: max,
		Metadata: metadataJSON(
			[2]string{"text/plain", "Pay " + name},
			[2]string{"text/identifier", name + "@example.com"},
		),
	}
}
