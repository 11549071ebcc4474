// Package payee is an LNURL-pay service. It serves pay requests for a set of
// Lightning Addresses and issues invoices committing to the request's
// metadata and the payer's data.
package payee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ellemouton/lnurlpay"
	"github.com/ellemouton/lnurlpay/metrics"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwire"
)

const wellKnownPath = "/.well-known/lnurlp/"

// Invoicer creates invoices. lndclient.LightningClient satisfies it.
type Invoicer interface {
	AddInvoice(ctx context.Context,
		in *invoicesrpc.AddInvoiceData) (lntypes.Hash, string, error)
}

type Server struct {
	cfg      *Config
	invoicer Invoicer
	metrics  metrics.Recorder
	mux      *http.ServeMux

	paymentMetadata map[string]*metadata
	metadataMu      sync.Mutex

	// now is replaced in tests.
	now func() time.Time
}

type metadata struct {
	user      string
	data      string
	createdAt time.Time
}

// NewServer creates a new Server.
func NewServer(cfg *Config, invoicer Invoicer,
	recorder metrics.Recorder) (*Server, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	s := &Server{
		cfg:             cfg,
		invoicer:        invoicer,
		metrics:         recorder,
		mux:             http.NewServeMux(),
		paymentMetadata: make(map[string]*metadata),
		now:             time.Now,
	}

	s.mux.HandleFunc("/pay", s.pay)
	s.mux.HandleFunc(wellKnownPath, s.pay)
	s.mux.HandleFunc("/invoice", s.invoice)

	return s, nil
}

// ServeHTTP makes the Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves on the configured listen address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.printHello()

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		log.Infof("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) printHello() {
	var b strings.Builder
	b.WriteString("=======================================\n")
	b.WriteString("Welcome to LNURL-pay!\n")
	b.WriteString("Your static LNURL-pay codes are:\n")
	for _, user := range s.cfg.Users {
		fmt.Fprintf(&b, "- %s@%s\n", user, s.cfg.Host)
		fmt.Fprintf(&b, "- lnurlp://%s:%d%s%s\n", s.cfg.Host,
			s.cfg.Port, wellKnownPath, user)
	}
	b.WriteString("=======================================")

	log.Info(b.String())
}

// user returns the user a pay request is for.
func (s *Server) user(r *http.Request) (string, bool) {
	if r.URL.Path == "/pay" {
		return s.cfg.Users[0], true
	}

	name := strings.ToLower(strings.TrimPrefix(r.URL.Path, wellKnownPath))
	for _, u := range s.cfg.Users {
		if strings.EqualFold(u, name) {
			return u, true
		}
	}

	return "", false
}

func (s *Server) pay(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(r)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}

	meta, err := json.Marshal([][2]string{
		{lnurlpay.ContentTypePlain, s.cfg.Description},
		{lnurlpay.ContentTypeIdentifier, user + "@" + s.cfg.Host},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	id := uuid.NewString()
	now := s.now()

	s.metadataMu.Lock()
	s.pruneLocked(now)
	s.paymentMetadata[id] = &metadata{
		user:      user,
		data:      string(meta),
		createdAt: now,
	}
	s.metadataMu.Unlock()

	getInvoice := fmt.Sprintf("%s/invoice?id=%s", s.cfg.baseURL(), id)

	resp := &lnurlpay.PayRequest{
		Callback:       getInvoice,
		MinSendable:    lnwire.MilliSatoshi(s.cfg.MinMsatSendable),
		MaxSendable:    lnwire.MilliSatoshi(s.cfg.MaxMsatSendable),
		Metadata:       string(meta),
		CommentAllowed: s.cfg.CommentAllowed,
		PayerData:      s.payerDataSpec(),
		Tag:            lnurlpay.TypePayRequest,
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) payerDataSpec() *lnurlpay.PayerDataSpec {
	switch s.cfg.PayerName {
	case PayerNameOptional:
		return &lnurlpay.PayerDataSpec{
			Name: &lnurlpay.PayerDataField{},
		}

	case PayerNameMandatory:
		return &lnurlpay.PayerDataSpec{
			Name: &lnurlpay.PayerDataField{Mandatory: true},
		}

	default:
		return nil
	}
}

// pruneLocked drops pay requests older than the request TTL. The caller
// must hold metadataMu.
func (s *Server) pruneLocked(now time.Time) {
	for id, m := range s.paymentMetadata {
		if now.Sub(m.createdAt) > s.cfg.RequestTTL {
			delete(s.paymentMetadata, id)
		}
	}
}

func (s *Server) invoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		s.reject(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.Form.Get("id")
	if id == "" {
		s.reject(w, http.StatusBadRequest, "expected 'id' field")
		return
	}

	amt := r.Form.Get("amount")
	if amt == "" {
		s.reject(w, http.StatusBadRequest, "expected 'amount' field")
		return
	}

	milliSats, err := strconv.ParseInt(amt, 10, 64)
	if err != nil {
		s.reject(w, http.StatusBadRequest, "expected 'amount' field")
		return
	}

	if milliSats < s.cfg.MinMsatSendable ||
		milliSats > s.cfg.MaxMsatSendable {

		s.reject(w, http.StatusBadRequest, fmt.Sprintf("amount must "+
			"be between %d and %d msat", s.cfg.MinMsatSendable,
			s.cfg.MaxMsatSendable))
		return
	}

	comment := r.Form.Get("comment")
	if utf8.RuneCountInString(comment) > s.cfg.CommentAllowed {
		s.reject(w, http.StatusBadRequest, fmt.Sprintf("comment "+
			"longer than %d characters", s.cfg.CommentAllowed))
		return
	}

	payerData := r.Form.Get("payerdata")
	name, err := s.checkPayerData(payerData)
	if err != nil {
		s.reject(w, http.StatusBadRequest, err.Error())
		return
	}

	// The request is claimed on lookup so that concurrent callbacks for
	// the same id can't both get an invoice.
	s.metadataMu.Lock()
	meta, ok := s.paymentMetadata[id]
	if ok {
		delete(s.paymentMetadata, id)
		ok = s.now().Sub(meta.createdAt) <= s.cfg.RequestTTL
	}
	s.metadataMu.Unlock()
	if !ok {
		s.reject(w, http.StatusBadRequest, "unknown or expired request")
		return
	}

	h := lnurlpay.DescriptionHash(meta.data, []byte(payerData))

	memo := "LNURL-pay to " + meta.user
	if name != "" {
		memo += " from " + name
	}
	if comment != "" {
		memo += ": " + comment
	}

	_, pr, err := s.invoicer.AddInvoice(ctx, &invoicesrpc.AddInvoiceData{
		Memo:            memo,
		Value:           lnwire.MilliSatoshi(milliSats),
		DescriptionHash: h[:],
	})
	if err != nil {
		log.Errorf("Unable to add invoice: %v", err)

		// Hand the request back so the payer can retry.
		s.metadataMu.Lock()
		s.paymentMetadata[id] = meta
		s.metadataMu.Unlock()

		s.reject(w, http.StatusInternalServerError, "invoice error")
		return
	}

	resp := &lnurlpay.InvoiceResponse{
		PayRequest: pr,
		Routes:     []interface{}{},
	}
	if s.cfg.SuccessMessage != "" {
		resp.SuccessAction = &lnurlpay.SuccessAction{
			Tag:     "message",
			Message: s.cfg.SuccessMessage,
		}
	}

	log.Debugf("Issued invoice for %d msat to %s", milliSats, meta.user)
	s.metrics.IncCounter(metrics.InvoicesTotal,
		map[string]string{"result": "ok"})

	writeJSON(w, http.StatusOK, resp)
}

// checkPayerData validates the payer data against the service's policy and
// returns the payer's name, if any.
func (s *Server) checkPayerData(raw string) (string, error) {
	if raw == "" {
		if s.cfg.PayerName == PayerNameMandatory {
			return "", errors.New("payer name required")
		}
		return "", nil
	}

	var pd lnurlpay.PayerData
	if err := json.Unmarshal([]byte(raw), &pd); err != nil {
		return "", fmt.Errorf("invalid payer data: %v", err)
	}

	for field := range pd {
		if field != lnurlpay.PayerDataName ||
			s.cfg.PayerName == PayerNameNone {

			return "", fmt.Errorf("unsupported payer data field %q",
				field)
		}
	}

	name, ok := pd[lnurlpay.PayerDataName]
	if !ok && s.cfg.PayerName == PayerNameMandatory {
		return "", errors.New("payer name required")
	}

	return name, nil
}

func (s *Server) reject(w http.ResponseWriter, code int, reason string) {
	s.metrics.IncCounter(metrics.InvoicesTotal,
		map[string]string{"result": "rejected"})

	writeError(w, code, reason)
}

func writeError(w http.ResponseWriter, code int, reason string) {
	writeJSON(w, code, &lnurlpay.Error{
		Status: lnurlpay.StatusError,
		Reason: reason,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Unable to write response: %v", err)
	}
}
