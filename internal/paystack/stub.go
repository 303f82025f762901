package paystack

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stub is an in-memory Client for local development. Initialised
// transactions are remembered and verify with Status (success by default).
type Stub struct {
	BaseURL string
	Status  string

	mu      sync.Mutex
	nextID  int64
	txns    map[string]Transaction
	refunds []Refund
}

// NewStub returns a Stub whose hosted checkout links point at baseURL.
func NewStub(baseURL string) *Stub {
	return &Stub{BaseURL: baseURL, Status: StatusSuccess}
}

// InitializeTransaction records the transaction and returns a checkout link.
func (s *Stub) InitializeTransaction(_ context.Context, req InitializeRequest) (Initialization, error) {
	if strings.TrimSpace(req.Email) == "" {
		return Initialization{}, &APIError{Operation: "initialize", StatusCode: 400, Message: "Email is required"}
	}
	if req.Amount <= 0 {
		return Initialization{}, &APIError{Operation: "initialize", StatusCode: 400, Message: "Invalid Amount Sent"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		ref = "stub_" + uuid.NewString()
	}
	if existing, ok := s.txns[ref]; ok && existing.Status == StatusSuccess {
		return Initialization{}, &APIError{Operation: "initialize", StatusCode: 400, Message: "Duplicate Transaction Reference"}
	}
	s.nextID++
	currencyCode := req.Currency
	if currencyCode == "" {
		currencyCode = "NGN"
	}
	s.txns[ref] = Transaction{
		ID:              s.nextID,
		Domain:          "test",
		Status:          StatusPending,
		Reference:       ref,
		Amount:          req.Amount,
		Currency:        currencyCode,
		Channel:         "card",
		CreatedAt:       time.Now().UTC().Format(time.RFC3339),
		Customer:        Customer{Email: req.Email},
		Metadata:        req.Metadata,
		GatewayResponse: "Pending",
	}
	accessCode := fmt.Sprintf("stub_ac_%d", s.nextID)
	return Initialization{
		AuthorizationURL: fmt.Sprintf("%s/%s", s.checkoutHost(), accessCode),
		AccessCode:       accessCode,
		Reference:        ref,
	}, nil
}

// VerifyTransaction settles the transaction to the configured status on first use.
func (s *Stub) VerifyTransaction(_ context.Context, reference string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	txn, ok := s.txns[strings.TrimSpace(reference)]
	if !ok {
		return Transaction{}, &APIError{Operation: "verify", StatusCode: 404, Message: "Transaction reference not found"}
	}
	if txn.Status == StatusPending {
		txn.Status = s.status()
		switch txn.Status {
		case StatusSuccess:
			txn.GatewayResponse = "Successful"
			txn.PaidAt = time.Now().UTC().Format(time.RFC3339)
			txn.Authorization = &Authorization{
				AuthorizationCode: fmt.Sprintf("AUTH_stub%d", txn.ID),
				Bin:               "408408",
				Last4:             "4081",
				ExpMonth:          "12",
				ExpYear:           "2030",
				Channel:           "card",
				CardType:          "visa",
				Bank:              "TEST BANK",
				CountryCode:       "NG",
				Brand:             "visa",
				Reusable:          true,
			}
		case StatusFailed:
			txn.GatewayResponse = "Declined"
		case StatusAbandoned:
			txn.GatewayResponse = "The transaction was not completed"
		}
		s.txns[txn.Reference] = txn
	}
	return txn, nil
}

// CreateRefund refunds a successful transaction by id or reference.
func (s *Stub) CreateRefund(_ context.Context, req RefundRequest) (Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	txn, ok := s.findLocked(req.Transaction)
	if !ok {
		return Refund{}, &APIError{Operation: "refund", StatusCode: 404, Message: "Transaction not found"}
	}
	if txn.Status != StatusSuccess {
		return Refund{}, &APIError{Operation: "refund", StatusCode: 400, Message: "Transaction has not been completed"}
	}
	amount := req.Amount
	if amount <= 0 {
		amount = txn.Amount
	}
	if amount > txn.Amount {
		return Refund{}, &APIError{Operation: "refund", StatusCode: 400, Message: "Refund amount cannot be more than transaction amount"}
	}
	refund := Refund{
		ID:       int64(len(s.refunds) + 1),
		Status:   StatusPending,
		Amount:   amount,
		Currency: txn.Currency,
	}
	s.refunds = append(s.refunds, refund)
	return refund, nil
}

func (s *Stub) findLocked(id string) (Transaction, bool) {
	id = strings.TrimSpace(id)
	if txn, ok := s.txns[id]; ok {
		return txn, true
	}
	for _, txn := range s.txns {
		if fmt.Sprint(txn.ID) == id {
			return txn, true
		}
	}
	return Transaction{}, false
}

func (s *Stub) init() {
	if s.txns == nil {
		s.txns = make(map[string]Transaction)
	}
}

func (s *Stub) status() string {
	if st := strings.TrimSpace(s.Status); st != "" {
		return st
	}
	return StatusSuccess
}

func (s *Stub) checkoutHost() string {
	host := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if host == "" {
		return "https://checkout.paystack.com"
	}
	return host
}
