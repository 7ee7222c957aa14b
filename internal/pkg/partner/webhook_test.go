package partner

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func registerAndHandle(t *testing.T, svc *Service, body []byte) *models.WebhookEvent {
	t.Helper()
	ev, created, err := svc.RegisterEvent(context.Background(), body, signBody(body, "whsec"))
	if err != nil {
		t.Fatalf("RegisterEvent: %v", err)
	}
	if !created {
		t.Fatal("event not registered as new")
	}
	if err := svc.HandleEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	out, err := svc.Repo().GetWebhookEvent(ev.ID)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRegisterEventDeduplicatesByEventID(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, "")

	body := []byte(`{"id":"evt_1","event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment"}}`)
	sig := signBody(body, "whsec")

	first, created, err := svc.RegisterEvent(context.Background(), body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first delivery must be created")
	}

	second, created, err := svc.RegisterEvent(context.Background(), body, sig)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("redelivery must not create a second row")
	}
	if second.ID != first.ID {
		t.Fatalf("redelivery returned event %d, want %d", second.ID, first.ID)
	}
}

func TestRegisterEventDeduplicatesByBodyDigest(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, "")

	// No delivery id in the envelope: identical bodies still collapse.
	body := []byte(`{"event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment"}}`)
	sig := signBody(body, "whsec")

	if _, created, _ := svc.RegisterEvent(context.Background(), body, sig); !created {
		t.Fatal("first delivery must be created")
	}
	if _, created, _ := svc.RegisterEvent(context.Background(), body, sig); created {
		t.Fatal("identical body must dedup")
	}
}

func TestRegisterEventInvalidSignature(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, "")

	body := []byte(`{"id":"evt_1","event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment"}}`)
	ev, _, err := svc.RegisterEvent(context.Background(), body, signBody(body, "wrong-secret"))
	if err != nil {
		t.Fatalf("RegisterEvent: %v", err)
	}
	if ev.SignatureValid {
		t.Fatal("signature must be invalid")
	}
	if ev.Status != models.EventStatusFailed {
		t.Fatalf("status = %q, want failed", ev.Status)
	}

	// Processing must refuse to touch it.
	if err := svc.HandleEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	stored, _ := repo.GetWebhookEvent(ev.ID)
	if stored.Status != models.EventStatusFailed {
		t.Fatalf("invalid-signature event was processed: %q", stored.Status)
	}

	var dse *DomainStateError
	if err := svc.ReplayEvent(context.Background(), ev.ID); !errors.As(err, &dse) {
		t.Fatalf("replay err = %v, want DomainStateError", err)
	}
}

func TestHandleEventUnknownMerchantIsProcessed(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, "")

	body := []byte(`{"id":"evt_1","event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment","merchant_id":"mch_ghost","amount":{"value":"5.00","currency":"RUB"}}}`)
	ev := registerAndHandle(t, svc, body)

	if ev.Status != models.EventStatusProcessed {
		t.Fatalf("status = %q, want processed for unknown merchant", ev.Status)
	}
	if ev.ProcessingError == "" {
		t.Fatal("the unknown-entity note must be kept on the row")
	}
}

func TestHandleEventIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	onboardedMerchant(t, repo, org.ID, "mch_1")

	body := []byte(`{"id":"evt_1","event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment","merchant_id":"mch_1","amount":{"value":"5.00","currency":"RUB"},"metadata":{"transaction_id":"txn_1"}}}`)
	ev := registerAndHandle(t, svc, body)
	if ev.Status != models.EventStatusProcessed {
		t.Fatalf("status = %q", ev.Status)
	}
	processedAt := ev.ProcessedAt

	if err := svc.HandleEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("second HandleEvent: %v", err)
	}
	stored, _ := repo.GetWebhookEvent(ev.ID)
	if !stored.ProcessedAt.Equal(*processedAt) {
		t.Fatal("reprocessing must be a no-op")
	}
}

func TestHandleEventFailureIsCapturedNotPropagated(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	onboardedMerchant(t, repo, org.ID, "mch_1")

	// Malformed amount makes the payment fold fail.
	body := []byte(`{"id":"evt_1","event_type":"payment.succeeded","object":{"id":"pay_1","type":"payment","merchant_id":"mch_1","amount":{"value":"not-a-number","currency":"RUB"},"metadata":{"transaction_id":"txn_1"}}}`)
	ev := registerAndHandle(t, svc, body)

	if ev.Status != models.EventStatusFailed {
		t.Fatalf("status = %q, want failed", ev.Status)
	}
	if ev.ProcessingError == "" {
		t.Fatal("failure reason not recorded")
	}
}

func TestReplayFailedEvent(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")

	body := []byte(`{"id":"evt_1","event_type":"merchant.updated","object":{"id":"mch_1","type":"merchant","status":"active"}}`)
	ev, _, err := svc.RegisterEvent(context.Background(), body, signBody(body, "whsec"))
	if err != nil {
		t.Fatal(err)
	}

	// Force a failure by marking the row failed, then onboard the
	// merchant and replay.
	ev.Status = models.EventStatusFailed
	ev.ProcessingError = "merchant not found"
	_ = repo.SaveWebhookEvent(ev)

	onboardedMerchant(t, repo, org.ID, "mch_1")
	if err := svc.ReplayEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("ReplayEvent: %v", err)
	}

	stored, _ := repo.GetWebhookEvent(ev.ID)
	if stored.Status != models.EventStatusProcessed {
		t.Fatalf("status = %q, want processed after replay", stored.Status)
	}
}

func TestReplayStaleProcessingEvent(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	onboardedMerchant(t, repo, org.ID, "mch_1")

	body := []byte(`{"id":"evt_1","event_type":"merchant.updated","object":{"id":"mch_1","type":"merchant","status":"active"}}`)
	ev, _, err := svc.RegisterEvent(context.Background(), body, signBody(body, "whsec"))
	if err != nil {
		t.Fatal(err)
	}

	// A worker that crashed mid-flight leaves the row in processing. A
	// fresh processing row still belongs to its worker and is refused.
	ev.Status = models.EventStatusProcessing
	ev.UpdatedAt = time.Now()
	_ = repo.SaveWebhookEvent(ev)

	var stateErr *DomainStateError
	if err := svc.ReplayEvent(context.Background(), ev.ID); !errors.As(err, &stateErr) {
		t.Fatalf("replaying a fresh processing event: got %v, want DomainStateError", err)
	}

	// Once the row has sat in processing past the staleness window the
	// operator can reclaim it.
	ev.UpdatedAt = time.Now().Add(-staleProcessingAge - time.Minute)
	_ = repo.SaveWebhookEvent(ev)

	if err := svc.ReplayEvent(context.Background(), ev.ID); err != nil {
		t.Fatalf("ReplayEvent: %v", err)
	}
	stored, _ := repo.GetWebhookEvent(ev.ID)
	if stored.Status != models.EventStatusProcessed {
		t.Fatalf("status = %q, want processed after stale replay", stored.Status)
	}
}

func TestWebhookRefundCancelsFullyRefundedTransaction(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	pay := paymentFromJSON(t, `{
		"id": "pay_1", "status": "succeeded",
		"amount": {"value": "100.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_1"}
	}`)
	if err := svc.StorePayment(context.Background(), m, pay, nil); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"id":"evt_r","event_type":"refund.succeeded","object":{"id":"ref_1","type":"refund","payment_id":"pay_1","status":"succeeded","amount":{"value":"100.00","currency":"RUB"}}}`)
	ev := registerAndHandle(t, svc, body)
	if ev.Status != models.EventStatusProcessed {
		t.Fatalf("refund event status = %q (%s)", ev.Status, ev.ProcessingError)
	}

	txn, _ := repo.GetTransactionByTransactionID("txn_1")
	if txn.Status != models.TransactionStatusCancelled {
		t.Fatalf("fully refunded transaction status = %q, want cancelled", txn.Status)
	}
}

func TestWebhookRefundWaitsForOrganizationLock(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	pay := paymentFromJSON(t, `{
		"id": "pay_1", "status": "succeeded",
		"amount": {"value": "100.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_1"}
	}`)
	if err := svc.StorePayment(context.Background(), m, pay, nil); err != nil {
		t.Fatal(err)
	}

	payload, err := gateway.ParseWebhookPayload([]byte(`{"id":"evt_r","event_type":"refund.succeeded","object":{"id":"ref_1","type":"refund","payment_id":"pay_1","status":"succeeded","amount":{"value":"100.00","currency":"RUB"}}}`))
	if err != nil {
		t.Fatal(err)
	}

	// A racing payment fold holds the organization lock; the refund fold
	// must queue behind it instead of interleaving writes.
	unlock := svc.locks.Lock(org.ID)
	done := make(chan error, 1)
	go func() { done <- svc.handleRefundEvent(payload) }()

	select {
	case <-done:
		unlock()
		t.Fatal("refund fold ran while the organization lock was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("handleRefundEvent: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refund fold never acquired the lock")
	}

	txn, _ := repo.GetTransactionByTransactionID("txn_1")
	if txn.Status != models.TransactionStatusCancelled {
		t.Fatalf("transaction status = %q, want cancelled", txn.Status)
	}
}

// The full happy path: onboard a merchant, activate it by webhook, then
// ingest a donation payment by webhook.
func TestMerchantLifecycleEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/merchants" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "mch_1", "status": "pending"})
			return
		}
		t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("helping hands")
	svc := newTestService(repo, srv.URL)

	draft, err := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{})
	if err != nil {
		t.Fatal(err)
	}
	m, err := svc.SubmitOnboarding(context.Background(), draft.ID, map[string]interface{}{"legal_name": "Helping Hands"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != models.MerchantStatusPending {
		t.Fatalf("after onboarding status = %q", m.Status)
	}

	occurred := time.Now().UTC().Format(time.RFC3339)
	activate := []byte(`{"id":"evt_m1","event_type":"merchant.succeeded","occurred_at":"` + occurred + `","object":{"id":"mch_1","type":"merchant","status":"active","contract_id":"ctr_1"}}`)
	ev := registerAndHandle(t, svc, activate)
	if ev.Status != models.EventStatusProcessed {
		t.Fatalf("merchant event status = %q (%s)", ev.Status, ev.ProcessingError)
	}

	active, _ := repo.GetMerchantByExternalID("mch_1")
	if active.Status != models.MerchantStatusActive {
		t.Fatalf("merchant status = %q, want active", active.Status)
	}
	if active.ActivatedAt == nil {
		t.Fatal("ActivatedAt not set")
	}

	payment := []byte(`{"id":"evt_p1","event_type":"payment.succeeded","object":{"id":"pay_77","type":"payment","status":"succeeded","merchant_id":"mch_1","amount":{"value":"500.00","currency":"RUB"},"metadata":{"transaction_id":"txn_9","organization_id":42}}}`)
	ev = registerAndHandle(t, svc, payment)
	if ev.Status != models.EventStatusProcessed {
		t.Fatalf("payment event status = %q (%s)", ev.Status, ev.ProcessingError)
	}

	txn, err := repo.GetTransactionByTransactionID("txn_9")
	if err != nil {
		t.Fatal(err)
	}
	if txn.AmountMinor != 50000 || txn.Status != models.TransactionStatusCompleted || !txn.CreatedViaOurSite {
		t.Fatalf("transaction = %+v", txn)
	}
	detail, err := repo.GetPaymentDetailByExternalID("pay_77")
	if err != nil {
		t.Fatal(err)
	}
	if detail.PaymentTransactionID != txn.ID {
		t.Fatalf("detail links %d, want %d", detail.PaymentTransactionID, txn.ID)
	}
}
