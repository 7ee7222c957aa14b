package partner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

func paymentFromJSON(t *testing.T, raw string) *gateway.PaymentObject {
	t.Helper()
	p, err := gateway.ParsePayment([]byte(raw))
	if err != nil {
		t.Fatalf("ParsePayment: %v", err)
	}
	return p
}

func onboardedMerchant(t *testing.T, repo *fakeRepo, orgID uint, externalID string) *models.Merchant {
	t.Helper()
	m := &models.Merchant{OrganizationID: orgID, ExternalID: &externalID, Status: models.MerchantStatusActive}
	if err := repo.CreateMerchant(m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestStorePaymentCreatesLinkedTransaction(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	p := paymentFromJSON(t, `{
		"id": "pay_1",
		"status": "succeeded",
		"amount": {"value": "500.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_9", "organization_id": "42", "fundraiser_id": 7},
		"payment_method": {"type": "bank_card", "title": "Visa **** 4242"},
		"payer": {"email": "donor@example.org", "name": "J. Donor"}
	}`)

	if err := svc.StorePayment(context.Background(), m, p, nil); err != nil {
		t.Fatalf("StorePayment: %v", err)
	}

	txn, err := repo.GetTransactionByTransactionID("txn_9")
	if err != nil {
		t.Fatalf("transaction not created: %v", err)
	}
	if txn.AmountMinor != 50000 || txn.Currency != "RUB" {
		t.Fatalf("amount = %d %s, want 50000 RUB", txn.AmountMinor, txn.Currency)
	}
	if txn.Status != models.TransactionStatusCompleted {
		t.Fatalf("status = %q, want completed", txn.Status)
	}
	if !txn.CreatedViaOurSite {
		t.Fatal("metadata-carrying payment must be flagged as ours")
	}
	if txn.OrganizationID != 42 {
		t.Fatalf("organization backfill = %d, want 42", txn.OrganizationID)
	}
	if txn.FundraiserID == nil || *txn.FundraiserID != 7 {
		t.Fatalf("fundraiser backfill = %v, want 7", txn.FundraiserID)
	}
	if txn.PaidAt == nil {
		t.Fatal("PaidAt not set on completed transaction")
	}
	d := txn.Details()
	if d.Email != "donor@example.org" || d.PaymentMethodTitle != "Visa **** 4242" {
		t.Fatalf("donor details = %+v", d)
	}

	detail, err := repo.GetPaymentDetailByExternalID("pay_1")
	if err != nil {
		t.Fatalf("payment detail not created: %v", err)
	}
	if detail.PaymentTransactionID != txn.ID {
		t.Fatalf("detail links transaction %d, want %d", detail.PaymentTransactionID, txn.ID)
	}
	if detail.MerchantID != m.ID {
		t.Fatalf("detail merchant = %d, want %d", detail.MerchantID, m.ID)
	}
}

func TestStorePaymentProvenanceIsSticky(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	withMeta := paymentFromJSON(t, `{
		"id": "pay_1", "status": "pending",
		"amount": {"value": "10.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_9", "organization_id": 1}
	}`)
	if err := svc.StorePayment(context.Background(), m, withMeta, nil); err != nil {
		t.Fatal(err)
	}

	// A later snapshot of the same payment without metadata must not
	// unflag it, and must keep folding into the same transaction.
	withoutMeta := paymentFromJSON(t, `{
		"id": "pay_1", "status": "succeeded",
		"amount": {"value": "10.00", "currency": "RUB"},
		"merchant_id": "mch_1"
	}`)
	// Without metadata the fold resolves by the synthesized id, so point
	// it back at the same payment: the detail row keeps the linkage.
	detail, _ := repo.GetPaymentDetailByExternalID("pay_1")
	txnBefore, _ := repo.GetTransaction(detail.PaymentTransactionID)
	if !txnBefore.CreatedViaOurSite {
		t.Fatal("first fold must set the flag")
	}

	if err := svc.StorePayment(context.Background(), m, withoutMeta, nil); err != nil {
		t.Fatal(err)
	}

	txn, err := repo.GetTransactionByTransactionID("txn_9")
	if err != nil {
		t.Fatal(err)
	}
	if !txn.CreatedViaOurSite {
		t.Fatal("provenance flag must survive a metadata-less snapshot")
	}
}

func TestStorePaymentPartialMetadataIsNotOurs(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	// A transaction id alone does not prove our checkout initiated the
	// payment; the organization id has to be present too.
	p := paymentFromJSON(t, `{
		"id": "pay_1", "status": "succeeded",
		"amount": {"value": "10.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_9"}
	}`)
	if err := svc.StorePayment(context.Background(), m, p, nil); err != nil {
		t.Fatal(err)
	}

	txn, err := repo.GetTransactionByTransactionID("txn_9")
	if err != nil {
		t.Fatal(err)
	}
	if txn.CreatedViaOurSite {
		t.Fatal("payment without an organization id must not be flagged as ours")
	}
}

func TestStorePaymentSkipsStaleEvent(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	later := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	succeeded := paymentFromJSON(t, `{
		"id": "pay_1", "status": "succeeded",
		"amount": {"value": "10.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_9"}
	}`)
	if err := svc.StorePayment(context.Background(), m, succeeded, &later); err != nil {
		t.Fatal(err)
	}

	pending := paymentFromJSON(t, `{
		"id": "pay_1", "status": "pending",
		"amount": {"value": "10.00", "currency": "RUB"},
		"merchant_id": "mch_1",
		"metadata": {"transaction_id": "txn_9"}
	}`)
	if err := svc.StorePayment(context.Background(), m, pending, &earlier); err != nil {
		t.Fatal(err)
	}

	txn, _ := repo.GetTransactionByTransactionID("txn_9")
	if txn.Status != models.TransactionStatusCompleted {
		t.Fatalf("stale event regressed status to %q", txn.Status)
	}
}

func TestStorePaymentWithoutMetadataSynthesizesTransaction(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")
	m := onboardedMerchant(t, repo, org.ID, "mch_1")

	p := paymentFromJSON(t, `{
		"id": "pay_ext", "status": "succeeded",
		"amount": {"value": "25.50", "currency": "RUB"},
		"merchant_id": "mch_1"
	}`)
	if err := svc.StorePayment(context.Background(), m, p, nil); err != nil {
		t.Fatal(err)
	}

	txn, err := repo.GetTransactionByTransactionID("gw:pay_ext")
	if err != nil {
		t.Fatalf("synthesized transaction missing: %v", err)
	}
	if txn.CreatedViaOurSite {
		t.Fatal("externally created payment must not be flagged as ours")
	}
	if txn.OrganizationID != org.ID {
		t.Fatalf("organization = %d, want merchant's %d", txn.OrganizationID, org.ID)
	}
	if txn.AmountMinor != 2550 {
		t.Fatalf("amount = %d, want 2550", txn.AmountMinor)
	}
}

func TestSyncMerchantPaymentsWalksCursor(t *testing.T) {
	pageTwoServed := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("merchant_id") != "mch_1" {
			t.Fatalf("merchant_id filter missing: %s", r.URL.RawQuery)
		}
		if r.URL.Query().Get("cursor") == "" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"items": []map[string]interface{}{{
					"id": "pay_1", "status": "succeeded",
					"amount":      map[string]string{"value": "1.00", "currency": "RUB"},
					"merchant_id": "mch_1",
				}},
				"next_cursor": "c2",
			})
			return
		}
		pageTwoServed = true
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{
				"id": "pay_2", "status": "pending",
				"amount":      map[string]string{"value": "2.00", "currency": "RUB"},
				"merchant_id": "mch_1",
			}},
		})
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)
	m := onboardedMerchant(t, repo, org.ID, "mch_1")
	_ = m.SetCredentials(gateway.Credentials{AccessToken: "tok"})
	_ = repo.SaveMerchant(m)

	n, err := svc.SyncMerchantPayments(context.Background(), m.ID, nil)
	if err != nil {
		t.Fatalf("SyncMerchantPayments: %v", err)
	}
	if n != 2 {
		t.Fatalf("synced %d payments, want 2", n)
	}
	if !pageTwoServed {
		t.Fatal("cursor page never requested")
	}
	if _, err := repo.GetPaymentDetailByExternalID("pay_2"); err != nil {
		t.Fatalf("second page payment not stored: %v", err)
	}
}

func TestSyncMerchantPayoutsUpserts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payouts" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []map[string]interface{}{{
				"id": "po_1", "status": "succeeded",
				"amount":      map[string]string{"value": "120.00", "currency": "RUB"},
				"merchant_id": "mch_1",
			}},
		})
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)
	m := onboardedMerchant(t, repo, org.ID, "mch_1")
	_ = m.SetCredentials(gateway.Credentials{AccessToken: "tok"})
	_ = repo.SaveMerchant(m)

	for i := 0; i < 2; i++ {
		if _, err := svc.SyncMerchantPayouts(context.Background(), m.ID, nil); err != nil {
			t.Fatalf("SyncMerchantPayouts: %v", err)
		}
	}

	p, err := repo.GetPayoutByExternalID("po_1")
	if err != nil {
		t.Fatalf("payout not stored: %v", err)
	}
	if p.AmountMinor != 12000 {
		t.Fatalf("amount = %d, want 12000", p.AmountMinor)
	}
	if len(repo.payouts) != 1 {
		t.Fatalf("repeated sync duplicated payouts: %d rows", len(repo.payouts))
	}
}
