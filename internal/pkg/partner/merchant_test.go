package partner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

func newTestService(repo *fakeRepo, srvURL string) *Service {
	var opts []gateway.Option
	if srvURL != "" {
		opts = append(opts,
			gateway.WithBaseURL(srvURL),
			gateway.WithOAuthBaseURL(srvURL),
		)
	}
	return NewService(repo, NewClientFactory(repo, opts...))
}

func TestCreateDraftIsIdempotentPerOrganization(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("helping hands")
	svc := newTestService(repo, "")

	first, err := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{ReturnURL: "https://example.org/done"})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if first.Status != models.MerchantStatusDraft {
		t.Fatalf("new merchant status = %q, want draft", first.Status)
	}

	second, err := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{StatementDescriptor: "HELPING HANDS"})
	if err != nil {
		t.Fatalf("CreateDraft twice: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second CreateDraft created a new merchant: %d != %d", second.ID, first.ID)
	}

	// Settings from both calls survive the merge.
	s := second.Settings()
	if s.ReturnURL != "https://example.org/done" || s.StatementDescriptor != "HELPING HANDS" {
		t.Fatalf("merged settings = %+v", s)
	}

	stored, _ := repo.GetOrganization(org.ID)
	if stored.MerchantID == nil || *stored.MerchantID != first.ID {
		t.Fatalf("organization back-reference not set: %v", stored.MerchantID)
	}
}

func TestSubmitOnboardingBindsExternalID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/merchants" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":            "mch_1",
			"status":        "pending",
			"onboarding_id": "onb_1",
		})
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)

	draft, err := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}

	m, err := svc.SubmitOnboarding(context.Background(), draft.ID, map[string]interface{}{"legal_name": "Org LLC"})
	if err != nil {
		t.Fatalf("SubmitOnboarding: %v", err)
	}
	if m.ExternalID == nil || *m.ExternalID != "mch_1" {
		t.Fatalf("external id = %v, want mch_1", m.ExternalID)
	}
	if m.Status != models.MerchantStatusPending {
		t.Fatalf("status = %q, want pending", m.Status)
	}
	if m.OnboardingID != "onb_1" {
		t.Fatalf("onboarding id = %q", m.OnboardingID)
	}
}

func TestSyncRequiresExternalID(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")

	draft, _ := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{})

	_, err := svc.Sync(context.Background(), draft.ID)
	var dse *DomainStateError
	if !errors.As(err, &dse) {
		t.Fatalf("Sync without external id: err = %v, want DomainStateError", err)
	}
}

func TestSyncWithoutTokenTouchesLastSyncedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no gateway call expected, got %s %s", r.Method, r.URL.Path)
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)

	ext := "mch_1"
	m := &models.Merchant{OrganizationID: org.ID, ExternalID: &ext, Status: models.MerchantStatusPending}
	if err := repo.CreateMerchant(m); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Sync(context.Background(), m.ID)
	var dse *DomainStateError
	if !errors.As(err, &dse) {
		t.Fatalf("Sync without token: err = %v, want DomainStateError", err)
	}

	stored, _ := repo.GetMerchant(m.ID)
	if stored.LastSyncedAt == nil {
		t.Fatal("LastSyncedAt not recorded on attempted sync")
	}
}

func TestSyncFallsBackToMeOnAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/merchants/mch_1":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":"invalid_credentials","description":"scope"}`))
		case "/me":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":          "mch_1",
				"status":      "active",
				"contract_id": "ctr_9",
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)

	ext := "mch_1"
	m := &models.Merchant{OrganizationID: org.ID, ExternalID: &ext, Status: models.MerchantStatusPending}
	_ = m.SetCredentials(gateway.Credentials{AccessToken: "tok"})
	if err := repo.CreateMerchant(m); err != nil {
		t.Fatal(err)
	}

	synced, err := svc.Sync(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if synced.Status != models.MerchantStatusActive {
		t.Fatalf("status = %q, want active (from /me fallback)", synced.Status)
	}
	if synced.ContractID != "ctr_9" {
		t.Fatalf("contract id = %q", synced.ContractID)
	}
	if synced.ActivatedAt == nil {
		t.Fatal("ActivatedAt not set on first activation")
	}
}

func TestApplyRemoteMerchant(t *testing.T) {
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stale event is skipped", func(t *testing.T) {
		m := &models.Merchant{Status: models.MerchantStatusActive, LastEventAt: &later}
		applied := applyRemoteMerchant(m, &gateway.MerchantObject{Status: "pending"}, &earlier)
		if applied {
			t.Fatal("stale event must not apply")
		}
		if m.Status != models.MerchantStatusActive {
			t.Fatalf("status regressed to %q", m.Status)
		}
	})

	t.Run("blocked status is kept", func(t *testing.T) {
		m := &models.Merchant{Status: models.MerchantStatusBlocked}
		applyRemoteMerchant(m, &gateway.MerchantObject{Status: "active"}, nil)
		if m.Status != models.MerchantStatusBlocked {
			t.Fatalf("remote fold reopened a blocked merchant: %q", m.Status)
		}
	})

	t.Run("activated_at set once", func(t *testing.T) {
		first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		m := &models.Merchant{Status: models.MerchantStatusActive, ActivatedAt: &first}
		applyRemoteMerchant(m, &gateway.MerchantObject{Status: "active"}, nil)
		if !m.ActivatedAt.Equal(first) {
			t.Fatalf("ActivatedAt rewritten: %v", m.ActivatedAt)
		}
	})

	t.Run("event time recorded", func(t *testing.T) {
		m := &models.Merchant{Status: models.MerchantStatusPending, LastEventAt: &earlier}
		applied := applyRemoteMerchant(m, &gateway.MerchantObject{Status: "active"}, &later)
		if !applied {
			t.Fatal("newer event must apply")
		}
		if m.LastEventAt == nil || !m.LastEventAt.Equal(later) {
			t.Fatalf("LastEventAt = %v, want %v", m.LastEventAt, later)
		}
	})
}

func TestDeactivateBlocksAndRecordsReason(t *testing.T) {
	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, "")

	m, _ := svc.CreateDraft(context.Background(), org.ID, models.MerchantSettings{})
	if err := svc.Deactivate(context.Background(), m.ID, "chargeback spike"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	stored, _ := repo.GetMerchant(m.ID)
	if stored.Status != models.MerchantStatusBlocked {
		t.Fatalf("status = %q, want blocked", stored.Status)
	}
	if stored.Settings().DeactivationReason != "chargeback spike" {
		t.Fatalf("reason = %q", stored.Settings().DeactivationReason)
	}
}

func TestCompleteOAuthReopensBlockedMerchant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token":  "at-new",
				"refresh_token": "rt-new",
				"expires_in":    3600,
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	repo := newFakeRepo()
	org := repo.addOrganization("org")
	svc := newTestService(repo, srv.URL)

	ext := "mch_1"
	m := &models.Merchant{OrganizationID: org.ID, ExternalID: &ext, Status: models.MerchantStatusBlocked}
	if err := repo.CreateMerchant(m); err != nil {
		t.Fatal(err)
	}

	out, err := svc.CompleteOAuth(context.Background(), org.ID, "code-123", "https://example.org/cb")
	if err != nil {
		t.Fatalf("CompleteOAuth: %v", err)
	}
	if out.Status != models.MerchantStatusPending {
		t.Fatalf("status = %q, want pending after fresh grant", out.Status)
	}

	creds := out.Credentials()
	if creds.AccessToken != "at-new" || creds.RefreshToken != "rt-new" {
		t.Fatalf("credentials not merged: %+v", creds)
	}
	if creds.AuthorizedAt == nil || creds.TokenExpiresAt == nil {
		t.Fatal("grant timestamps missing")
	}
}

func TestSyncAuthorizedMerchantsCountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/merchants/mch_ok":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "mch_ok", "status": "active"})
		case "/merchants/mch_bad":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"code":"internal_server_error","description":"boom"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	repo := newFakeRepo()
	orgA := repo.addOrganization("a")
	orgB := repo.addOrganization("b")
	svc := newTestService(repo, srv.URL)

	okID, badID := "mch_ok", "mch_bad"
	_ = repo.CreateMerchant(&models.Merchant{OrganizationID: orgA.ID, ExternalID: &okID, Status: models.MerchantStatusPending})
	_ = repo.CreateMerchant(&models.Merchant{OrganizationID: orgB.ID, ExternalID: &badID, Status: models.MerchantStatusPending})

	report, err := svc.SyncAuthorizedMerchants(context.Background())
	if err != nil {
		t.Fatalf("SyncAuthorizedMerchants: %v", err)
	}
	if report.Synced != 1 || report.Failed != 1 {
		t.Fatalf("report = %+v, want 1 synced / 1 failed", report)
	}

	stored, _ := repo.GetMerchantByExternalID("mch_ok")
	if stored.Status != models.MerchantStatusActive {
		t.Fatalf("synced merchant status = %q, want active", stored.Status)
	}
}

func TestAttachMerchantRejectsForeignBinding(t *testing.T) {
	repo := newFakeRepo()
	orgA := repo.addOrganization("a")
	orgB := repo.addOrganization("b")
	svc := newTestService(repo, "")

	ext := "mch_1"
	_ = repo.CreateMerchant(&models.Merchant{OrganizationID: orgA.ID, ExternalID: &ext, Status: models.MerchantStatusActive})

	_, err := svc.AttachMerchant(context.Background(), orgB.ID, "mch_1")
	var dse *DomainStateError
	if !errors.As(err, &dse) {
		t.Fatalf("attach of foreign merchant: err = %v, want DomainStateError", err)
	}
}
