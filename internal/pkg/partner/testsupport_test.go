package partner

import (
	"sync"

	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
)

// fakeRepo is an in-memory Repository. Lookups return copies so a mutation
// only becomes visible after the corresponding Save, mirroring how the GORM
// repository behaves.
type fakeRepo struct {
	mu sync.Mutex

	orgs         map[uint]models.Organization
	merchants    map[uint]models.Merchant
	details      map[uint]models.PaymentDetail
	transactions map[uint]models.PaymentTransaction
	payouts      map[string]models.Payout
	events       map[uint]models.WebhookEvent

	settings models.GatewaySettings
	nextID   uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orgs:         make(map[uint]models.Organization),
		merchants:    make(map[uint]models.Merchant),
		details:      make(map[uint]models.PaymentDetail),
		transactions: make(map[uint]models.PaymentTransaction),
		payouts:      make(map[string]models.Payout),
		events:       make(map[uint]models.WebhookEvent),
		settings: models.GatewaySettings{
			ClientID:      "client-id",
			ClientSecret:  "client-secret",
			WebhookSecret: "whsec",
		},
	}
}

func (f *fakeRepo) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) addOrganization(name string) *models.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	org := models.Organization{ID: f.id(), Name: name}
	f.orgs[org.ID] = org
	return &org
}

func (f *fakeRepo) WithTx(fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) GetOrganization(id uint) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	org, ok := f.orgs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := org
	return &out, nil
}

func (f *fakeRepo) SaveOrganization(org *models.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if org.ID == 0 {
		org.ID = f.id()
	}
	f.orgs[org.ID] = *org
	return nil
}

func (f *fakeRepo) GetMerchant(id uint) (*models.Merchant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.merchants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := m
	return &out, nil
}

func (f *fakeRepo) GetMerchantByOrganization(orgID uint) (*models.Merchant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.merchants {
		if m.OrganizationID == orgID {
			out := m
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetMerchantByExternalID(externalID string) (*models.Merchant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.merchants {
		if m.ExternalID != nil && *m.ExternalID == externalID {
			out := m
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateMerchant(m *models.Merchant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = f.id()
	f.merchants[m.ID] = *m
	return nil
}

func (f *fakeRepo) SaveMerchant(m *models.Merchant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == 0 {
		m.ID = f.id()
	}
	f.merchants[m.ID] = *m
	return nil
}

func (f *fakeRepo) ListOnboardedMerchants() ([]models.Merchant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Merchant
	for _, m := range f.merchants {
		if m.ExternalID != nil && *m.ExternalID != "" {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetPaymentDetailByExternalID(externalID string) (*models.PaymentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.details {
		if d.ExternalID == externalID {
			out := d
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SavePaymentDetail(d *models.PaymentDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == 0 {
		d.ID = f.id()
	}
	f.details[d.ID] = *d
	return nil
}

func (f *fakeRepo) GetTransaction(id uint) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := t
	return &out, nil
}

func (f *fakeRepo) GetTransactionByTransactionID(transactionID string) (*models.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transactions {
		if t.TransactionID == transactionID {
			out := t
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveTransaction(t *models.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == 0 {
		t.ID = f.id()
	}
	f.transactions[t.ID] = *t
	return nil
}

func (f *fakeRepo) GetPayoutByExternalID(externalID string) (*models.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payouts[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := p
	return &out, nil
}

func (f *fakeRepo) UpsertPayout(p *models.Payout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.payouts[p.ExternalID]; ok {
		p.ID = existing.ID
	} else {
		p.ID = f.id()
	}
	f.payouts[p.ExternalID] = *p
	return nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(ev *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.events {
		if existing.ExternalEventID == ev.ExternalEventID {
			out := existing
			return false, &out, nil
		}
	}
	ev.ID = f.id()
	f.events[ev.ID] = *ev
	out := *ev
	return true, &out, nil
}

func (f *fakeRepo) GetWebhookEvent(id uint) (*models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := ev
	return &out, nil
}

func (f *fakeRepo) SaveWebhookEvent(ev *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = f.id()
	}
	f.events[ev.ID] = *ev
	return nil
}

func (f *fakeRepo) GatewaySettings() (*models.GatewaySettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.settings
	return &out, nil
}
