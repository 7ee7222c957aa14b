package partner

import (
	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// ClientFactory resolves which credentials a gateway call should use and
// constructs a configured client. Resolution order, first non-empty wins:
// the merchant's own credential bag, then the organization's payment
// settings, then the global platform defaults. New merchants therefore work
// with shared defaults before a dedicated OAuth grant exists.
type ClientFactory interface {
	ForOrganization(org *models.Organization, merchant *models.Merchant) (*gateway.Client, error)
	ForSettings(settings *models.GatewaySettings) (*gateway.Client, error)
}

type clientFactory struct {
	repo Repository
	// extra options appended to every constructed client (tests point the
	// client at a local server through these).
	opts []gateway.Option
}

// NewClientFactory creates the default factory.
func NewClientFactory(repo Repository, opts ...gateway.Option) ClientFactory {
	return &clientFactory{repo: repo, opts: opts}
}

func (f *clientFactory) ForOrganization(org *models.Organization, merchant *models.Merchant) (*gateway.Client, error) {
	settings, err := f.repo.GatewaySettings()
	if err != nil {
		return nil, err
	}

	creds := settings.Credentials()
	if org != nil {
		if orgCreds := org.PaymentCredentials(); !orgCreds.IsZero() {
			creds = orgCreds
		}
	}
	if merchant != nil {
		if mCreds := merchant.Credentials(); !mCreds.IsZero() {
			creds = mCreds
		}
	}

	opts := f.baseOptions(settings)
	if merchant != nil && merchant.HasExternalID() {
		opts = append(opts, gateway.WithAccountID(*merchant.ExternalID))
	}
	return gateway.NewClient(creds, opts...)
}

func (f *clientFactory) ForSettings(settings *models.GatewaySettings) (*gateway.Client, error) {
	return gateway.NewClient(settings.Credentials(), f.baseOptions(settings)...)
}

func (f *clientFactory) baseOptions(settings *models.GatewaySettings) []gateway.Option {
	var opts []gateway.Option
	if settings.APIBaseURL != "" {
		opts = append(opts, gateway.WithBaseURL(settings.APIBaseURL))
	}
	if settings.OAuthBaseURL != "" {
		opts = append(opts, gateway.WithOAuthBaseURL(settings.OAuthBaseURL))
	}
	opts = append(opts, f.opts...)
	return opts
}
