package partner

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/gateway"
)

// BeginAuthorization returns the processor authorization URL the
// organization's admin is redirected to. The caller owns the CSRF state
// token and must keep it server-side until the callback returns it.
func (s *Service) BeginAuthorization(orgID uint, redirectURI, state string) (string, error) {
	settings, err := s.repo.GatewaySettings()
	if err != nil {
		return "", err
	}
	if settings.ClientID == "" {
		return "", &gateway.ConfigurationError{Reason: "gateway client id is not configured"}
	}

	// The merchant must exist as a draft before the admin leaves the site,
	// otherwise the callback has nothing to attach the grant to.
	if _, err := s.CreateDraft(context.Background(), orgID, models.MerchantSettings{}); err != nil {
		return "", err
	}

	return gateway.BuildAuthorizeURL(settings.OAuthBaseURL, settings.ClientID, redirectURI, state)
}

// CompleteOAuth exchanges the callback code for tokens and binds the grant
// to the organization's merchant. A fresh grant is the one path that
// reopens a blocked merchant.
func (s *Service) CompleteOAuth(ctx context.Context, orgID uint, code, redirectURI string) (*models.Merchant, error) {
	if code == "" {
		return nil, &DomainStateError{Message: "authorization code is missing"}
	}

	settings, err := s.repo.GatewaySettings()
	if err != nil {
		return nil, err
	}
	client, err := s.clients.ForSettings(settings)
	if err != nil {
		return nil, err
	}

	tok, err := client.ExchangeOAuthCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	grant := gateway.Credentials{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		AuthorizedAt: &now,
	}
	if tok.ExpiresIn > 0 {
		exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
		grant.TokenExpiresAt = &exp
	}

	unlock := s.locks.Lock(orgID)
	defer unlock()

	var out *models.Merchant
	err = s.repo.WithTx(func(repo Repository) error {
		m, err := repo.GetMerchantByOrganization(orgID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Authorization normally starts from BeginAuthorization, which
			// pre-creates the draft. A callback can still arrive for an
			// organization without a row, so create one here too.
			m = &models.Merchant{OrganizationID: orgID, Status: models.MerchantStatusDraft}
			if err := repo.CreateMerchant(m); err != nil {
				return err
			}
			org, err := repo.GetOrganization(orgID)
			if err != nil {
				return err
			}
			org.MerchantID = &m.ID
			if err := repo.SaveOrganization(org); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		if err := m.MergeCredentials(grant); err != nil {
			return err
		}
		if m.Status == models.MerchantStatusBlocked || m.Status == models.MerchantStatusDraft {
			m.Status = models.MerchantStatusPending
		}
		if err := repo.SaveMerchant(m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The token-scoped identity lookup binds the external id for merchants
	// that were authorized on the processor side before onboarding here.
	if !out.HasExternalID() {
		org, oerr := s.repo.GetOrganization(orgID)
		if oerr != nil {
			return nil, oerr
		}
		if tc, cerr := s.clients.ForOrganization(org, out); cerr == nil {
			if remote, gerr := tc.GetMe(ctx); gerr == nil && remote.ID != "" {
				out.ExternalID = &remote.ID
				applyRemoteMerchant(out, remote, nil)
				if serr := s.repo.SaveMerchant(out); serr != nil {
					return nil, serr
				}
			} else if gerr != nil {
				log.Warnf("[Partner] post-authorization identity lookup failed for organization %d: %v", orgID, gerr)
			}
		}
	}

	log.Infof("[Partner] organization %d completed gateway authorization, merchant %d is %s", orgID, out.ID, out.Status)
	return out, nil
}
