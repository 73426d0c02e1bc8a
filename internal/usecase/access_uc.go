// File: internal/usecase/access_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"seat-marketplace/internal/domain"
	"seat-marketplace/internal/domain/model"
	"seat-marketplace/internal/domain/ports/adapter"
	"seat-marketplace/internal/domain/ports/repository"
	"seat-marketplace/internal/infra/logging"
	"seat-marketplace/internal/infra/metrics"
	"seat-marketplace/internal/infra/security"
)

// Compile-time check
var _ AccessGateway = (*accessGateway)(nil)

// AccessGateway issues and consumes single-use access tokens, delivers access
// instructions and turns a failed access confirmation into a dispute.
type AccessGateway interface {
	GenerateAccessToken(ctx context.Context, purchaseID, requestedBy string, expiryMinutes int) (*IssuedToken, error)
	VerifyAccessToken(ctx context.Context, purchaseID, secret string) (*model.AccessToken, error)
	MarkTokenAsUsed(ctx context.Context, tokenID, ip, userAgent string) error
	ProvideAccessInstructions(ctx context.Context, req AccessRequest) (*AccessInstructions, error)
	ConfirmAccess(ctx context.Context, req ConfirmAccessRequest) (*ConfirmAccessResult, error)
}

type AccessConfig struct {
	TokenTTL       time.Duration
	ResolutionDays int
	Retry          RetryPolicy
	Now            func() time.Time
}

// IssuedToken carries the raw secret. It is the only place the secret ever appears.
type IssuedToken struct {
	TokenID    string
	PurchaseID string
	Secret     string
	ExpiresAt  time.Time
}

// AccessRequest is a request for instructions. UserID is set for authenticated
// callers; Token for callers following a delivery link. Either or both may be set.
type AccessRequest struct {
	PurchaseID string
	UserID     string
	Token      string
	IPAddress  string
	UserAgent  string
}

type AccessInstructions struct {
	PurchaseID     string
	SubscriptionID string
	Instructions   string
	DeliveredVia   string // "account" or "token"
}

type ConfirmAccessRequest struct {
	BuyerID     string
	PurchaseID  string
	IsWorking   bool
	Description string
}

type ConfirmAccessResult struct {
	PurchaseID string
	Status     model.PurchaseStatus
	Confirmed  bool
	DisputeID  string
}

const (
	deliveredViaAccount = "account"
	deliveredViaToken   = "token"

	defaultAccessProblem = "Buyer reported that the delivered access does not work."
)

type accessGateway struct {
	stores Stores
	vault  adapter.InstructionVault
	hasher adapter.TokenHasher
	exec   *txExecutor
	cfg    AccessConfig
	now    func() time.Time
	log    *zerolog.Logger
}

func NewAccessGateway(stores Stores, vault adapter.InstructionVault, hasher adapter.TokenHasher, publisher adapter.EventPublisher, cfg AccessConfig, logger *zerolog.Logger) *accessGateway {
	l := logger.With().Str("component", "access_gateway").Logger()
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ResolutionDays <= 0 {
		cfg.ResolutionDays = 3
	}
	return &accessGateway{
		stores: stores,
		vault:  vault,
		hasher: hasher,
		exec:   newTxExecutor(stores.TxManager, publisher, cfg.Retry, &l),
		cfg:    cfg,
		now:    clockOrDefault(cfg.Now),
		log:    &l,
	}
}

// GenerateAccessToken issues a token for a completed purchase. When requestedBy is
// set it must be the buyer; an empty requestedBy is a trusted internal caller.
func (g *accessGateway) GenerateAccessToken(ctx context.Context, purchaseID, requestedBy string, expiryMinutes int) (*IssuedToken, error) {
	defer logging.TraceDuration(g.log, "AccessGateway.GenerateAccessToken")()

	if strings.TrimSpace(purchaseID) == "" {
		return nil, domain.Invalid("purchase_id", "required")
	}
	if expiryMinutes < 0 {
		return nil, domain.Invalid("expiry_minutes", "must not be negative")
	}

	purchase, err := g.stores.Purchases.FindByID(ctx, repository.NoTX, purchaseID)
	if err != nil {
		return nil, notFoundAs(err, "purchase", purchaseID)
	}
	if requestedBy != "" && requestedBy != purchase.UserID {
		return nil, domain.Forbidden(requestedBy, "issue access token")
	}
	if !purchase.AccessProvided {
		return nil, domain.Rule(domain.RuleAccessNotProvided)
	}

	ttl := g.cfg.TokenTTL
	if expiryMinutes > 0 {
		ttl = time.Duration(expiryMinutes) * time.Minute
	}
	now := g.now()
	secret, err := security.NewOpaqueToken(0)
	if err != nil {
		return nil, err
	}
	id, err := security.NewULID(now)
	if err != nil {
		return nil, err
	}
	tok, err := model.NewAccessToken(id, purchase.ID, g.hasher.Hash(secret), ttl, now)
	if err != nil {
		return nil, err
	}
	if err := g.stores.AccessTokens.Save(ctx, repository.NoTX, tok); err != nil {
		return nil, err
	}
	metrics.IncAccessTokenIssued()
	g.log.Info().Str("purchase_id", purchase.ID).Str("token_id", tok.ID).Time("expires_at", tok.ExpiresAt).Msg("access token issued")

	return &IssuedToken{TokenID: tok.ID, PurchaseID: purchase.ID, Secret: secret, ExpiresAt: tok.ExpiresAt}, nil
}

// VerifyAccessToken checks a presented secret without consuming it.
func (g *accessGateway) VerifyAccessToken(ctx context.Context, purchaseID, secret string) (*model.AccessToken, error) {
	tok, err := g.verify(ctx, repository.NoTX, purchaseID, secret)
	if err != nil {
		metrics.IncAccessTokenCheck(tokenCheckLabel(err))
		return nil, err
	}
	metrics.IncAccessTokenCheck("ok")
	return tok, nil
}

func (g *accessGateway) verify(ctx context.Context, tx repository.Tx, purchaseID, secret string) (*model.AccessToken, error) {
	if strings.TrimSpace(purchaseID) == "" || strings.TrimSpace(secret) == "" {
		return nil, &domain.TokenError{Reason: domain.TokenInvalid}
	}
	tok, err := g.stores.AccessTokens.FindByPurchaseAndHash(ctx, tx, purchaseID, g.hasher.Hash(secret))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.TokenError{Reason: domain.TokenInvalid}
	}
	if err != nil {
		return nil, err
	}
	if err := tok.Check(g.now()); err != nil {
		return nil, err
	}
	return tok, nil
}

// MarkTokenAsUsed consumes a token. A used or expired token is a rule violation.
func (g *accessGateway) MarkTokenAsUsed(ctx context.Context, tokenID, ip, userAgent string) error {
	if strings.TrimSpace(tokenID) == "" {
		return domain.Invalid("token_id", "required")
	}
	return g.exec.run(ctx, "access.mark_token_used", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		tok, err := g.stores.AccessTokens.FindByID(ctx, tx, tokenID)
		if err != nil {
			return nil, notFoundAs(err, "access_token", tokenID)
		}
		if err := tok.MarkUsed(g.now(), ip, userAgent); err != nil {
			return nil, err
		}
		return nil, g.stores.AccessTokens.Save(ctx, tx, tok)
	}, attribute.String("token_id", tokenID))
}

// ProvideAccessInstructions releases the purchase's instructions. The owning buyer
// is served directly and any token they also present is ignored. Anyone else must
// present a token, which is consumed only when the instructions are delivered.
func (g *accessGateway) ProvideAccessInstructions(ctx context.Context, req AccessRequest) (*AccessInstructions, error) {
	defer logging.TraceDuration(g.log, "AccessGateway.ProvideAccessInstructions")()

	if strings.TrimSpace(req.PurchaseID) == "" {
		return nil, domain.Invalid("purchase_id", "required")
	}
	if req.UserID == "" && req.Token == "" {
		return nil, &domain.TokenError{Reason: domain.TokenInvalid}
	}

	purchase, err := g.stores.Purchases.FindByID(ctx, repository.NoTX, req.PurchaseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) && req.UserID == "" {
			// unauthenticated callers learn nothing about which purchases exist
			return nil, &domain.TokenError{Reason: domain.TokenInvalid}
		}
		return nil, notFoundAs(err, "purchase", req.PurchaseID)
	}

	var (
		sub  *model.Subscription
		text string
		via  = deliveredViaAccount
	)
	if req.UserID != "" && req.UserID == purchase.UserID {
		sub, text, err = g.instructions(ctx, repository.NoTX, purchase)
		if err != nil {
			return nil, err
		}
	} else {
		if req.Token == "" {
			return nil, domain.Forbidden(req.UserID, "view access instructions")
		}
		sub, text, err = g.consume(ctx, req, purchase)
		if err != nil {
			metrics.IncAccessTokenCheck(tokenCheckLabel(err))
			return nil, err
		}
		metrics.IncAccessTokenCheck("ok")
		via = deliveredViaToken
	}

	g.log.Info().Str("purchase_id", purchase.ID).Str("via", via).Msg("access instructions delivered")
	return &AccessInstructions{
		PurchaseID:     purchase.ID,
		SubscriptionID: sub.ID,
		Instructions:   text,
		DeliveredVia:   via,
	}, nil
}

// instructions opens the sealed instructions of a purchase whose access was provided.
func (g *accessGateway) instructions(ctx context.Context, tx repository.Tx, purchase *model.Purchase) (*model.Subscription, string, error) {
	if !purchase.AccessProvided {
		return nil, "", domain.Rule(domain.RuleAccessNotProvided)
	}
	sub, err := g.stores.Subscriptions.FindByID(ctx, tx, purchase.SubscriptionID)
	if err != nil {
		return nil, "", notFoundAs(err, "subscription", purchase.SubscriptionID)
	}
	if sub.AccessInstructionsRef == nil {
		return nil, "", domain.NotFound("access_instructions", sub.ID)
	}
	text, err := g.vault.Open(sub.ID, *sub.AccessInstructionsRef)
	if err != nil {
		return nil, "", err
	}
	return sub, text, nil
}

// consume verifies the presented token, opens the instructions and marks the token
// used in one storage transaction. Marking is the last step, so a failed delivery
// leaves the token spendable and two concurrent requests cannot both succeed.
func (g *accessGateway) consume(ctx context.Context, req AccessRequest, purchase *model.Purchase) (*model.Subscription, string, error) {
	var (
		sub  *model.Subscription
		text string
	)
	err := g.exec.run(ctx, "access.consume_token", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		tok, err := g.verify(ctx, tx, req.PurchaseID, req.Token)
		if err != nil {
			return nil, err
		}
		sub, text, err = g.instructions(ctx, tx, purchase)
		if err != nil {
			return nil, err
		}
		if err := tok.MarkUsed(g.now(), req.IPAddress, req.UserAgent); err != nil {
			switch domain.RuleCode(err) {
			case domain.RuleTokenUsed:
				return nil, &domain.TokenError{Reason: domain.TokenUsed}
			case domain.RuleTokenExpired:
				return nil, &domain.TokenError{Reason: domain.TokenExpired}
			}
			return nil, err
		}
		return nil, g.stores.AccessTokens.Save(ctx, tx, tok)
	}, attribute.String("purchase_id", req.PurchaseID))
	if err != nil {
		return nil, "", err
	}
	return sub, text, nil
}

// ConfirmAccess records the buyer's verdict on delivered access. A negative verdict
// flags the purchase and opens an access dispute against the seller; it does not refund.
func (g *accessGateway) ConfirmAccess(ctx context.Context, req ConfirmAccessRequest) (*ConfirmAccessResult, error) {
	defer logging.TraceDuration(g.log, "AccessGateway.ConfirmAccess")()

	switch {
	case strings.TrimSpace(req.BuyerID) == "":
		return nil, domain.Invalid("buyer_id", "required")
	case strings.TrimSpace(req.PurchaseID) == "":
		return nil, domain.Invalid("purchase_id", "required")
	}

	var (
		res    *ConfirmAccessResult
		opened bool
	)
	err := g.exec.run(ctx, "access.confirm", func(ctx context.Context, tx repository.Tx) ([]model.Event, error) {
		now := g.now()

		purchase, err := g.stores.Purchases.FindByID(ctx, tx, req.PurchaseID)
		if err != nil {
			return nil, notFoundAs(err, "purchase", req.PurchaseID)
		}
		if purchase.UserID != req.BuyerID {
			return nil, domain.Forbidden(req.BuyerID, "confirm access")
		}

		if req.IsWorking {
			events, err := purchase.ConfirmAccess(now)
			if err != nil {
				return nil, err
			}
			if err := g.stores.Purchases.Save(ctx, tx, purchase); err != nil {
				return nil, err
			}
			res = &ConfirmAccessResult{PurchaseID: purchase.ID, Status: purchase.Status, Confirmed: true}
			return events, nil
		}

		if !purchase.AccessProvided {
			return nil, domain.Rule(domain.RuleAccessNotProvided)
		}
		existing, err := g.stores.Disputes.FindOpenByPurchase(ctx, tx, purchase.ID)
		switch {
		case err == nil:
			res = &ConfirmAccessResult{PurchaseID: purchase.ID, Status: purchase.Status, DisputeID: existing.ID}
			return nil, nil
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}

		txn, err := g.stores.Transactions.FindByPurchaseID(ctx, tx, purchase.ID)
		if err != nil {
			return nil, notFoundAs(err, "transaction", purchase.ID)
		}
		desc := strings.TrimSpace(req.Description)
		if desc == "" {
			desc = defaultAccessProblem
		}
		dispute, events, err := model.NewDispute(model.DisputeParams{
			ID:                 newID(),
			ReporterID:         req.BuyerID,
			RespondentID:       txn.SellerID,
			ReportedEntityType: model.EntityPurchase,
			ReportedEntityID:   purchase.ID,
			SubscriptionID:     purchase.SubscriptionID,
			TransactionID:      txn.ID,
			DisputeType:        model.DisputeTypeAccess,
			Description:        desc,
			EvidenceRequired:   true,
			ResolutionWindow:   time.Duration(g.cfg.ResolutionDays) * 24 * time.Hour,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, purchase.MarkAsProblem(now)...)

		if err := g.stores.Disputes.Save(ctx, tx, dispute); err != nil {
			return nil, err
		}
		if err := g.stores.Purchases.Save(ctx, tx, purchase); err != nil {
			return nil, err
		}
		opened = true
		res = &ConfirmAccessResult{PurchaseID: purchase.ID, Status: purchase.Status, DisputeID: dispute.ID}
		return events, nil
	}, attribute.String("purchase_id", req.PurchaseID))
	if err != nil {
		return nil, err
	}
	if opened {
		metrics.IncDispute("opened")
	}
	return res, nil
}

func tokenCheckLabel(err error) string {
	if r := domain.TokenRejection(err); r != "" {
		return string(r)
	}
	return "error"
}
