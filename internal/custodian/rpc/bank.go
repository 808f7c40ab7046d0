package rpc

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Bank implements domain.AssetTransfer against the custodian API's asset
// endpoints, moving collected proceeds out of the intermediate holding
// account.
type Bank struct {
	client *Client
}

// NewBank creates a Bank using the given transport.
func NewBank(client *Client) *Bank {
	return &Bank{client: client}
}

// Transfer moves amount of asset to the recipient.
func (b *Bank) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	body := map[string]any{
		"asset":  asset.Hex(),
		"to":     to.Hex(),
		"amount": amount.String(),
	}
	_, err := b.client.doRequest(ctx, http.MethodPost, "/assets/transfer", body)
	return err
}

// UnwrapNative converts amount of the wrapped native asset and delivers the
// native settlement asset to the recipient.
func (b *Bank) UnwrapNative(ctx context.Context, wrapper, to common.Address, amount *big.Int) error {
	body := map[string]any{
		"wrapper": wrapper.Hex(),
		"to":      to.Hex(),
		"amount":  amount.String(),
	}
	_, err := b.client.doRequest(ctx, http.MethodPost, "/assets/unwrap", body)
	return err
}

var _ domain.AssetTransfer = (*Bank)(nil)
