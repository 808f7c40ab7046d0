package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/veloralabs/liqlock/internal/domain"
)

// Custodian implements domain.PositionCustodian against the custodian API.
type Custodian struct {
	client *Client
}

// NewCustodian creates a Custodian using the given transport.
func NewCustodian(client *Client) *Custodian {
	return &Custodian{client: client}
}

// PositionInfo returns the current composition of a position.
func (c *Custodian) PositionInfo(ctx context.Context, id domain.PositionID) (domain.PositionInfo, error) {
	path := fmt.Sprintf("/positions/%d", id)
	respBody, err := c.client.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.PositionInfo{}, err
	}

	var resp struct {
		AssetA    string `json:"assetA"`
		AssetB    string `json:"assetB"`
		Liquidity string `json:"liquidity"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.PositionInfo{}, fmt.Errorf("custodian/rpc: decode position %d: %w", id, err)
	}

	liquidity, err := parseAmount(resp.Liquidity)
	if err != nil {
		return domain.PositionInfo{}, err
	}

	return domain.PositionInfo{
		AssetA:    common.HexToAddress(resp.AssetA),
		AssetB:    common.HexToAddress(resp.AssetB),
		Liquidity: liquidity,
	}, nil
}

// DecreaseLiquidity reduces the position's liquidity, honoring the caller's
// minimum-output guards and deadline. The custodian rejects expired or
// under-filled requests with an error status, which surfaces here.
func (c *Custodian) DecreaseLiquidity(ctx context.Context, id domain.PositionID, amount, minA, minB *big.Int, deadline uint64) (*big.Int, *big.Int, error) {
	path := fmt.Sprintf("/positions/%d/decrease", id)
	body := map[string]any{
		"amount":   amount.String(),
		"minA":     minA.String(),
		"minB":     minB.String(),
		"deadline": deadline,
	}

	respBody, err := c.client.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		WithdrawnA string `json:"withdrawnA"`
		WithdrawnB string `json:"withdrawnB"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, nil, fmt.Errorf("custodian/rpc: decode decrease result: %w", err)
	}

	withdrawnA, err := parseAmount(resp.WithdrawnA)
	if err != nil {
		return nil, nil, err
	}
	withdrawnB, err := parseAmount(resp.WithdrawnB)
	if err != nil {
		return nil, nil, err
	}
	return withdrawnA, withdrawnB, nil
}

// Collect sweeps owed proceeds for the position to the recipient.
func (c *Custodian) Collect(ctx context.Context, id domain.PositionID, recipient common.Address, maxA, maxB *big.Int) (*big.Int, *big.Int, error) {
	path := fmt.Sprintf("/positions/%d/collect", id)
	body := map[string]any{
		"recipient": recipient.Hex(),
		"maxA":      maxA.String(),
		"maxB":      maxB.String(),
	}

	respBody, err := c.client.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, nil, err
	}

	var resp struct {
		CollectedA string `json:"collectedA"`
		CollectedB string `json:"collectedB"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, nil, fmt.Errorf("custodian/rpc: decode collect result: %w", err)
	}

	collectedA, err := parseAmount(resp.CollectedA)
	if err != nil {
		return nil, nil, err
	}
	collectedB, err := parseAmount(resp.CollectedB)
	if err != nil {
		return nil, nil, err
	}
	return collectedA, collectedB, nil
}

// TransferOwnership hands the position to a new owner.
func (c *Custodian) TransferOwnership(ctx context.Context, id domain.PositionID, to common.Address) error {
	path := fmt.Sprintf("/positions/%d/transfer", id)
	body := map[string]any{"to": to.Hex()}

	_, err := c.client.doRequest(ctx, http.MethodPost, path, body)
	return err
}

// NativeWrapper reports the wrapped native settlement asset's address.
func (c *Custodian) NativeWrapper(ctx context.Context) (common.Address, error) {
	respBody, err := c.client.doRequest(ctx, http.MethodGet, "/native-wrapper", nil)
	if err != nil {
		return common.Address{}, err
	}

	var resp struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return common.Address{}, fmt.Errorf("custodian/rpc: decode native wrapper: %w", err)
	}
	return common.HexToAddress(resp.Address), nil
}

var _ domain.PositionCustodian = (*Custodian)(nil)
