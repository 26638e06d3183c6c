package algorand

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// realAlgodClient adapts the SDK's algod client to our AlgodClient interface.
type realAlgodClient struct {
	client *algod.Client
}

// NewAlgodClient creates an AlgodClient for the node at address.
// Public AlgoNode endpoints (https://testnet-api.algonode.cloud) need no token.
func NewAlgodClient(address, token string) (AlgodClient, error) {
	c, err := algod.MakeClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}
	return &realAlgodClient{client: c}, nil
}

func (r *realAlgodClient) SuggestedParams(ctx context.Context) (types.SuggestedParams, error) {
	return r.client.SuggestedParams().Do(ctx)
}

func (r *realAlgodClient) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	return r.client.SendRawTransaction(signed).Do(ctx)
}

func (r *realAlgodClient) PendingTransactionInformation(ctx context.Context, txid string) (models.PendingTransactionInfoResponse, error) {
	info, _, err := r.client.PendingTransactionInformation(txid).Do(ctx)
	return info, err
}

func (r *realAlgodClient) Status(ctx context.Context) (models.NodeStatus, error) {
	return r.client.Status().Do(ctx)
}

func (r *realAlgodClient) StatusAfterBlock(ctx context.Context, round uint64) (models.NodeStatus, error) {
	return r.client.StatusAfterBlock(round).Do(ctx)
}

func (r *realAlgodClient) AccountInformation(ctx context.Context, address string) (models.Account, error) {
	return r.client.AccountInformation(address).Do(ctx)
}
