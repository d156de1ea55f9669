package cli

import (
	"context"
	"encoding/json"
	"fmt"

	appvaluation "github.com/JohanRGustafsson/valuation-model/internal/application/valuation"
	domain "github.com/JohanRGustafsson/valuation-model/internal/domain/valuation"
	"github.com/JohanRGustafsson/valuation-model/pkg/client"
)

// Backend runs calculations. The in-process appvaluation.Service satisfies
// it directly; RemoteBackend sends the same requests to a server.
type Backend interface {
	NPV(ctx context.Context, in domain.ValuationInputs) (*domain.NPVResult, error)
	Deal(ctx context.Context, req *appvaluation.DealRequest) (*appvaluation.DealResponse, error)
	Strategy(ctx context.Context, req *appvaluation.StrategyRequest) (*domain.StrategicDecision, error)
	LaunchPrice(ctx context.Context, req *appvaluation.LaunchPriceRequest) (*appvaluation.LaunchPriceResponse, error)
	Sensitivity(ctx context.Context, req *appvaluation.SensitivityRequest) (*domain.SensitivityResult, error)
}

var _ Backend = appvaluation.Service(nil)

// RemoteBackend calls the JSON API through the SDK. Requests and results
// share their wire format with the engine types, so they are converted
// through JSON.
type RemoteBackend struct {
	api *client.ValuationClient
}

func NewRemoteBackend(api *client.ValuationClient) *RemoteBackend {
	return &RemoteBackend{api: api}
}

func (b *RemoteBackend) NPV(ctx context.Context, in domain.ValuationInputs) (*domain.NPVResult, error) {
	var req client.Inputs
	if err := remarshal(in, &req); err != nil {
		return nil, err
	}
	res, err := b.api.NPV(ctx, &req)
	if err != nil {
		return nil, err
	}
	var out domain.NPVResult
	return &out, remarshal(res, &out)
}

func (b *RemoteBackend) Deal(ctx context.Context, r *appvaluation.DealRequest) (*appvaluation.DealResponse, error) {
	var req client.DealRequest
	if err := remarshal(r, &req); err != nil {
		return nil, err
	}
	res, err := b.api.Deal(ctx, &req)
	if err != nil {
		return nil, err
	}
	var out appvaluation.DealResponse
	return &out, remarshal(res, &out)
}

func (b *RemoteBackend) Strategy(ctx context.Context, r *appvaluation.StrategyRequest) (*domain.StrategicDecision, error) {
	var req client.StrategyRequest
	if err := remarshal(r, &req); err != nil {
		return nil, err
	}
	res, err := b.api.Strategy(ctx, &req)
	if err != nil {
		return nil, err
	}
	var out domain.StrategicDecision
	return &out, remarshal(res, &out)
}

func (b *RemoteBackend) LaunchPrice(ctx context.Context, r *appvaluation.LaunchPriceRequest) (*appvaluation.LaunchPriceResponse, error) {
	var req client.LaunchPriceRequest
	if err := remarshal(r, &req); err != nil {
		return nil, err
	}
	res, err := b.api.LaunchPrice(ctx, &req)
	if err != nil {
		return nil, err
	}
	var out appvaluation.LaunchPriceResponse
	return &out, remarshal(res, &out)
}

func (b *RemoteBackend) Sensitivity(ctx context.Context, r *appvaluation.SensitivityRequest) (*domain.SensitivityResult, error) {
	var req client.SensitivityRequest
	if err := remarshal(r, &req); err != nil {
		return nil, err
	}
	res, err := b.api.Sensitivity(ctx, &req)
	if err != nil {
		return nil, err
	}
	var out domain.SensitivityResult
	return &out, remarshal(res, &out)
}

func remarshal(src, dst interface{}) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode %T: %w", src, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %T: %w", dst, err)
	}
	return nil
}
