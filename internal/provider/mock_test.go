package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/veriscope/authenticity-engine/pkg/deepguard"
	"github.com/veriscope/authenticity-engine/pkg/ganscan"
	"github.com/veriscope/authenticity-engine/pkg/truepix"
)

// --- TruePix Mock ---

type mockTruePixClient struct {
	mock.Mock
}

func (m *mockTruePixClient) Analyze(ctx context.Context, req truepix.AnalyzeRequest) (*truepix.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*truepix.AnalyzeResponse), args.Error(1)
}

// --- DeepGuard Mock ---

type mockDeepGuardClient struct {
	mock.Mock
}

func (m *mockDeepGuardClient) Detect(ctx context.Context, req deepguard.DetectRequest) (*deepguard.DetectResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*deepguard.DetectResponse), args.Error(1)
}

// --- GanScan Mock ---

type mockGanScanClient struct {
	mock.Mock
}

func (m *mockGanScanClient) Scan(ctx context.Context, req ganscan.ScanRequest) (*ganscan.ScanResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ganscan.ScanResponse), args.Error(1)
}
