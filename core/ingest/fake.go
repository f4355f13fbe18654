package ingest

import "context"

// FakeSource feeds payloads straight into the service, standing in for a
// broker in tests.
type FakeSource struct {
	svc *Service
	// Errors collects per-message handling failures.
	Errors []error
}

func NewFakeSource(svc *Service) *FakeSource {
	return &FakeSource{svc: svc}
}

func (f *FakeSource) Push(ctx context.Context, raw []byte) error {
	err := f.svc.HandleMessage(ctx, raw)
	if err != nil {
		f.Errors = append(f.Errors, err)
	}
	return err
}
