package service

import (
	"context"
	"strings"
	"time"

	"hotline/backend/internal/costing"
	"hotline/backend/internal/deviceid"
	"hotline/backend/internal/domain"
	"hotline/backend/internal/metrics"
)

func (s *Service) CheckIdentifier(_ context.Context, req domain.IdentifierCheckRequest) (domain.IdentifierCheckResponse, error) {
	ve := &ValidationErrors{}
	requireField(ve, "identifier", req.Identifier)
	kind, ok := deviceid.ParseKind(req.Type)
	if !ok {
		ve.Add("type", "must be one of: imei, serial")
	}
	if err := ve.Err(); err != nil {
		return domain.IdentifierCheckResponse{}, err
	}

	id := deviceid.Check(kind, req.Identifier)
	metrics.IncIdentifierCheck(string(id.Kind), id.Valid)
	return toIdentifierResponse(id), nil
}

// CaptureScan replays a keyboard wedge burst recorded by the client and
// returns every code the scanner emitted, classified.
func (s *Service) CaptureScan(_ context.Context, req domain.ScanCaptureRequest) (domain.ScanCaptureResponse, error) {
	if len(req.Keystrokes) == 0 {
		ve := &ValidationErrors{}
		ve.Add("keystrokes", "is required")
		return domain.ScanCaptureResponse{}, ve
	}

	keystrokes := make([]deviceid.Keystroke, 0, len(req.Keystrokes))
	for _, k := range req.Keystrokes {
		keystrokes = append(keystrokes, deviceid.Keystroke{Key: k.Key, At: time.UnixMilli(k.AtMS)})
	}

	capture := deviceid.NewWedgeCapture(s.scanMaxGap, s.scanMinLength)
	codes := capture.CaptureAll(keystrokes)
	metrics.AddScanCodes(len(codes))

	resp := domain.ScanCaptureResponse{Codes: make([]domain.IdentifierCheckResponse, 0, len(codes))}
	for _, code := range codes {
		id := deviceid.Classify(code)
		metrics.IncIdentifierCheck(string(id.Kind), id.Valid)
		resp.Codes = append(resp.Codes, toIdentifierResponse(id))
	}
	return resp, nil
}

// PreviewCosts reconciles an unsaved worksheet. Nothing is validated or
// persisted.
func (s *Service) PreviewCosts(_ context.Context, req domain.CostPreviewRequest) domain.CostSummary {
	return costing.Reconcile(req.LaborCost, req.AdvancePayment, req.Parts)
}

func (s *Service) LookupDevice(ctx context.Context, identifier string) (domain.DeviceLookupResponse, error) {
	if strings.TrimSpace(identifier) == "" {
		ve := &ValidationErrors{}
		ve.Add("identifier", "is required")
		return domain.DeviceLookupResponse{}, ve
	}

	id := deviceid.Classify(identifier)
	metrics.IncIdentifierCheck(string(id.Kind), id.Valid)

	jobs, err := s.repo.ListRepairJobs(ctx, domain.RepairFilter{Identifier: id.Value, Limit: 50})
	if err != nil {
		return domain.DeviceLookupResponse{}, err
	}
	for i := range jobs {
		jobs[i].Costs = costing.ForJob(jobs[i])
	}

	return domain.DeviceLookupResponse{
		Identifier: toIdentifierResponse(id),
		Repairs:    jobs,
	}, nil
}

func toIdentifierResponse(id deviceid.Identifier) domain.IdentifierCheckResponse {
	resp := domain.IdentifierCheckResponse{
		Type:    string(id.Kind),
		Value:   id.Value,
		Display: id.Display,
		Valid:   id.Valid,
	}
	if !id.Valid {
		resp.Message = identifierMessage(id.Kind)
	}
	return resp
}

func identifierMessage(kind deviceid.Kind) string {
	switch kind {
	case deviceid.KindIMEI:
		return "IMEI must be 15 digits with a valid check digit"
	case deviceid.KindSerial:
		return "serial number must be at least 4 letters or digits"
	default:
		return "identifier is empty"
	}
}
