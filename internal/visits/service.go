package visits

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/solarquote/solarquote/internal/accounts"
	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/sales/quotations"
	"github.com/solarquote/solarquote/internal/shared"
	"github.com/solarquote/solarquote/jobs"
)

const summaryConcurrency = 8

const maxImageBytes = 8 << 20

// MaxCompleteBodyBytes caps the JSON body of a completion report.
const MaxCompleteBodyBytes int64 = 48 << 20

// QuotationLookup resolves quotations. Get is scoped to what actor may see;
// DealerOf returns the current owner regardless of the caller.
type QuotationLookup interface {
	Get(ctx context.Context, actor shared.Principal, id string) (*quotations.Quotation, error)
	DealerOf(ctx context.Context, id string) (string, error)
}

type VisitorDirectory interface {
	Get(ctx context.Context, id string) (*accounts.Account, error)
}

type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	EnqueueVisitNotify(ctx context.Context, payload jobs.VisitNotifyPayload) (*asynq.TaskInfo, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Metrics interface {
	VisitTransition(status string)
}

// Deps groups the collaborators of Service. Notifier, Audit and Metrics are
// optional.
type Deps struct {
	Repo       Repository
	Quotations QuotationLookup
	Visitors   VisitorDirectory
	Images     ImageStore
	Notifier   Notifier
	Audit      AuditRecorder
	Metrics    Metrics
	Logger     *slog.Logger
}

type Service struct {
	repo       Repository
	quotations QuotationLookup
	visitors   VisitorDirectory
	images     ImageStore
	notifier   Notifier
	audit      AuditRecorder
	metrics    Metrics
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		repo:       deps.Repo,
		quotations: deps.Quotations,
		visitors:   deps.Visitors,
		images:     deps.Images,
		notifier:   deps.Notifier,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
		validate:   httpx.NewValidator(),
		logger:     deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create schedules a visit on a quotation the dealer owns. Visitor names are
// resolved now and never change afterwards.
func (s *Service) Create(ctx context.Context, actor shared.Principal, quotationID string, req CreateVisitRequest) (*Visit, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	quotation, err := s.quotations.Get(ctx, actor, quotationID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(shared.RoleAdmin) && quotation.DealerID != actor.AccountID {
		return nil, httpx.NewError(httpx.CodeForbidden, "only the owning dealer may schedule visits")
	}

	assigned, err := s.resolveVisitors(ctx, req.VisitorIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	visit := Visit{
		ID:           uuid.NewString(),
		QuotationID:  quotation.ID,
		DealerID:     quotation.DealerID,
		Date:         req.Date,
		Time:         req.Time,
		Location:     strings.TrimSpace(req.Location),
		LocationLink: strings.TrimSpace(req.LocationLink),
		Notes:        req.Notes,
		Status:       VisitStatusPending,
		Images:       []string{},
		Visitors:     assigned,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, visit); err != nil {
		return nil, err
	}
	s.record(ctx, actor, "visit.create", visit.ID, map[string]any{"quotationId": visit.QuotationID})
	s.notify(ctx, actor, visit)
	return &visit, nil
}

func (s *Service) resolveVisitors(ctx context.Context, ids []string) ([]AssignedVisitor, error) {
	seen := make(map[string]struct{}, len(ids))
	assigned := make([]AssignedVisitor, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		account, err := s.visitors.Get(ctx, id)
		if err != nil {
			if httpx.HasCode(err, httpx.CodeAccountNotFound) {
				return nil, httpx.Validation("request validation failed", map[string]string{"visitorIds": "unknown visitor " + id})
			}
			return nil, err
		}
		if account.Role != shared.RoleVisitor || !account.IsActive {
			return nil, httpx.Validation("request validation failed", map[string]string{"visitorIds": id + " is not an active visitor"})
		}
		assigned = append(assigned, AssignedVisitor{VisitorID: account.ID, VisitorName: account.DisplayName()})
	}
	return assigned, nil
}

// Delete removes a visit. Ownership follows the quotation's current dealer,
// so a reassigned quotation moves its visits with it.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id string) error {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return mapError(err)
	}
	if !actor.Is(shared.RoleAdmin) {
		owner, err := s.owner(ctx, visit)
		if err != nil {
			return err
		}
		if owner != actor.AccountID {
			return errVisitNotFound
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapError(err)
	}
	s.record(ctx, actor, "visit.delete", id, map[string]any{"quotationId": visit.QuotationID})
	return nil
}

func (s *Service) ListForQuotation(ctx context.Context, actor shared.Principal, quotationID string) ([]Visit, error) {
	quotation, err := s.quotations.Get(ctx, actor, quotationID)
	if err != nil {
		return nil, err
	}
	visits, err := s.repo.ListForQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	for i := range visits {
		visits[i].DealerID = quotation.DealerID
	}
	return visits, nil
}

// owner resolves the dealer that currently owns the visit's quotation and
// refreshes visit.DealerID with it.
func (s *Service) owner(ctx context.Context, visit *Visit) (string, error) {
	dealerID, err := s.quotations.DealerOf(ctx, visit.QuotationID)
	if err != nil {
		if httpx.HasCode(err, httpx.CodeQuotationNotFound) {
			return "", errVisitNotFound
		}
		return "", err
	}
	visit.DealerID = dealerID
	return dealerID, nil
}

// CurrentStatus summarises the visits of one quotation by the most recently
// scheduled visit.
func (s *Service) CurrentStatus(ctx context.Context, actor shared.Principal, quotationID string) (StatusSummary, error) {
	visits, err := s.ListForQuotation(ctx, actor, quotationID)
	if err != nil {
		return StatusSummary{}, err
	}
	return summarize(quotationID, visits), nil
}

// StatusSummaries loads the current status of several quotations
// concurrently. Results keep the order of quotationIDs.
func (s *Service) StatusSummaries(ctx context.Context, actor shared.Principal, req StatusSummaryRequest) ([]StatusSummary, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	results := make([]StatusSummary, len(req.QuotationIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, id := range req.QuotationIDs {
		g.Go(func() error {
			summary, err := s.CurrentStatus(ctx, actor, id)
			if err != nil {
				return err
			}
			results[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Latest returns the visit with the latest date and time. Visits whose
// schedule cannot be parsed compare equal to everything, so the stable sort
// leaves them where they are.
func Latest(visits []Visit) (Visit, bool) {
	if len(visits) == 0 {
		return Visit{}, false
	}
	sorted := append([]Visit(nil), visits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, okI := sorted[i].ScheduledAt()
		tj, okJ := sorted[j].ScheduledAt()
		if !okI || !okJ {
			return false
		}
		return ti.After(tj)
	})
	return sorted[0], true
}

func summarize(quotationID string, visits []Visit) StatusSummary {
	summary := StatusSummary{QuotationID: quotationID, VisitCount: len(visits)}
	if latest, ok := Latest(visits); ok {
		summary.Status = latest.Status
		summary.VisitID = latest.ID
	}
	return summary
}

func (s *Service) ListAssigned(ctx context.Context, actor shared.Principal, status VisitStatus) ([]Visit, error) {
	if status != "" && !status.Valid() {
		return nil, httpx.Validation("request validation failed", map[string]string{"status": "must be a visit status"})
	}
	return s.repo.ListAssigned(ctx, ListAssignedRequest{VisitorID: actor.AccountID, Status: status})
}

func (s *Service) Approve(ctx context.Context, actor shared.Principal, id string) (*Visit, error) {
	return s.transition(ctx, actor, id, VisitStatusApproved, nil)
}

func (s *Service) Reject(ctx context.Context, actor shared.Principal, id string, req ReasonRequest) (*Visit, error) {
	reason, err := s.reason(req)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, VisitStatusRejected, map[string]interface{}{"rejection_reason": reason})
}

func (s *Service) Incomplete(ctx context.Context, actor shared.Principal, id string, req ReasonRequest) (*Visit, error) {
	reason, err := s.reason(req)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, VisitStatusIncomplete, map[string]interface{}{"feedback": reason})
}

func (s *Service) Reschedule(ctx context.Context, actor shared.Principal, id string, req ReasonRequest) (*Visit, error) {
	reason, err := s.reason(req)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, VisitStatusRescheduled, map[string]interface{}{"feedback": reason})
}

// Complete stores the survey images and then marks the visit completed.
// Images are decoded only after the caller is known to be an assigned visitor
// and the transition is allowed. If an upload or the status update fails the
// visit keeps its status and the objects already stored are removed.
func (s *Service) Complete(ctx context.Context, actor shared.Principal, id string, req CompleteRequest) (*Visit, error) {
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return nil, err
	}
	visit, err := s.assignedVisit(ctx, actor, id, VisitStatusCompleted)
	if err != nil {
		return nil, err
	}
	images, err := decodeImages(req.Images)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(images))
	keys := make([]string, 0, len(images))
	for i, img := range images {
		key := fmt.Sprintf("visits/%s/%d-%s%s", visit.ID, i+1, uuid.NewString()[:8], img.ext)
		url, err := s.images.Put(ctx, key, img.contentType, img.data)
		if err != nil {
			s.discardImages(ctx, visit.ID, keys)
			return nil, fmt.Errorf("store visit image: %w", err)
		}
		urls = append(urls, url)
		keys = append(keys, key)
	}

	updates := map[string]interface{}{
		"length_cm": req.Length,
		"width_cm":  req.Width,
		"height_cm": req.Height,
		"images":    urls,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		updates["notes"] = notes
	}
	completed, err := s.apply(ctx, actor, visit, VisitStatusCompleted, updates)
	if err != nil {
		s.discardImages(ctx, visit.ID, keys)
		return nil, err
	}
	return completed, nil
}

func (s *Service) discardImages(ctx context.Context, visitID string, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.images.Delete(ctx, key); err != nil {
			s.logger.Warn("discard visit image", slog.String("visit_id", visitID), slog.String("key", key), slog.Any("error", err))
		}
	}
}

func (s *Service) reason(req ReasonRequest) (string, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := httpx.ValidateStruct(s.validate, req); err != nil {
		return "", err
	}
	return req.Reason, nil
}

func (s *Service) transition(ctx context.Context, actor shared.Principal, id string, to VisitStatus, updates map[string]interface{}) (*Visit, error) {
	visit, err := s.assignedVisit(ctx, actor, id, to)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, actor, visit, to, updates)
}

func (s *Service) assignedVisit(ctx context.Context, actor shared.Principal, id string, to VisitStatus) (*Visit, error) {
	visit, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}
	if !actor.Is(shared.RoleVisitor) || !visit.AssignedTo(actor.AccountID) {
		return nil, httpx.NewError(httpx.CodeForbidden, "only an assigned visitor may change this visit")
	}
	if !visit.Status.CanTransitionTo(to) {
		return nil, invalidTransition(visit.Status, to)
	}
	return visit, nil
}

func (s *Service) apply(ctx context.Context, actor shared.Principal, visit *Visit, to VisitStatus, updates map[string]interface{}) (*Visit, error) {
	from := visit.Status
	if err := s.repo.UpdateStatus(ctx, visit.ID, from, to, updates); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			return nil, invalidTransition(from, to)
		}
		return nil, mapError(err)
	}

	visit.Status = to
	visit.UpdatedAt = s.now()
	applyUpdates(visit, updates)

	if s.metrics != nil {
		s.metrics.VisitTransition(string(to))
	}
	s.record(ctx, actor, "visit."+string(to), visit.ID, map[string]any{"from": from, "to": to})
	s.notify(ctx, actor, *visit)
	return visit, nil
}

func applyUpdates(v *Visit, updates map[string]interface{}) {
	for col, val := range updates {
		switch col {
		case "feedback":
			v.Feedback, _ = val.(string)
		case "rejection_reason":
			v.RejectionReason, _ = val.(string)
		case "notes":
			v.Notes, _ = val.(string)
		case "length_cm":
			if f, ok := val.(float64); ok {
				v.Length = &f
			}
		case "width_cm":
			if f, ok := val.(float64); ok {
				v.Width = &f
			}
		case "height_cm":
			if f, ok := val.(float64); ok {
				v.Height = &f
			}
		case "images":
			v.Images, _ = val.([]string)
		}
	}
}

// notify tells the quotation's current dealer about v. The stored DealerID is
// only used when the owner lookup fails.
func (s *Service) notify(ctx context.Context, actor shared.Principal, v Visit) {
	if s.notifier == nil {
		return
	}
	dealerID := v.DealerID
	if owner, err := s.quotations.DealerOf(ctx, v.QuotationID); err == nil {
		dealerID = owner
	} else {
		s.logger.Warn("resolve visit owner", slog.String("visit_id", v.ID), slog.Any("error", err))
	}
	_, err := s.notifier.EnqueueVisitNotify(ctx, jobs.VisitNotifyPayload{
		VisitID:     v.ID,
		QuotationID: v.QuotationID,
		DealerID:    dealerID,
		Status:      string(v.Status),
		ActorID:     actor.AccountID,
		At:          v.UpdatedAt,
	})
	if err != nil {
		s.logger.Warn("enqueue visit notification", slog.String("visit_id", v.ID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID: actor.AccountID, Action: action, Entity: "visit", EntityID: id, Meta: meta, At: s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

type decodedImage struct {
	data        []byte
	contentType string
	ext         string
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func decodeImages(payloads []string) ([]decodedImage, error) {
	images := make([]decodedImage, 0, len(payloads))
	for i, payload := range payloads {
		field := fmt.Sprintf("images[%d]", i)
		if idx := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && idx >= 0 {
			payload = payload[idx+1:]
		}
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return nil, httpx.Validation("request validation failed", map[string]string{field: "must be base64 encoded"})
		}
		if len(data) == 0 || len(data) > maxImageBytes {
			return nil, httpx.Validation("request validation failed", map[string]string{field: "must be between 1 byte and 8 MiB"})
		}
		contentType := http.DetectContentType(data)
		ext, ok := imageExtensions[contentType]
		if !ok {
			return nil, httpx.Validation("request validation failed", map[string]string{field: "must be a JPEG, PNG, GIF or WebP image"})
		}
		images = append(images, decodedImage{data: data, contentType: contentType, ext: ext})
	}
	return images, nil
}

var errVisitNotFound = httpx.NewError(httpx.CodeVisitNotFound, "visit not found")

func invalidTransition(from, to VisitStatus) error {
	return httpx.NewError(httpx.CodeInvalidTransition, fmt.Sprintf("visit cannot move from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

func mapError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return errVisitNotFound
	}
	return err
}
