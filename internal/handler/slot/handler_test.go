package slot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotwise/booking-api/internal/middleware"
	"github.com/slotwise/booking-api/internal/model"
	slotService "github.com/slotwise/booking-api/internal/service/slot"
	"github.com/slotwise/booking-api/internal/tenant"
	apperrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/metrics"
	"github.com/slotwise/booking-api/pkg/validator"
)

// tenantScopedSlotRepo enforces tenant visibility the way the store
// does: rows of another tenant are indistinguishable from missing rows.
type tenantScopedSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*model.Slot
}

func newRepo() *tenantScopedSlotRepo {
	return &tenantScopedSlotRepo{slots: make(map[uuid.UUID]*model.Slot)}
}

func (r *tenantScopedSlotRepo) visible(ctx context.Context, s *model.Slot) bool {
	if tenant.IsBypass(ctx) {
		return true
	}
	tenantID, ok := tenant.FromContext(ctx)
	return ok && s.TenantID == tenantID
}

func (r *tenantScopedSlotRepo) lookup(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	s, ok := r.slots[id]
	if !ok || !r.visible(ctx, s) {
		return nil, apperrors.NotFound("slot", nil)
	}
	return s, nil
}

func (r *tenantScopedSlotRepo) Create(_ context.Context, slot *model.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot.ID] = slot
	return nil
}

func (r *tenantScopedSlotRepo) Get(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	cp := *s
	return &cp, nil
}

func (r *tenantScopedSlotRepo) Hold(ctx context.Context, id uuid.UUID, heldUntil time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != model.SlotStateFree {
		return nil, apperrors.SlotConflict(id.String())
	}
	s.State = model.SlotStateHeld
	s.HeldUntil = &heldUntil
	cp := *s
	return &cp, nil
}

func (r *tenantScopedSlotRepo) Release(ctx context.Context, id uuid.UUID) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State == model.SlotStateCommitted {
		return nil, apperrors.InvalidState("committed slots cannot be released")
	}
	s.State = model.SlotStateFree
	s.HeldUntil = nil
	cp := *s
	return &cp, nil
}

func (r *tenantScopedSlotRepo) CommitHeld(ctx context.Context, id uuid.UUID, now time.Time) (*model.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.State != model.SlotStateHeld || s.HeldUntil == nil || s.HeldUntil.Before(now) {
		return nil, apperrors.InvalidState("slot is not under a live hold")
	}
	s.State = model.SlotStateCommitted
	s.HeldUntil = nil
	cp := *s
	return &cp, nil
}

func (r *tenantScopedSlotRepo) ExpireHeldBefore(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, s := range r.slots {
		if !r.visible(ctx, s) {
			continue
		}
		if s.State == model.SlotStateHeld && s.HeldUntil != nil && s.HeldUntil.Before(now) {
			s.State = model.SlotStateFree
			s.HeldUntil = nil
			count++
		}
	}
	return count, nil
}

func (r *tenantScopedSlotRepo) FindFree(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]*model.Slot, error) {
	return nil, nil
}

func setupRouter(repo *tenantScopedSlotRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	svc := slotService.NewService(repo, metrics.New("slot_handler_test"))
	h := NewHandler(svc, validator.New())

	api := engine.Group("/api/v1")
	api.Use(middleware.Tenant())
	h.RegisterRoutes(api)
	return engine
}

func seedSlot(repo *tenantScopedSlotRepo, tenantID uuid.UUID, state model.SlotState) *model.Slot {
	now := time.Now().UTC().Truncate(time.Hour)
	slot := &model.Slot{
		Base: model.Base{
			ID:       uuid.New(),
			TenantID: tenantID,
		},
		ProfessionalID: uuid.New(),
		Day:            now.Truncate(24 * time.Hour),
		StartTime:      now,
		EndTime:        now.Add(30 * time.Minute),
		State:          state,
		Kind:           model.SlotKindRecurring,
	}
	_ = repo.Create(context.Background(), slot)
	return slot
}

func doRequest(t *testing.T, engine *gin.Engine, method, path, tenantHeader, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if tenantHeader != "" {
		req.Header.Set(middleware.HeaderXTenantID, tenantHeader)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReserveSlot(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	tenantID := uuid.New()
	slot := seedSlot(repo, tenantID, model.SlotStateFree)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/reserve", tenantID.String(), `{"hold_seconds":120}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Status string                `json:"status"`
		Data   model.SlotReservation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, slot.ID, resp.Data.SlotID)
	assert.False(t, resp.Data.HeldUntil.IsZero())
}

func TestReserveSlotConflictMapsTo409(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	tenantID := uuid.New()
	slot := seedSlot(repo, tenantID, model.SlotStateFree)

	path := "/api/v1/slots/" + slot.ID.String() + "/reserve"
	first := doRequest(t, engine, http.MethodPost, path, tenantID.String(), "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, engine, http.MethodPost, path, tenantID.String(), "")
	assert.Equal(t, http.StatusConflict, second.Code)
}

func TestReserveSlotMissingTenantIsRejected(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	slot := seedSlot(repo, uuid.New(), model.SlotStateFree)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/reserve", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The slot was never touched.
	stored, err := repo.Get(tenant.WithBypass(context.Background()), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStateFree, stored.State)
}

func TestCrossTenantSlotLooksMissing(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	slot := seedSlot(repo, uuid.New(), model.SlotStateFree)

	otherTenant := uuid.New()
	w := doRequest(t, engine, http.MethodGet, "/api/v1/slots/"+slot.ID.String(), otherTenant.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReserveSlotInvalidHoldSeconds(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	tenantID := uuid.New()
	slot := seedSlot(repo, tenantID, model.SlotStateFree)

	w := doRequest(t, engine, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/reserve", tenantID.String(), `{"hold_seconds":999999}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReleaseThenExpireFlow(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)
	tenantID := uuid.New()
	slot := seedSlot(repo, tenantID, model.SlotStateFree)

	reserve := doRequest(t, engine, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/reserve", tenantID.String(), "")
	require.Equal(t, http.StatusOK, reserve.Code)

	release := doRequest(t, engine, http.MethodPost, "/api/v1/slots/"+slot.ID.String()+"/release", tenantID.String(), "")
	require.Equal(t, http.StatusOK, release.Code)

	var resp struct {
		Data struct {
			State model.SlotState `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(release.Body.Bytes(), &resp))
	assert.Equal(t, model.SlotStateFree, resp.Data.State)

	expire := doRequest(t, engine, http.MethodPost, "/api/v1/slots/expire", tenantID.String(), "")
	require.Equal(t, http.StatusOK, expire.Code)

	var expireResp struct {
		Data struct {
			ReclaimedCount int64 `json:"reclaimed_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(expire.Body.Bytes(), &expireResp))
	assert.Equal(t, int64(0), expireResp.Data.ReclaimedCount)
}

func TestGetSlotBadID(t *testing.T) {
	repo := newRepo()
	engine := setupRouter(repo)

	w := doRequest(t, engine, http.MethodGet, "/api/v1/slots/not-a-uuid", uuid.New().String(), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
