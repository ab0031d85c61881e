package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propbridge/internal/directory"
	"propbridge/internal/entitlement"
	"propbridge/internal/interest/models"
	"propbridge/internal/interest/service"
	"propbridge/internal/interest/store"
	"propbridge/internal/notify"
	"propbridge/internal/property"
	id "propbridge/pkg/domain"
	"propbridge/pkg/requestcontext"
)

type fixture struct {
	router   *chi.Mux
	buyerID  id.UserID
	sellerID id.UserID
	agentID  id.UserID
	listing  *property.Property
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		buyerID:  id.NewUserID(),
		sellerID: id.NewUserID(),
		agentID:  id.NewUserID(),
	}

	dir := directory.NewInMemoryDirectory()
	dir.PutUser(f.buyerID, directory.Contact{Name: "Asha", Phone: "+91-98"}, directory.RoleBuyer)
	dir.PutUser(f.sellerID, directory.Contact{Name: "Ravi", Phone: "+91-99"}, directory.RoleSeller)
	dir.PutUser(f.agentID, directory.Contact{Name: "Meera"}, directory.RoleAgent)

	properties := property.NewInMemoryStore()
	f.listing = &property.Property{
		ID:       id.NewPropertyID(),
		SellerID: f.sellerID,
		Title:    "3BHK Baner",
		Status:   property.StatusLive,
		City:     "Pune",
		Price:    7_500_000,
	}
	properties.Put(f.listing)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(
		store.NewInMemoryInterestStore(), store.NewInMemoryMediationStore(),
		store.NewInMemorySessionStore(), properties, dir,
		entitlement.NewInMemoryService(), nil,
		notify.SyncDispatcher{Sender: notify.NewRecordingSender()},
		nil, logger, nil,
	)

	f.router = chi.NewRouter()
	New(svc, dir, logger).Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, userID id.UserID, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithRoles(ctx, roles)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func (f *fixture) express(t *testing.T) id.InterestID {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/interests", map[string]any{
		"property_id": f.listing.ID.String(),
		"type":        "inquiry",
		"message":     "still available?",
	}, f.buyerID, directory.RoleBuyer)
	require.Equal(t, http.StatusCreated, rec.Code)

	var view struct {
		ID id.InterestID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view.ID
}

func (f *fixture) approveFlow(t *testing.T, interestID id.InterestID) {
	t.Helper()
	steps := []struct {
		path string
		body any
	}{
		{"/review/start", map[string]any{}},
		{"/review/buyer", map[string]any{"score": 90, "notes": "solid", "outcome": "approved"}},
		{"/review/seller", map[string]any{"score": 85, "notes": "seller keen", "outcome": "approved"}},
	}
	for _, st := range steps {
		rec := f.do(t, http.MethodPost, "/interests/"+interestID.String()+st.path, st.body, f.agentID, directory.RoleAgent)
		require.Equal(t, http.StatusOK, rec.Code, "step %s: %s", st.path, rec.Body.String())
	}
}

func TestExpressAndView(t *testing.T) {
	f := newFixture(t)
	interestID := f.express(t)

	t.Run("buyer view hides seller contact before approval", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, f.buyerID, directory.RoleBuyer)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "+91-99")
		assert.NotContains(t, rec.Body.String(), "seller_contact")
	})

	t.Run("seller view hides buyer entirely", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, f.sellerID, directory.RoleSeller)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), f.buyerID.String())
		assert.NotContains(t, rec.Body.String(), "Asha")
		assert.NotContains(t, rec.Body.String(), "still available?")
	})

	t.Run("stranger denied", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, id.NewUserID())
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("duplicate conflicts", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/interests", map[string]any{
			"property_id": f.listing.ID.String(),
			"type":        "offer",
		}, f.buyerID, directory.RoleBuyer)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestMediationEndpoints(t *testing.T) {
	f := newFixture(t)
	interestID := f.express(t)
	f.approveFlow(t, interestID)

	t.Run("approve creates session and reveals seller to buyer", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/interests/"+interestID.String()+"/approve",
			map[string]any{}, f.agentID, directory.RoleAgent)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var session models.CommunicationSession
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
		assert.True(t, session.BuyerCanSeeSellerContact)
		assert.False(t, session.SellerCanSeeBuyerContact)

		buyerView := f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, f.buyerID, directory.RoleBuyer)
		require.Equal(t, http.StatusOK, buyerView.Code)
		assert.Contains(t, buyerView.Body.String(), "+91-99")

		sellerView := f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, f.sellerID, directory.RoleSeller)
		require.Equal(t, http.StatusOK, sellerView.Code)
		assert.NotContains(t, sellerView.Body.String(), "+91-98")
	})

	t.Run("premature approval rejected", func(t *testing.T) {
		f2 := newFixture(t)
		fresh := f2.express(t)
		rec := f2.do(t, http.MethodPost, "/interests/"+fresh.String()+"/approve",
			map[string]any{}, f2.agentID, directory.RoleAgent)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("review requires an outcome", func(t *testing.T) {
		f2 := newFixture(t)
		fresh := f2.express(t)
		rec := f2.do(t, http.MethodPost, "/interests/"+fresh.String()+"/review/buyer",
			map[string]any{"score": 50, "notes": "half done"}, f2.agentID, directory.RoleAgent)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejected review verdict closes a pending interest", func(t *testing.T) {
		f2 := newFixture(t)
		fresh := f2.express(t)
		rec := f2.do(t, http.MethodPost, "/interests/"+fresh.String()+"/review/buyer",
			map[string]any{"score": 5, "notes": "fake buyer", "outcome": "rejected"}, f2.agentID, directory.RoleAgent)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), string(models.StatusRejected))
	})

	t.Run("reject requires reason", func(t *testing.T) {
		f2 := newFixture(t)
		fresh := f2.express(t)
		rec := f2.do(t, http.MethodPost, "/interests/"+fresh.String()+"/reject",
			map[string]any{"reason": ""}, f2.agentID, directory.RoleAgent)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("buyer cannot drive mediation", func(t *testing.T) {
		f2 := newFixture(t)
		fresh := f2.express(t)
		rec := f2.do(t, http.MethodPost, "/interests/"+fresh.String()+"/review/start",
			map[string]any{}, f2.buyerID, directory.RoleBuyer)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestWithdrawEndpoint(t *testing.T) {
	f := newFixture(t)
	interestID := f.express(t)

	rec := f.do(t, http.MethodDelete, "/interests/"+interestID.String(), nil, f.buyerID, directory.RoleBuyer)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/interests/"+interestID.String(), nil, f.buyerID, directory.RoleBuyer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(models.StatusWithdrawn))
}

func TestQueueEndpoint(t *testing.T) {
	f := newFixture(t)
	f.express(t)

	rec := f.do(t, http.MethodGet, "/mediation/queue", nil, f.agentID, directory.RoleAgent)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Interests []models.InterestExpression `json:"interests"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Interests, 1)
}
