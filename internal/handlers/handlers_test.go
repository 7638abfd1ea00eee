package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"qr-ordering/internal/kafka"
	"qr-ordering/internal/logger"
	"qr-ordering/internal/models"
	"qr-ordering/internal/push"
	"qr-ordering/internal/services"
	"qr-ordering/internal/storage"
)

const (
	jwtSecret     = "staff-secret"
	internalToken = "internal-token"
	webhookSecret = "whsec_test"
	publicURL     = "https://eat.example.com"
)

type fakeSender struct {
	mu     sync.Mutex
	titles map[string][]string
	gone   map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, sub *models.PushSubscription, msg *models.PushMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[sub.Endpoint] {
		return push.ErrSubscriptionGone
	}
	f.titles[sub.Endpoint] = append(f.titles[sub.Endpoint], msg.Title)
	return nil
}

func (f *fakeSender) received(endpoint string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.titles[endpoint]...)
}

type testEnv struct {
	router *gin.Engine
	store  *storage.InMemoryStore
	sender *fakeSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	store := storage.NewInMemoryStore()
	store.SeedRestaurant(&models.Restaurant{ID: "r-a", OwnerID: "owner-a", Name: "Cafe A", Slug: "cafe-a", UPIID: "cafea@upi"}, 5, 6)
	store.SeedRestaurant(&models.Restaurant{ID: "r-b", OwnerID: "owner-b", Name: "Bistro B", Slug: "bistro-b", UPIID: "bistrob@upi"}, 7)

	sender := &fakeSender{titles: map[string][]string{}, gone: map[string]bool{}}
	dispatcher := services.NewDispatcher(store, sender, log)

	producer, err := kafka.NewProducer(nil, "order-status-events", true, log)
	require.NoError(t, err)
	producer.SetLocalHandler(dispatcher.HandleOrderEvent)

	h := Handlers{
		Orders:   NewOrderHandler(services.NewOrderService(store, producer, nil, "Restaurant", log), log),
		Links:    NewMagicLinkHandler(services.NewMagicLinkService(store, nil, publicURL, 15*time.Minute, log), log),
		Payments: NewPaymentHandler(services.NewPaymentService(store, producer, log), services.NewWebhookVerifier(webhookSecret), log),
		Push:     NewPushHandler(dispatcher, log),
		Health:   store,
	}
	router := NewRouter(h, RouterConfig{JWTSecret: jwtSecret, InternalToken: internalToken}, log)
	return &testEnv{router: router, store: store, sender: sender}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func staffToken(t *testing.T, userID string) map[string]string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + signed}
}

func (e *testEnv) createOrder(t *testing.T, prepaid bool) *models.Order {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"restaurant_id": "r-a",
		"table_id":      "T-4",
		"cart":          []gin.H{{"id": 5, "qty": 2, "price": 12.99}},
		"prepaid":       prepaid,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	return &order
}

func (e *testEnv) signedWebhook(t *testing.T, payload gin.H) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return e.do(t, http.MethodPost, "/api/v1/payments/webhook", body, map[string]string{services.SignatureHeader: signed.Header})
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestCreateOrderAndTrackStatus(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, true)

	assert.Equal(t, models.StatusPaymentPending, order.Status)
	assert.Len(t, order.TrackCode, 8)
	require.NotNil(t, order.UPILink)
	assert.Contains(t, *order.UPILink, "pa=cafea%40upi")

	w := env.do(t, http.MethodGet, "/api/v1/orders/track/"+order.TrackCode+"/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"payment_pending"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/orders/track/NOPE1234/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateOrder_Rejections(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"malformed json", []byte(`{"restaurant_id":`), http.StatusBadRequest},
		{"empty cart", gin.H{"restaurant_id": "r-a", "table_id": "T-1", "cart": []gin.H{}}, http.StatusBadRequest},
		{"zero quantity", gin.H{"restaurant_id": "r-a", "table_id": "T-1", "cart": []gin.H{{"id": 5, "qty": 0, "price": 1}}}, http.StatusBadRequest},
		{"unknown restaurant", gin.H{"restaurant_id": "r-x", "table_id": "T-1", "cart": []gin.H{{"id": 5, "qty": 1, "price": 1}}}, http.StatusNotFound},
		{"unknown menu item", gin.H{"restaurant_id": "r-a", "table_id": "T-1", "cart": []gin.H{{"id": 99, "qty": 1, "price": 1}}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/orders", tt.body, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotContains(t, w.Body.String(), "constraint violation")
		})
	}
}

func TestMagicLinkRedeemRedirectsOnce(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, true)

	w := env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment-link", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var link models.IssuedLink
	decode(t, w, &link)
	require.True(t, strings.HasPrefix(link.URL, publicURL+"/api/v1/pay/"))
	path := strings.TrimPrefix(link.URL, publicURL)

	w = env.do(t, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, publicURL+"/r/cafe-a/checkout?track="+order.TrackCode, w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Empty(t, w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, "/api/v1/pay/not-a-token", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMagicLinkIssue_OrderNotPayable(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/orders/"+order.ID+"/payment-link", nil, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWebhook(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, true)
	payload := gin.H{"orderId": order.ID, "paymentStatus": "SUCCESS", "provider_txn_id": "txn-9"}

	t.Run("unsigned request is rejected", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/v1/payments/webhook", payload, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		stored, err := env.store.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaymentPending, stored.Status)
	})

	t.Run("first delivery pays the order", func(t *testing.T) {
		w := env.signedWebhook(t, payload)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res models.ConfirmationResult
		decode(t, w, &res)
		assert.Equal(t, models.StatusPaid, res.Status)
		assert.False(t, res.AlreadyProcessed)
	})

	t.Run("replay is acknowledged without effect", func(t *testing.T) {
		w := env.signedWebhook(t, payload)
		require.Equal(t, http.StatusOK, w.Code)
		var res models.ConfirmationResult
		body := decode(t, w, &res)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, "Payment already processed", body.Message)

		items, err := env.store.ListOrderItems(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("poller sees paid", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/orders/track/"+order.TrackCode+"/status", nil, nil)
		assert.JSONEq(t, `{"status":"paid"}`, w.Body.String())
	})

	t.Run("repeated failure is acknowledged", func(t *testing.T) {
		declined := env.createOrder(t, true)
		failure := gin.H{"orderId": declined.ID, "paymentStatus": "DECLINED"}
		require.Equal(t, http.StatusOK, env.signedWebhook(t, failure).Code)

		w := env.signedWebhook(t, failure)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res models.ConfirmationResult
		decode(t, w, &res)
		assert.True(t, res.AlreadyProcessed)
		assert.Equal(t, models.StatusFailed, res.Status)
	})

	t.Run("error mapping", func(t *testing.T) {
		tableOrder := env.createOrder(t, false)
		assert.Equal(t, http.StatusConflict, env.signedWebhook(t, gin.H{"orderId": tableOrder.ID, "paymentStatus": "SUCCESS"}).Code)
		assert.Equal(t, http.StatusNotFound, env.signedWebhook(t, gin.H{"orderId": "missing", "paymentStatus": "SUCCESS"}).Code)
		assert.Equal(t, http.StatusBadRequest, env.signedWebhook(t, gin.H{"orderId": tableOrder.ID}).Code)
	})
}

func TestStaffRoutes(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, false)
	ownerA := staffToken(t, "owner-a")

	sub := gin.H{
		"orderId": order.ID,
		"subscription": gin.H{
			"endpoint": "https://push.example.com/sub/1",
			"keys":     gin.H{"p256dh": "p", "auth": "a"},
		},
	}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/v1/push/subscribe", sub, nil).Code)

	t.Run("requires a token", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/staff/orders", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = env.do(t, http.MethodGet, "/api/v1/staff/orders", nil, map[string]string{"Authorization": "Bearer garbage"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("other restaurant gets the specific reason", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/v1/staff/orders/"+order.ID+"/status", gin.H{"status": "cancelled"}, staffToken(t, "owner-b"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, services.ErrOrderNotFound.Error(), decode(t, w, nil).Error)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/v1/staff/orders/"+order.ID+"/status", gin.H{"status": "teleported"}, ownerA)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("transition notifies subscribers", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/api/v1/staff/orders/"+order.ID+"/status", gin.H{"status": "Preparing", "estimated_minutes": 15}, ownerA)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var updated models.Order
		decode(t, w, &updated)
		assert.Equal(t, models.StatusPreparing, updated.Status)
		assert.Equal(t, []string{"Your order is being prepared"}, env.sender.received("https://push.example.com/sub/1"))
	})

	t.Run("list and detail", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/staff/orders?limit=10", nil, ownerA)
		require.Equal(t, http.StatusOK, w.Code)
		var orders []*models.Order
		decode(t, w, &orders)
		require.Len(t, orders, 1)
		assert.Equal(t, order.ID, orders[0].ID)

		w = env.do(t, http.MethodGet, "/api/v1/staff/orders?limit=ten", nil, ownerA)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = env.do(t, http.MethodGet, "/api/v1/staff/orders/"+order.ID, nil, ownerA)
		require.Equal(t, http.StatusOK, w.Code)
		var detail models.OrderDetail
		decode(t, w, &detail)
		assert.Len(t, detail.Items, 1)
		require.Len(t, detail.History, 1)
		assert.Equal(t, models.StatusPreparing, detail.History[0].Status)
	})
}

func TestInternalNotify(t *testing.T) {
	env := newTestEnv(t)
	order := env.createOrder(t, true)
	for _, ep := range []string{"https://push.example.com/live", "https://push.example.com/gone"} {
		require.NoError(t, env.store.UpsertPushSubscription(context.Background(), &models.PushSubscription{
			Endpoint: ep, OrderID: order.ID, P256dh: "p", Auth: "a", CreatedAt: time.Now(),
		}))
	}
	env.sender.gone["https://push.example.com/gone"] = true
	req := gin.H{"orderId": order.ID, "title": "Hello", "url": "/track/" + order.TrackCode}

	w := env.do(t, http.MethodPost, "/internal/push/notify", req, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/internal/push/notify", req, map[string]string{"X-Internal-Token": internalToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var results []models.DeliveryResult
	decode(t, w, &results)
	require.Len(t, results, 2)

	byEndpoint := map[string]models.DeliveryResult{}
	for _, r := range results {
		byEndpoint[r.Endpoint] = r
	}
	assert.True(t, byEndpoint["https://push.example.com/live"].Delivered)
	assert.True(t, byEndpoint["https://push.example.com/gone"].Removed)

	subs, err := env.store.ListPushSubscriptions(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}
