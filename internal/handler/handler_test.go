package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recharge_desk/internal/model"
	"recharge_desk/internal/repository"
	"recharge_desk/internal/service"
	"recharge_desk/internal/storage"
	"recharge_desk/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminPassword = "admin-pass-123"

type testServer struct {
	t      *testing.T
	router *gin.Engine
	store  *repository.MemoryStore
	auth   service.AuthService
}

func newTestServer(t *testing.T, maxUploadBytes int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	jwtUtil := utils.NewJWTUtil("test-secret", time.Hour)
	audit := service.NewAuditService(store)
	auth := service.NewAuthService(store, jwtUtil)
	require.NoError(t, auth.BootstrapAdmin(context.Background(), testAdminPassword))

	router, err := NewRouter(Deps{
		Auth:           auth,
		Transactions:   service.NewTransactionService(store, audit, service.PermissivePolicy{}, ""),
		Receipts:       service.NewReceiptService(store, files, audit, maxUploadBytes),
		Audit:          audit,
		JWT:            jwtUtil,
		Health:         store,
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: maxUploadBytes,
	})
	require.NoError(t, err)

	return &testServer{t: t, router: router, store: store, auth: auth}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(transactionID, token, filename, content string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/"+transactionID+"/upload-receipt", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Cliente", "email": email, "password": "secret123", "phone": "(11) 99999-0000", "account_number": "12345-6",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		AccessToken string     `json:"access_token"`
		TokenType   string     `json:"token_type"`
		User        model.User `json:"user"`
	}
	decode(s.t, w, &resp)
	require.NotEmpty(s.t, resp.AccessToken)
	assert.Equal(s.t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/admin-login", "", gin.H{"username": service.AdminUsername, "password": testAdminPassword})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string      `json:"access_token"`
		Admin       model.Admin `json:"admin"`
	}
	decode(s.t, w, &resp)
	assert.Equal(s.t, service.AdminUsername, resp.Admin.Username)
	return resp.AccessToken
}

func (s *testServer) createVivo(token string, paid, received float64) model.Transaction {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/transactions/vivo-recharge", token, gin.H{
		"phone_number": "11999990000", "amount_paid": paid, "amount_received": received,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var tx model.Transaction
	decode(s.t, w, &tx)
	return tx
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestEndToEnd_RechargeLifecycle(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")

	tx := s.createVivo(userToken, 50, 45)
	assert.Equal(t, model.StatusPending, tx.Status)
	assert.Equal(t, model.DefaultPixKey, tx.PixKey)
	assert.Equal(t, tx.CreatedAt, tx.UpdatedAt)

	w := s.upload(tx.ID, userToken, "r.jpg", "fake-jpeg")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var uploadResp struct {
		Message  string `json:"message"`
		Filename string `json:"filename"`
	}
	decode(t, w, &uploadResp)
	assert.Equal(t, tx.ID+"_r.jpg", uploadResp.Filename)

	w = s.do(http.MethodGet, "/api/user/transactions", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []model.Transaction
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, model.StatusPaid, mine[0].Status)
	require.NotNil(t, mine[0].ReceiptFilename)
	assert.Equal(t, tx.ID+"_r.jpg", *mine[0].ReceiptFilename)

	adminToken := s.adminToken()

	w = s.do(http.MethodGet, "/api/admin/transactions", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []model.Transaction
	decode(t, w, &all)
	require.Len(t, all, 1)
	assert.Equal(t, tx.ID, all[0].ID)

	w = s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status?status=completed", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/admin/transaction/"+tx.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var details model.TransactionDetails
	decode(t, w, &details)
	assert.Equal(t, model.StatusCompleted, details.Transaction.Status)
	require.NotNil(t, details.User)
	assert.Equal(t, "ana@example.com", details.User.Email)

	w = s.do(http.MethodGet, "/api/files/"+tx.ID+"_r.jpg", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fake-jpeg", w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, "/api/admin/logs?transaction_id="+tx.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []model.AdminLog
	decode(t, w, &logs)
	require.Len(t, logs, 3)
	assert.Equal(t, "Status da transação atualizado", logs[0].Action)
	assert.Equal(t, "Comprovante de pagamento enviado", logs[1].Action)
	assert.Equal(t, "Nova recarga Vivo criada", logs[2].Action)
	for _, entry := range logs {
		assert.Equal(t, tx.ID, entry.TransactionID)
		assert.Equal(t, "ana@example.com", entry.UserEmail)
	}
}

func TestEndToEnd_OneAuditEntryPerAction(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")
	ctx := context.Background()

	vivo := s.createVivo(userToken, 20, 18)

	w := s.do(http.MethodPost, "/api/transactions/tim-recharge", userToken, gin.H{
		"phone_number": "11988887777", "tim_email": "ana@tim.com", "tim_password": "tim-pass",
		"amount_paid": 30, "amount_received": 25,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tim model.Transaction
	decode(t, w, &tim)
	assert.Equal(t, model.OperatorTim, tim.Operator)

	w = s.do(http.MethodPost, "/api/transactions/pay-bill", userToken, gin.H{
		"phone_number": "11977776666", "operator": "claro", "account_password": "acc", "bill_amount": 89.9,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bill model.Transaction
	decode(t, w, &bill)
	assert.Equal(t, model.TransactionTypePayBill, bill.TransactionType)
	assert.Equal(t, 0.0, bill.AmountPaid)

	for _, id := range []string{vivo.ID, tim.ID, bill.ID} {
		id := id
		logs, err := s.store.AdminLogs().FindAll(ctx, model.AdminLogFilters{TransactionID: &id})
		require.NoError(t, err)
		assert.Len(t, logs, 1, id)
	}

	require.Equal(t, http.StatusOK, s.upload(bill.ID, userToken, "fatura.pdf", "pdf").Code)
	logs, err := s.store.AdminLogs().FindAll(ctx, model.AdminLogFilters{TransactionID: &bill.ID})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestEndToEnd_UploadToForeignOrMissingTransaction(t *testing.T) {
	s := newTestServer(t, 0)
	owner := s.register("ana@example.com")
	intruder := s.register("bia@example.com")

	tx := s.createVivo(owner, 50, 45)

	foreign := s.upload(tx.ID, intruder, "r.jpg", "x")
	missing := s.upload("no-such-id", intruder, "r.jpg", "x")
	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, missing.Body.String(), foreign.Body.String())

	stored, err := s.store.Transactions().FindByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)
}

func TestEndToEnd_ListByUserIsolation(t *testing.T) {
	s := newTestServer(t, 0)
	ana := s.register("ana@example.com")
	bia := s.register("bia@example.com")

	s.createVivo(ana, 10, 9)
	s.createVivo(ana, 20, 18)
	biaTx := s.createVivo(bia, 30, 27)

	w := s.do(http.MethodGet, "/api/user/transactions", bia, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Transaction
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, biaTx.ID, list[0].ID)

	w = s.do(http.MethodGet, "/api/user/transactions", ana, nil)
	decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, 20.0, list[0].AmountPaid, "newest first")
}

func TestAuth_DuplicateRegistration(t *testing.T) {
	s := newTestServer(t, 0)
	s.register("ana@example.com")

	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Outra", "email": "ANA@example.com", "password": "secret456", "phone": "11988880000", "account_number": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Email já cadastrado"}`, w.Body.String())
}

func TestAuth_Login(t *testing.T) {
	s := newTestServer(t, 0)
	s.register("ana@example.com")

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp["access_token"])
	assert.NotContains(t, w.Body.String(), "password")

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ghost@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_RegisterValidation(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		name string
		body gin.H
	}{
		{"bad email", gin.H{"name": "A", "email": "nope", "password": "secret123", "phone": "11999990000", "account_number": "1"}},
		{"short password", gin.H{"name": "A", "email": "a@b.com", "password": "123", "phone": "11999990000", "account_number": "1"}},
		{"bad phone", gin.H{"name": "A", "email": "a@b.com", "password": "secret123", "phone": "call me", "account_number": "1"}},
		{"missing account", gin.H{"name": "A", "email": "a@b.com", "password": "secret123", "phone": "11999990000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(http.MethodPost, "/api/auth/admin-login", "", gin.H{"username": service.AdminUsername, "password": "guess"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "access_token")
}

func TestAdminLogin_RepeatedBootstrapKeepsPassword(t *testing.T) {
	s := newTestServer(t, 0)
	require.NoError(t, s.auth.BootstrapAdmin(context.Background(), "a-different-password"))

	s.adminToken()
	w := s.do(http.MethodPost, "/api/auth/admin-login", "", gin.H{"username": service.AdminUsername, "password": "a-different-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleChecks(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")
	adminToken := s.adminToken()

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/transactions", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/admin/transactions", userToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/admin/logs", userToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/files/x.jpg", userToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/user/transactions", adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, "/api/transactions/vivo-recharge", adminToken, gin.H{
		"phone_number": "11999990000", "amount_paid": 10,
	}).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/user/transactions", "garbage", nil).Code)
}

func TestSessionForDeletedUser(t *testing.T) {
	s := newTestServer(t, 0)
	jwtUtil := utils.NewJWTUtil("test-secret", time.Hour)
	token, err := jwtUtil.GenerateToken("ghost", model.RoleUser)
	require.NoError(t, err)

	w := s.do(http.MethodPost, "/api/transactions/vivo-recharge", token, gin.H{
		"phone_number": "11999990000", "amount_paid": 10, "amount_received": 9,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")

	tests := []struct {
		name string
		path string
		body gin.H
	}{
		{"unknown operator", "pay-bill", gin.H{"phone_number": "11999990000", "operator": "oi", "account_password": "x", "bill_amount": 10}},
		{"missing bill amount", "pay-bill", gin.H{"phone_number": "11999990000", "operator": "claro", "account_password": "x"}},
		{"negative bill amount", "pay-bill", gin.H{"phone_number": "11999990000", "operator": "claro", "account_password": "x", "bill_amount": -1}},
		{"negative paid", "vivo-recharge", gin.H{"phone_number": "11999990000", "amount_paid": -5, "amount_received": 1}},
		{"missing received", "vivo-recharge", gin.H{"phone_number": "11999990000", "amount_paid": 10}},
		{"missing tim credentials", "tim-recharge", gin.H{"phone_number": "11999990000", "amount_paid": 10, "amount_received": 9}},
		{"tim missing received", "tim-recharge", gin.H{"phone_number": "11999990000", "tim_email": "a@tim.com", "tim_password": "p", "amount_paid": 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/transactions/"+tt.path, userToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	// zero is an accepted value, not a missing one
	w := s.do(http.MethodPost, "/api/transactions/vivo-recharge", userToken, gin.H{
		"phone_number": "11999990000", "amount_paid": 10, "amount_received": 0,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tx model.Transaction
	decode(t, w, &tx)
	require.NotNil(t, tx.AmountReceived)
	assert.Equal(t, 0.0, *tx.AmountReceived)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")
	adminToken := s.adminToken()
	tx := s.createVivo(userToken, 10, 9)

	w := s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status", adminToken, gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Transaction model.Transaction `json:"transaction"`
	}
	decode(t, w, &resp)
	assert.Equal(t, model.StatusCancelled, resp.Transaction.Status)

	// permissive: moving back out of a terminal state is allowed
	w = s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status?status=pending", adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status?status=refunded", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status", adminToken, gin.H{"status": "refunded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPut, "/api/admin/transaction/missing/status?status=paid", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Transação não encontrada"}`, w.Body.String())
}

func TestAdminTransactionFilters(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")
	adminToken := s.adminToken()

	paid := s.createVivo(userToken, 10, 9)
	s.createVivo(userToken, 20, 18)
	require.Equal(t, http.StatusOK, s.upload(paid.ID, userToken, "r.png", "png").Code)

	w := s.do(http.MethodGet, "/api/admin/transactions?status=paid&operator=vivo", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []model.Transaction
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, paid.ID, list[0].ID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/admin/transactions?status=bogus", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/admin/transactions?operator=oi", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/admin/transactions?transaction_type=x", adminToken, nil).Code)
}

func TestAdminStatsAndExport(t *testing.T) {
	s := newTestServer(t, 0)
	userToken := s.register("ana@example.com")
	adminToken := s.adminToken()

	tx := s.createVivo(userToken, 50, 45)
	s.createVivo(userToken, 10, 9)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/admin/transaction/"+tx.ID+"/status?status=completed", adminToken, nil).Code)

	w := s.do(http.MethodPost, "/api/transactions/pay-bill", userToken, gin.H{
		"phone_number": "11977776666", "operator": "claro", "account_password": "acc", "bill_amount": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bill model.Transaction
	decode(t, w, &bill)
	require.Equal(t, http.StatusOK, s.do(http.MethodPut, "/api/admin/transaction/"+bill.ID+"/status?status=completed", adminToken, nil).Code)

	w = s.do(http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.TransactionStats
	decode(t, w, &stats)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusPending])
	assert.Equal(t, int64(2), stats.ByStatus[model.StatusCompleted])
	assert.Equal(t, 80.0, stats.CompletedTotal)

	w = s.do(http.MethodGet, "/api/admin/transactions/export/csv", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=transactions_export_")
	assert.Equal(t, 4, strings.Count(w.Body.String(), "\n"))
}

func TestUpload_Limits(t *testing.T) {
	s := newTestServer(t, 16)
	userToken := s.register("ana@example.com")
	tx := s.createVivo(userToken, 10, 9)

	w := s.upload(tx.ID, userToken, "big.jpg", strings.Repeat("x", 17))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.upload(tx.ID, userToken, "ok.jpg", strings.Repeat("x", 16))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/transactions/"+tx.ID+"/upload-receipt", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFiles_NotFound(t *testing.T) {
	s := newTestServer(t, 0)
	adminToken := s.adminToken()

	w := s.do(http.MethodGet, "/api/files/missing.jpg", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Arquivo não encontrado"}`, w.Body.String())
}

func TestInfoAndHealth(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(http.MethodGet, "/api/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Sistema de Recarga Telefônica API v1.0","status":"running"}`, w.Body.String())

	w = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
