// Package handler exposes the dashboard API as an API Gateway Lambda handler.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"waba-admin/internal/domain"
	"waba-admin/internal/metrics"
	"waba-admin/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type InboxUseCase interface {
	GetContacts(ctx context.Context, in usecase.ContactsInput) (usecase.ContactsOutput, error)
	GetMessages(ctx context.Context, in usecase.MessagesInput) (usecase.MessagesOutput, error)
	SendMessage(ctx context.Context, in usecase.SendInput) (string, error)
	ListConversation(ctx context.Context, in usecase.ConversationInput) ([]domain.Message, error)
	SendWhatsApp(ctx context.Context, in usecase.WhatsAppSendInput) (string, error)
}

type RAGUseCase interface {
	Get(ctx context.Context, phoneNumberID string) (domain.RAGRecord, error)
	Save(ctx context.Context, in usecase.SaveRAGInput) error
	Delete(ctx context.Context, phoneNumberID string) error
}

type OnboardingUseCase interface {
	ExchangeToken(ctx context.Context, in usecase.ExchangeTokenInput) (string, error)
	RequestVerification(ctx context.Context, in usecase.VerifyPhoneInput) (string, error)
	VerifyCode(ctx context.Context, in usecase.VerifyCodeInput) (string, error)
	SubscribeWebhooks(ctx context.Context, in usecase.SubscribeInput) error
	SaveWABA(ctx context.Context, in usecase.SaveWABAInput) error
	SaveCredentials(ctx context.Context, in domain.WABACredentials) error
}

type BillingUseCase interface {
	Checkout(ctx context.Context, in usecase.CheckoutInput) (usecase.CheckoutOutput, error)
	Subscription(ctx context.Context, userID string) (usecase.SubscriptionStatus, error)
	Activate(ctx context.Context, in usecase.ActivateInput) (domain.Subscription, error)
	Payments(ctx context.Context) ([]domain.Payment, error)
	VerifyPayment(ctx context.Context, invoiceID string) error
}

type AdminUseCase interface {
	CreateTemplate(ctx context.Context, in usecase.TemplateInput) (string, error)
	Users(ctx context.Context) ([]domain.AdminUser, error)
	UpdateUser(ctx context.Context, in usecase.UpdateUserInput) error
}

type SessionUseCase interface {
	Session(ctx context.Context, accessToken string) (usecase.SessionOutput, error)
	Authorize(ctx context.Context, accessToken, userID string) (domain.User, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Inbox      InboxUseCase
	RAG        RAGUseCase
	Onboarding OnboardingUseCase
	Billing    BillingUseCase
	Admin      AdminUseCase
	Session    SessionUseCase
}

type Handler struct {
	deps   Deps
	routes map[string]route
}

type routeFunc func(ctx context.Context, req request) (int, any)

// route maps HTTP methods to a handler; a method not listed gets 405.
type route map[string]routeFunc

type request struct {
	event events.APIGatewayProxyRequest
}

func (r request) query(key string) string {
	return strings.TrimSpace(r.event.QueryStringParameters[key])
}

func (r request) header(key string) string {
	for k, v := range r.event.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r request) bearer() string {
	auth := r.header("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func NewHandler(d Deps) (*Handler, error) {
	switch {
	case d.Inbox == nil:
		return nil, errors.New("handler: inbox use case must not be nil")
	case d.RAG == nil:
		return nil, errors.New("handler: rag use case must not be nil")
	case d.Onboarding == nil:
		return nil, errors.New("handler: onboarding use case must not be nil")
	case d.Billing == nil:
		return nil, errors.New("handler: billing use case must not be nil")
	case d.Admin == nil:
		return nil, errors.New("handler: admin use case must not be nil")
	case d.Session == nil:
		return nil, errors.New("handler: session use case must not be nil")
	}
	h := &Handler{deps: d}
	h.routes = map[string]route{
		"/get-contacts":       {http.MethodPost: h.getContacts},
		"/get-messages":       {http.MethodPost: h.getMessages},
		"/send-message":       {http.MethodPost: h.sendMessage},
		"/whatsapp":           {http.MethodGet: h.listConversation, http.MethodPost: h.sendWhatsApp},
		"/rag":                {http.MethodGet: h.getRAG, http.MethodPut: h.saveRAG, http.MethodDelete: h.deleteRAG},
		"/exchange-token":     {http.MethodPost: h.exchangeToken},
		"/verify-phone":       {http.MethodPost: h.verifyPhone},
		"/verify-phone-code":  {http.MethodPost: h.verifyPhoneCode},
		"/subscribe-webhooks": {http.MethodPost: h.subscribeWebhooks},
		"/midtrans":           {http.MethodPost: h.checkout},
		"/save-waba":          {http.MethodPost: h.saveWABA},
		"/templates":          {http.MethodPost: h.createTemplate},
		"/session":            {http.MethodGet: h.session},
		"/waba-data":          {http.MethodPut: h.saveCredentials},
		"/subscriptions":      {http.MethodGet: h.subscription, http.MethodPost: h.activate},
		"/users":              {http.MethodGet: h.users, http.MethodPut: h.updateUser},
		"/payments":           {http.MethodGet: h.payments, http.MethodPost: h.verifyPayment},
	}
	return h, nil
}

// Routes lists the served paths with their "/api" prefix, sorted.
func (h *Handler) Routes() []string {
	paths := make([]string, 0, len(h.routes))
	for p := range h.routes {
		paths = append(paths, "/api"+p)
	}
	sort.Strings(paths)
	return paths
}

// Handle routes an API Gateway proxy event on method and path. Paths may
// carry an "/api" prefix.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	req := request{event: event}
	corrID := req.header(correlationHeader)
	if corrID == "" {
		corrID = uuid.NewString()
	}
	path := routePath(event.Path)
	logger := log.With().
		Str("correlation_id", corrID).
		Str("method", event.HTTPMethod).
		Str("route", path).
		Logger()
	ctx = logger.WithContext(ctx)

	rt, ok := h.routes[path]
	if !ok {
		return jsonResponse(http.StatusNotFound, errorResponse{Error: "Not found", Code: "NOT_FOUND"}, corrID), nil
	}
	fn, ok := rt[event.HTTPMethod]
	if !ok {
		return jsonResponse(http.StatusMethodNotAllowed, errorResponse{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"}, corrID), nil
	}

	status, body := fn(ctx, req)
	if status >= http.StatusInternalServerError {
		metrics.UpstreamErrors.WithLabelValues(path).Inc()
	}
	logger.Info().Int("status", status).Msg("request handled")
	return jsonResponse(status, body, corrID), nil
}

func routePath(p string) string {
	p = "/" + strings.Trim(p, "/")
	switch {
	case p == "/api":
		return "/"
	case strings.HasPrefix(p, "/api/"):
		return p[len("/api"):]
	}
	return p
}

func decode(req request, v any) error {
	body := strings.TrimSpace(req.event.Body)
	if body == "" {
		body = "{}"
	}
	return json.Unmarshal([]byte(body), v)
}

func invalidBody() (int, any) {
	return http.StatusBadRequest, errorResponse{Error: "invalid JSON body", Code: string(usecase.ErrorInvalidInput)}
}

func errorResult(ctx context.Context, err error) (int, any) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		log.Ctx(ctx).Error().Err(err).Msg("unexpected error")
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: string(usecase.ErrorInternal)}
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		status = http.StatusUnauthorized
	case usecase.ErrorForbidden:
		status = http.StatusForbidden
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	}
	msg := ucErr.Message
	if msg == "" {
		msg = ucErr.Reason
	}
	ev := log.Ctx(ctx).Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Ctx(ctx).Error()
	}
	ev.Err(ucErr.Err).Str("code", string(ucErr.Code)).Str("reason", ucErr.Reason).Msg("request failed")
	return status, errorResponse{Error: msg, Code: string(ucErr.Code)}
}

func jsonResponse(status int, body any, corrID string) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"success":false,"error":"internal error","code":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(b),
	}
}

func queryInt(req request, key string) (int, bool) {
	v := req.query(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
