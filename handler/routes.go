package handler

import (
	"context"
	"net/http"

	"waba-admin/internal/domain"
	"waba-admin/internal/usecase"
)

type successResponse struct {
	Success bool `json:"success"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func success() successResponse { return successResponse{Success: true} }

func (h *Handler) getContacts(ctx context.Context, req request) (int, any) {
	var in usecase.ContactsInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	out, err := h.deps.Inbox.GetContacts(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		successResponse
		usecase.ContactsOutput
	}{success(), out}
}

func (h *Handler) getMessages(ctx context.Context, req request) (int, any) {
	var in usecase.MessagesInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	out, err := h.deps.Inbox.GetMessages(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		successResponse
		usecase.MessagesOutput
	}{success(), out}
}

type messageIDResponse struct {
	successResponse
	MessageID string `json:"message_id"`
}

func (h *Handler) sendMessage(ctx context.Context, req request) (int, any) {
	var in usecase.SendInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	id, err := h.deps.Inbox.SendMessage(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, messageIDResponse{success(), id}
}

func (h *Handler) listConversation(ctx context.Context, req request) (int, any) {
	limit, valid := queryInt(req, "limit")
	if !valid {
		return http.StatusBadRequest, errorResponse{Error: "limit must be a number", Code: string(usecase.ErrorInvalidInput)}
	}
	msgs, err := h.deps.Inbox.ListConversation(ctx, usecase.ConversationInput{
		PhoneNumberID: req.query("phone_number_id"),
		Contact:       req.query("contact"),
		Limit:         limit,
		Before:        req.query("before"),
	})
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, msgs
}

func (h *Handler) sendWhatsApp(ctx context.Context, req request) (int, any) {
	var in usecase.WhatsAppSendInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	in.AccessToken = req.bearer()
	id, err := h.deps.Inbox.SendWhatsApp(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, messageIDResponse{success(), id}
}

func (h *Handler) getRAG(ctx context.Context, req request) (int, any) {
	rec, err := h.deps.RAG.Get(ctx, req.query("phone_number_id"))
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, rec
}

func (h *Handler) saveRAG(ctx context.Context, req request) (int, any) {
	var in usecase.SaveRAGInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	in.PhoneNumberID = req.query("phone_number_id")
	if err := h.deps.RAG.Save(ctx, in); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, messageResponse{Message: "Data saved"}
}

func (h *Handler) deleteRAG(ctx context.Context, req request) (int, any) {
	if err := h.deps.RAG.Delete(ctx, req.query("phone_number_id")); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, messageResponse{Message: "Data deleted"}
}

func (h *Handler) exchangeToken(ctx context.Context, req request) (int, any) {
	var in usecase.ExchangeTokenInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	token, err := h.deps.Onboarding.ExchangeToken(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		AccessToken string `json:"access_token"`
	}{token}
}

func (h *Handler) verifyPhone(ctx context.Context, req request) (int, any) {
	var in usecase.VerifyPhoneInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	id, err := h.deps.Onboarding.RequestVerification(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		Message        string `json:"message"`
		VerificationID string `json:"verification_id"`
	}{"Verifikasi dimulai", id}
}

func (h *Handler) verifyPhoneCode(ctx context.Context, req request) (int, any) {
	var in usecase.VerifyCodeInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	id, err := h.deps.Onboarding.VerifyCode(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		PhoneNumberID string `json:"phone_number_id"`
	}{id}
}

func (h *Handler) subscribeWebhooks(ctx context.Context, req request) (int, any) {
	var in usecase.SubscribeInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	if err := h.deps.Onboarding.SubscribeWebhooks(ctx, in); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, success()
}

func (h *Handler) checkout(ctx context.Context, req request) (int, any) {
	var in usecase.CheckoutInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	out, err := h.deps.Billing.Checkout(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, out
}

func (h *Handler) saveWABA(ctx context.Context, req request) (int, any) {
	var in usecase.SaveWABAInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	if err := h.deps.Onboarding.SaveWABA(ctx, in); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, success()
}

func (h *Handler) createTemplate(ctx context.Context, req request) (int, any) {
	var in usecase.TemplateInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	id, err := h.deps.Admin.CreateTemplate(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		successResponse
		TemplateID string `json:"templateId"`
	}{success(), id}
}

func (h *Handler) session(ctx context.Context, req request) (int, any) {
	out, err := h.deps.Session.Session(ctx, req.bearer())
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		successResponse
		usecase.SessionOutput
	}{success(), out}
}

func (h *Handler) saveCredentials(ctx context.Context, req request) (int, any) {
	var in domain.WABACredentials
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	user, err := h.deps.Session.Authorize(ctx, req.bearer(), in.UserID)
	if err != nil {
		return errorResult(ctx, err)
	}
	in.UserID = user.ID
	if err := h.deps.Onboarding.SaveCredentials(ctx, in); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, success()
}

func (h *Handler) subscription(ctx context.Context, req request) (int, any) {
	user, err := h.deps.Session.Authorize(ctx, req.bearer(), req.query("user_id"))
	if err != nil {
		return errorResult(ctx, err)
	}
	out, err := h.deps.Billing.Subscription(ctx, user.ID)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, out
}

func (h *Handler) activate(ctx context.Context, req request) (int, any) {
	var in usecase.ActivateInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	user, err := h.deps.Session.Authorize(ctx, req.bearer(), in.UserID)
	if err != nil {
		return errorResult(ctx, err)
	}
	in.UserID = user.ID
	sub, err := h.deps.Billing.Activate(ctx, in)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		successResponse
		Subscription domain.Subscription `json:"subscription"`
	}{success(), sub}
}

func (h *Handler) users(ctx context.Context, req request) (int, any) {
	if _, err := h.deps.Session.Authorize(ctx, req.bearer(), ""); err != nil {
		return errorResult(ctx, err)
	}
	users, err := h.deps.Admin.Users(ctx)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		Users []domain.AdminUser `json:"users"`
	}{users}
}

func (h *Handler) updateUser(ctx context.Context, req request) (int, any) {
	if _, err := h.deps.Session.Authorize(ctx, req.bearer(), ""); err != nil {
		return errorResult(ctx, err)
	}
	var in usecase.UpdateUserInput
	if err := decode(req, &in); err != nil {
		return invalidBody()
	}
	in.Contact = req.query("contact")
	if err := h.deps.Admin.UpdateUser(ctx, in); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, success()
}

func (h *Handler) payments(ctx context.Context, req request) (int, any) {
	if _, err := h.deps.Session.Authorize(ctx, req.bearer(), ""); err != nil {
		return errorResult(ctx, err)
	}
	payments, err := h.deps.Billing.Payments(ctx)
	if err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, struct {
		Payments []domain.Payment `json:"payments"`
	}{payments}
}

func (h *Handler) verifyPayment(ctx context.Context, req request) (int, any) {
	if _, err := h.deps.Session.Authorize(ctx, req.bearer(), ""); err != nil {
		return errorResult(ctx, err)
	}
	if err := h.deps.Billing.VerifyPayment(ctx, req.query("invoice_id")); err != nil {
		return errorResult(ctx, err)
	}
	return http.StatusOK, success()
}
