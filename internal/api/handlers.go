package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/openbuilders/ft-multisender/internal/parser"
	"github.com/openbuilders/ft-multisender/internal/types"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type RecipientsResponse struct {
	Recipients *types.RecipientList `json:"recipients"`
	Count      int                  `json:"count"`
	Total      decimal.Decimal      `json:"total"`
	// Text is the normalized list, one "account amount" per line.
	Text string `json:"text"`
}

type VerifyResponse struct {
	RecipientsResponse
	Removed int `json:"removed"`
}

type AmountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	ReceiverID string          `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
}

type recipientRow struct {
	AccountID string `csv:"account_id"`
	Amount    string `csv:"amount"`
}

func newRecipientsResponse(list *types.RecipientList) RecipientsResponse {
	return RecipientsResponse{
		Recipients: list,
		Count:      list.Len(),
		Total:      list.Total(),
		Text:       parser.Format(list),
	}
}

func (s *Server) SetRecipientsHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodySize))
	if err != nil {
		s.log.Error("Unable to read request body", "error", err)
		return nil, &APIError{ErrInvalidBody}
	}
	defer r.Body.Close()

	list, err := s.service.SetText(string(bodyBytes))
	if err != nil {
		return nil, err
	}

	s.log.Info("Accepted recipients", "count", list.Len(), "total", list.Total())

	return newRecipientsResponse(list), nil
}

func (s *Server) ListRecipientsHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	return newRecipientsResponse(s.service.List()), nil
}

func (s *Server) ClearRecipientsHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	if err := s.service.Clear(); err != nil {
		return nil, err
	}
	return "ok", nil
}

// ExportRecipientsHandler writes the current list as CSV.
func (s *Server) ExportRecipientsHandler(w http.ResponseWriter, r *http.Request) {
	entries := s.service.List().Entries()

	rows := make([]recipientRow, len(entries))
	for i, entry := range entries {
		rows[i] = recipientRow{AccountID: entry.AccountID, Amount: entry.Amount.String()}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="recipients.csv"`)

	if err := gocsv.Marshal(&rows, w); err != nil {
		s.log.Error("couldn't export recipients", "error", err)
	}
}

func (s *Server) VerifyHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	removed, list, err := s.service.Verify(r.Context())
	if err != nil {
		return nil, err
	}

	return VerifyResponse{
		RecipientsResponse: newRecipientsResponse(list),
		Removed:            removed,
	}, nil
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	return s.service.Status(), nil
}

func (s *Server) RefreshDepositHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	deposit, err := s.service.RefreshDeposit(r.Context())
	if err != nil {
		return nil, err
	}
	return AmountResponse{Amount: deposit}, nil
}

func (s *Server) RefreshBalanceHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	balance, err := s.service.RefreshBalance(r.Context())
	if err != nil {
		return nil, err
	}
	return AmountResponse{Amount: balance}, nil
}

func (s *Server) FundHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	if err := s.service.StartFund(s.ctx); err != nil {
		return nil, err
	}

	s.log.Info("Funding started")
	return "started", nil
}

func (s *Server) SendHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	mode, err := sendMode(r)
	if err != nil {
		return nil, err
	}

	if err := s.service.StartSend(s.ctx, mode); err != nil {
		return nil, err
	}

	s.log.Info("Send started", "mode", mode)
	return "started", nil
}

func (s *Server) ResumeHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	mode, err := sendMode(r)
	if err != nil {
		return nil, err
	}

	if err := s.service.StartResume(s.ctx, mode); err != nil {
		return nil, err
	}

	s.log.Info("Resume started", "mode", mode)
	return "started", nil
}

func (s *Server) WithdrawHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	if err := s.service.WithdrawAll(r.Context()); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Server) TransferHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	var req TransferRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil {
		s.log.Debug("invalid transfer request", "error", err)
		return nil, &APIError{ErrInvalidBody}
	}

	if !req.Amount.IsPositive() {
		return nil, &APIError{ErrInvalidAmount}
	}

	if err := s.service.Transfer(r.Context(), req.ReceiverID, req.Amount); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Server) StorageDepositHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	if err := s.service.StorageDeposit(r.Context()); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	return "ok", nil
}

func (s *Server) ReadinessHandler(w http.ResponseWriter, r *http.Request) (
	interface{}, error) {

	if s.health == nil {
		return "ok", nil
	}

	status := s.health.GetHealthStatus()
	if !status.Healthy {
		return nil, &APIError{ErrNotReady}
	}

	return status, nil
}

func sendMode(r *http.Request) (types.SendMode, error) {
	switch types.SendMode(r.URL.Query().Get("mode")) {
	case "", types.ModeUnsafe:
		return types.ModeUnsafe, nil
	case types.ModeSafe:
		return types.ModeSafe, nil
	}
	return "", &APIError{ErrInvalidMode}
}
