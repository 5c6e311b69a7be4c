package http

import (
	"net/http"

	"sakinah/internal/aggregate"
	"sakinah/internal/core"
	"sakinah/internal/log"
	"sakinah/internal/remote"
)

// handleListTransactions returns cached rows, newest first by insertion.
// Query: type, from, to (inclusive) and view=history to hide the cash half
// of each withdrawal.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ, err := parseTypeQuery(q, "type")
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	f := aggregate.Filter{Type: typ}
	for key, dst := range map[string]*string{"from": &f.From, "to": &f.To} {
		if q.Get(key) == "" {
			continue
		}
		d, err := parseDateQuery(q, key, core.Date{})
		if err != nil {
			writeError(w, r, log.OpList, err)
			return
		}
		*dst = d.String()
	}

	txs := f.Apply(s.ctrl.Transactions())
	if q.Get("view") == "history" {
		txs = aggregate.HistoryView(txs)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Body(txs).Write(w)
}

type transactionRequest struct {
	Type         core.TxType  `json:"type"`
	Amount       Amount       `json:"amount"`
	Date         string       `json:"date"`
	Account      core.Account `json:"account"`
	Category     string       `json:"category"`
	Description  string       `json:"description"`
	Counterparty string       `json:"counterparty"`
}

// handleCreateTransaction records one row. A missing date means today.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	if req.Date == "" {
		req.Date = s.ctrl.Today().String()
	}
	tx, err := s.ctrl.AddTransaction(r.Context(), core.Transaction{
		Type:         req.Type,
		Amount:       int64(req.Amount),
		Date:         req.Date,
		Account:      req.Account,
		Category:     sanitizeInput(req.Category),
		Description:  sanitizeInput(req.Description),
		Counterparty: sanitizeInput(req.Counterparty),
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(tx).Write(w)
}

type transactionPatchRequest struct {
	Type         *core.TxType  `json:"type"`
	Amount       *Amount       `json:"amount"`
	Date         *string       `json:"date"`
	Account      *core.Account `json:"account"`
	Category     *string       `json:"category"`
	Description  *string       `json:"description"`
	Counterparty *string       `json:"counterparty"`
}

func (p transactionPatchRequest) patch() remote.TransactionPatch {
	out := remote.TransactionPatch{
		Type:    p.Type,
		Date:    p.Date,
		Account: p.Account,
	}
	if p.Amount != nil {
		n := int64(*p.Amount)
		out.Amount = &n
	}
	clean := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := sanitizeInput(*s)
		return &v
	}
	out.Category = clean(p.Category)
	out.Description = clean(p.Description)
	out.Counterparty = clean(p.Counterparty)
	return out
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	tx, err := s.ctrl.UpdateTransaction(r.Context(), r.PathValue("id"), req.patch())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

type deleteResponse struct {
	Deleted []string `json:"deleted"`
}

// handleDeleteTransaction reports every removed id, which includes the
// counterpart when a withdrawal half is deleted.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ctrl.DeleteTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(deleteResponse{Deleted: removed}).Write(w)
}

type withdrawRequest struct {
	Amount Amount `json:"amount"`
	Date   string `json:"date"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpWithdraw, err)
		return
	}
	pair, err := s.ctrl.WithdrawCash(r.Context(), int64(req.Amount), req.Date)
	if err != nil {
		writeError(w, r, log.OpWithdraw, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(pair).Write(w)
}
