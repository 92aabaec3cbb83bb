package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/books/internal/model"
	"github.com/cleared-dev/books/internal/reports"
)

// SummaryJSON is the wire form of a books summary.
type SummaryJSON struct {
	Totals       map[model.AccountType]decimal.Decimal `json:"totals"`
	NetIncome    decimal.Decimal                       `json:"net_income"`
	Cash         decimal.Decimal                       `json:"cash"`
	Transactions int                                   `json:"transactions"`
	Imbalance    decimal.Decimal                       `json:"imbalance"`
	Balanced     bool                                  `json:"balanced"`
}

// ReportLineJSON is one account's activity in a period.
type ReportLineJSON struct {
	AccountID string          `json:"account_id"`
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// ProfitAndLossJSON is the wire form of a profit and loss report.
type ProfitAndLossJSON struct {
	From          Date             `json:"from"`
	To            Date             `json:"to"`
	Revenue       []ReportLineJSON `json:"revenue"`
	Expenses      []ReportLineJSON `json:"expenses"`
	TotalRevenue  decimal.Decimal  `json:"total_revenue"`
	TotalExpenses decimal.Decimal  `json:"total_expenses"`
	NetIncome     decimal.Decimal  `json:"net_income"`
}

// GSTRequest is the body of POST /gst/calculate.
type GSTRequest struct {
	Items         []LineJSON       `json:"items"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	GSTInclusive  *bool            `json:"gst_inclusive"`
	ExemptFromGST bool             `json:"exempt_from_gst"`
}

// GSTResponse is a computed GST breakdown.
type GSTResponse struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	Items     []ItemJSON      `json:"items"`
}

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Reports.Summary(r.Context(), TenantFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryJSON{
		Totals: s.Totals, NetIncome: s.NetIncome, Cash: s.Cash,
		Transactions: s.Transactions, Imbalance: s.Imbalance, Balanced: s.Balanced(),
	})
}

func (h *handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pl, err := h.svc.Reports.ProfitAndLoss(r.Context(), TenantFrom(r.Context()), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfitAndLossJSON{
		From: dateOf(pl.From), To: dateOf(pl.To),
		Revenue: toReportLines(pl.Revenue), Expenses: toReportLines(pl.Expenses),
		TotalRevenue: pl.TotalRevenue, TotalExpenses: pl.TotalExpenses, NetIncome: pl.NetIncome,
	})
}

func toReportLines(lines []reports.Line) []ReportLineJSON {
	out := make([]ReportLineJSON, len(lines))
	for i, l := range lines {
		out[i] = ReportLineJSON{AccountID: l.AccountID, Code: l.Code, Name: l.Name, Amount: l.Amount}
	}
	return out
}

func (h *handler) calculateGST(w http.ResponseWriter, r *http.Request) {
	var req GSTRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Invoices.Quote(toLines(req.Items), req.TaxRate, req.GSTInclusive, req.ExemptFromGST)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := GSTResponse{
		Subtotal: res.Subtotal, TaxAmount: res.TaxAmount, Total: res.Total, TaxRate: res.Rate,
		Items: make([]ItemJSON, len(res.Lines)),
	}
	for i, l := range res.Lines {
		out.Items[i] = ItemJSON{
			Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice,
			Total: l.Total, TaxRate: l.TaxRate, TaxAmount: l.TaxAmount,
		}
	}
	writeJSON(w, http.StatusOK, out)
}
