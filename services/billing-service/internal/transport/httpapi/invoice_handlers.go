package httpapi

import (
	"net/http"

	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/invoice"
)

func (r *Router) generateInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	renterID, ok := pathID(req, "renterID")
	if !ok {
		badRequest(w, "invalid renter id")
		return
	}
	var body generateRequest
	if err := readBodyJSON(w, req, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	start, err := parseTime(body.PeriodStart, r.svc.Location)
	if err != nil {
		badRequest(w, "invalid period_start")
		return
	}
	end, err := parseTime(body.PeriodEnd, r.svc.Location)
	if err != nil {
		badRequest(w, "invalid period_end")
		return
	}

	inv, err := r.svc.Generator.GenerateInvoice(req.Context(), p, renterID, start, end)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (r *Router) listInvoices(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	filter := invoice.ListFilter{Status: invoice.InvoiceStatus(q.Get("status"))}
	if filter.RenterID, err = parseOptionalUUID(q.Get("renter_id")); err != nil {
		badRequest(w, "invalid renter_id")
		return
	}
	if filter.PeriodFrom, err = parseOptionalTime(q.Get("period_from"), r.svc.Location); err != nil {
		badRequest(w, "invalid period_from")
		return
	}
	if filter.PeriodTo, err = parseOptionalTime(q.Get("period_to"), r.svc.Location); err != nil {
		badRequest(w, "invalid period_to")
		return
	}
	if filter.Limit, err = parseInt(q.Get("limit"), 0); err != nil {
		badRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = parseInt(q.Get("offset"), 0); err != nil {
		badRequest(w, "invalid offset")
		return
	}

	page, err := r.svc.Reader.ListInvoices(req.Context(), p, filter)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := invoicePage{Invoices: []invoiceResponse{}, Total: page.Total, Limit: page.Limit, Offset: page.Offset}
	for i := range page.Invoices {
		out.Invoices = append(out.Invoices, toInvoiceResponse(&page.Invoices[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Router) getInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid invoice id")
		return
	}
	inv, err := r.svc.Reader.GetInvoice(req.Context(), p, id)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (r *Router) updateInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid invoice id")
		return
	}
	var body patchRequest
	if err := readBodyJSON(w, req, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	var patch invoice.InvoicePatch
	if body.PeriodStart != nil {
		t, err := parseTime(*body.PeriodStart, r.svc.Location)
		if err != nil {
			badRequest(w, "invalid period_start")
			return
		}
		patch.PeriodStart = &t
	}
	if body.PeriodEnd != nil {
		t, err := parseTime(*body.PeriodEnd, r.svc.Location)
		if err != nil {
			badRequest(w, "invalid period_end")
			return
		}
		patch.PeriodEnd = &t
	}
	if body.Items != nil {
		items := make([]invoice.InvoiceItem, 0, len(*body.Items))
		for _, it := range *body.Items {
			items = append(items, it.toItem())
		}
		patch.Items = &items
	}

	inv, err := r.svc.Editor.UpdateDraft(req.Context(), p, id, patch)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (r *Router) deleteInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid invoice id")
		return
	}
	if err := r.svc.Editor.DeleteDraft(req.Context(), p, id); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) finalizeInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid invoice id")
		return
	}
	inv, err := r.svc.Finalizer.FinalizeInvoice(req.Context(), p, id)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (r *Router) payInvoice(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid invoice id")
		return
	}
	inv, err := r.svc.Finalizer.MarkPaid(req.Context(), p, id)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}
