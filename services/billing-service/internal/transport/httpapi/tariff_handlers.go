package httpapi

import (
	"net/http"

	billingtypes "github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/billingTypes"
	"github.com/Tanmoy095/rent-counter-billing/services/billing-service/internal/tariff"
)

// decodeTariff turns a request body into a manager Input. A configuration
// error comes back as a domain error so the caller sees the usual mapping.
func (r *Router) decodeTariff(w http.ResponseWriter, req *http.Request) (tariff.Input, string, error) {
	var body tariffRequest
	if err := readBodyJSON(w, req, &body); err != nil {
		return tariff.Input{}, "malformed request body", nil
	}
	from, err := parseTime(body.ActiveFrom, r.svc.Location)
	if err != nil {
		return tariff.Input{}, "invalid active_from", nil
	}
	activeUntil, err := parseOptionalTime(deref(body.ActiveUntil), r.svc.Location)
	if err != nil {
		return tariff.Input{}, "invalid active_until", nil
	}
	if len(body.Configuration) == 0 {
		return tariff.Input{}, "configuration is required", nil
	}
	cfg, err := tariff.ParseConfiguration(body.Configuration)
	if err != nil {
		return tariff.Input{}, "", err
	}
	return tariff.Input{
		ProviderID:    body.ProviderID,
		RemoteID:      body.RemoteID,
		Name:          body.Name,
		ServiceType:   billingtypes.ServiceType(body.ServiceType),
		Configuration: cfg,
		ActiveFrom:    from,
		ActiveUntil:   activeUntil,
	}, "", nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *Router) createTariff(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	in, msg, err := r.decodeTariff(w, req)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	t, err := r.svc.Tariffs.CreateTariff(req.Context(), p, in)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeTariff(w, req, http.StatusCreated, t)
}

func (r *Router) updateTariff(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid tariff id")
		return
	}
	in, msg, err := r.decodeTariff(w, req)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	t, err := r.svc.Tariffs.UpdateTariff(req.Context(), p, id, in)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeTariff(w, req, http.StatusOK, t)
}

func (r *Router) getTariff(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	id, ok := pathID(req, "id")
	if !ok {
		badRequest(w, "invalid tariff id")
		return
	}
	t, err := r.svc.Tariffs.GetTariff(req.Context(), p, id)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeTariff(w, req, http.StatusOK, t)
}

func (r *Router) listTariffs(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	q := req.URL.Query()
	filter := tariff.ListFilter{ServiceType: billingtypes.ServiceType(q.Get("service_type"))}
	if filter.ProviderID, err = parseOptionalUUID(q.Get("provider_id")); err != nil {
		badRequest(w, "invalid provider_id")
		return
	}
	if filter.ActiveAt, err = parseOptionalTime(q.Get("active_at"), r.svc.Location); err != nil {
		badRequest(w, "invalid active_at")
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

	ts, err := r.svc.Tariffs.ListTariffs(req.Context(), p, filter)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]tariffResponse, 0, len(ts))
	for i := range ts {
		resp, err := toTariffResponse(&ts[i])
		if err != nil {
			r.writeError(w, req, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tariffs": out})
}

func (r *Router) writeTariff(w http.ResponseWriter, req *http.Request, status int, t *tariff.Tariff) {
	resp, err := toTariffResponse(t)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, status, resp)
}
