package httpapi

import "net/http"

func (r *Router) recordReading(w http.ResponseWriter, req *http.Request) {
	p, err := principalFrom(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	meterID, ok := pathID(req, "meterID")
	if !ok {
		badRequest(w, "invalid meter id")
		return
	}
	var body readingRequest
	if err := readBodyJSON(w, req, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	date, err := parseTime(body.ReadingDate, r.svc.Location)
	if err != nil {
		badRequest(w, "invalid reading_date")
		return
	}

	reading, err := r.svc.Readings.RecordReading(req.Context(), p, meterID, date, body.Value)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReadingResponse(reading))
}
