package transport

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/trailhub/trailhub/pkg/api"
	"github.com/trailhub/trailhub/pkg/storage"
)

// The SOAP surface is a read-only view of the event catalog for legacy
// integrations. It speaks SOAP 1.1: one POST endpoint, the operation
// selected by the body element, errors reported as faults.

const (
	soapEnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	soapEventsNS   = "http://trailhub.dev/ws/events"

	// Body reads are capped so a hostile payload cannot exhaust memory.
	maxSOAPBody = 1 << 20
)

type soapRequestEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

type soapOperation struct {
	XMLName xml.Name
	ID      int    `xml:"id"`
	Name    string `xml:"name"`
}

type soapEvent struct {
	XMLName        xml.Name `xml:"event"`
	ID             int      `xml:"id"`
	Name           string   `xml:"name"`
	Length         int      `xml:"length"`
	ElevationGain  int      `xml:"elevationGain"`
	Description    string   `xml:"description,omitempty"`
	Status         string   `xml:"status"`
	EventDate      string   `xml:"eventDate"`
	StartLocation  string   `xml:"startLocation"`
	FinishLocation string   `xml:"finishLocation"`
	CreatedBy      int      `xml:"createdBy"`
}

type soapEventsResponse struct {
	XMLName xml.Name    `xml:"ns2:response"`
	NS      string      `xml:"xmlns:ns2,attr"`
	Events  []soapEvent `xml:"event"`
}

type soapFault struct {
	XMLName xml.Name `xml:"soap:Fault"`
	Code    string   `xml:"faultcode"`
	Message string   `xml:"faultstring"`
}

// handleSOAP dispatches a SOAP 1.1 request to the matching read-only
// event query. Unknown operations and malformed envelopes produce a
// Client fault, storage failures a Server fault.
func (a *API) handleSOAP(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxSOAPBody))
	if err != nil {
		writeSOAPFault(w, "soap:Client", "unreadable request body")
		return
	}

	var env soapRequestEnvelope
	if err := xml.Unmarshal(payload, &env); err != nil {
		writeSOAPFault(w, "soap:Client", "malformed SOAP envelope")
		return
	}

	var op soapOperation
	if err := xml.Unmarshal(env.Body.Inner, &op); err != nil {
		writeSOAPFault(w, "soap:Client", "malformed operation body")
		return
	}

	var events []*api.Event
	switch op.XMLName.Local {
	case "getAllEventsRequest":
		events, err = a.store.ListEvents(r.Context())
	case "getEventByIdRequest":
		if op.ID <= 0 {
			writeSOAPFault(w, "soap:Client", "id must be a positive integer")
			return
		}
		var e *api.Event
		e, err = a.store.GetEvent(r.Context(), op.ID)
		if err == nil {
			events = []*api.Event{e}
		}
	case "searchEventsByNameRequest":
		if op.Name == "" {
			writeSOAPFault(w, "soap:Client", "name must not be empty")
			return
		}
		events, err = a.store.SearchEventsByName(r.Context(), op.Name)
	default:
		writeSOAPFault(w, "soap:Client", "unknown operation "+strconv.Quote(op.XMLName.Local))
		return
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeSOAPFault(w, "soap:Client", "event not found")
			return
		}
		writeSOAPFault(w, "soap:Server", "internal error")
		return
	}

	resp := soapEventsResponse{NS: soapEventsNS, Events: make([]soapEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, soapEvent{
			ID:             e.ID,
			Name:           e.Name,
			Length:         e.Length,
			ElevationGain:  e.ElevationGain,
			Description:    e.Description,
			Status:         string(e.Status),
			EventDate:      e.EventDate.Format("2006-01-02"),
			StartLocation:  e.StartLocation,
			FinishLocation: e.FinishLocation,
			CreatedBy:      e.CreatedBy,
		})
	}
	writeSOAPEnvelope(w, http.StatusOK, resp)
}

func writeSOAPFault(w http.ResponseWriter, code, message string) {
	// SOAP 1.1 carries faults in a 500 regardless of fault code.
	writeSOAPEnvelope(w, http.StatusInternalServerError, soapFault{Code: code, Message: message})
}

func writeSOAPEnvelope(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)

	inner, err := xml.Marshal(body)
	if err != nil {
		return
	}
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><soap:Envelope xmlns:soap=%q><soap:Body>%s</soap:Body></soap:Envelope>`,
		soapEnvelopeNS, inner)
}
