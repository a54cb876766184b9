package transport

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func soapRequest(op string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>%s</soap:Body>
</soap:Envelope>`, op)
}

// doSOAP posts a SOAP envelope with a bearer token.
func doSOAP(t *testing.T, h http.Handler, token, envelope string) (int, string) {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/ws/events", token, envelope)
	return rec.Code, rec.Body.String()
}

func TestSOAPGetAllEvents(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")
	createEvent(t, h, token)

	status, body := doSOAP(t, h, token, soapRequest(`<getAllEventsRequest/>`))
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if !strings.Contains(body, "<name>Ridge Traverse</name>") {
		t.Errorf("response does not carry the event name: %s", body)
	}
	if !strings.Contains(body, "soap:Envelope") {
		t.Errorf("response is not a SOAP envelope: %s", body)
	}
}

func TestSOAPGetEventByID(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")
	eventID := createEvent(t, h, token)

	op := fmt.Sprintf(`<getEventByIdRequest><id>%d</id></getEventByIdRequest>`, eventID)
	status, body := doSOAP(t, h, token, soapRequest(op))
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if !strings.Contains(body, fmt.Sprintf("<id>%d</id>", eventID)) {
		t.Errorf("response does not carry the event id: %s", body)
	}
}

func TestSOAPGetEventByIDNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	status, body := doSOAP(t, h, token,
		soapRequest(`<getEventByIdRequest><id>999</id></getEventByIdRequest>`))
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a SOAP fault", status)
	}
	if !strings.Contains(body, "<faultcode>soap:Client</faultcode>") {
		t.Errorf("expected a Client fault: %s", body)
	}
}

func TestSOAPSearchEventsByName(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")
	createEvent(t, h, token)

	status, body := doSOAP(t, h, token,
		soapRequest(`<searchEventsByNameRequest><name>ridge</name></searchEventsByNameRequest>`))
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if !strings.Contains(body, "<name>Ridge Traverse</name>") {
		t.Errorf("search missed the event: %s", body)
	}
}

func TestSOAPUnknownOperation(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	status, body := doSOAP(t, h, token, soapRequest(`<deleteEverythingRequest/>`))
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a SOAP fault", status)
	}
	if !strings.Contains(body, "soap:Client") {
		t.Errorf("expected a Client fault: %s", body)
	}
}

func TestSOAPMalformedEnvelope(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")

	status, body := doSOAP(t, h, token, `<not-an-envelope`)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for a SOAP fault", status)
	}
	if !strings.Contains(body, "soap:Client") {
		t.Errorf("expected a Client fault: %s", body)
	}
}

func TestSOAPRequiresAuthentication(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodPost, "/ws/events", "", soapRequest(`<getAllEventsRequest/>`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous SOAP: status %d, want 401", rec.Code)
	}
}

func TestSOAPResponseParses(t *testing.T) {
	h, _ := newTestServer(t)
	register(t, h, "alice", "hunter2hunter2")
	token := login(t, h, "alice", "hunter2hunter2")
	createEvent(t, h, token)

	_, body := doSOAP(t, h, token, soapRequest(`<getAllEventsRequest/>`))

	var env struct {
		Body struct {
			Response struct {
				Events []soapEvent `xml:"event"`
			} `xml:"response"`
		} `xml:"Body"`
	}
	if err := xml.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("response does not parse as XML: %v\n%s", err, body)
	}
	if len(env.Body.Response.Events) != 1 {
		t.Fatalf("events = %d, want 1", len(env.Body.Response.Events))
	}
	e := env.Body.Response.Events[0]
	if e.Name != "Ridge Traverse" || e.Status != "ACTIVE" || e.EventDate != "2026-10-03" {
		t.Errorf("event = %+v", e)
	}
}
