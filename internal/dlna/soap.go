package dlna

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	apperr "github.com/aspromise/ktv-casting/internal/errors"
)

const maxResponseSize = 1 << 20

// Arg is a single SOAP action argument. UPnP requires arguments in the
// order declared by the service, so they are kept in a slice.
type Arg struct {
	Name  string
	Value string
}

// SOAPClient makes SOAP requests to UPnP devices.
type SOAPClient struct {
	httpClient *http.Client
}

// NewSOAPClient creates a new SOAP client. timeout bounds every round trip.
func NewSOAPClient(timeout time.Duration) *SOAPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SOAPClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// soapFault is the body of a failed action.
type soapFault struct {
	Body struct {
		Fault *struct {
			FaultString string `xml:"faultstring"`
			Detail      struct {
				UPnPError struct {
					Code        int    `xml:"errorCode"`
					Description string `xml:"errorDescription"`
				} `xml:"UPnPError"`
			} `xml:"detail"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// Call invokes action on the service published at controlURL.
//
// Transport failures wrap ErrDeviceUnreachable. A SOAP fault or any other
// non-200 reply is returned as *errors.ControlError.
func (c *SOAPClient) Call(ctx context.Context, controlURL, service, action string, args []Arg) ([]byte, error) {
	body := c.buildSOAPBody(service, action, args)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPAction", fmt.Sprintf("\"%s#%s\"", service, action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", action, apperr.ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w: %v", action, apperr.ErrDeviceUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseFault(action, resp.StatusCode, respBody)
	}

	return respBody, nil
}

// parseFault turns an error reply into a ControlError.
func parseFault(action string, status int, body []byte) error {
	var f soapFault
	if err := xml.Unmarshal(body, &f); err == nil && f.Body.Fault != nil {
		upnp := f.Body.Fault.Detail.UPnPError
		desc := upnp.Description
		if desc == "" {
			desc = f.Body.Fault.FaultString
		}
		return &apperr.ControlError{Action: action, Code: upnp.Code, Description: desc}
	}
	return &apperr.ControlError{
		Action:      action,
		Description: fmt.Sprintf("unexpected status %d", status),
	}
}

// buildSOAPBody constructs the SOAP envelope.
func (c *SOAPClient) buildSOAPBody(service, action string, args []Arg) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">`)
	buf.WriteString(`<s:Body>`)
	buf.WriteString(fmt.Sprintf(`<u:%s xmlns:u="%s">`, action, service))

	for _, a := range args {
		buf.WriteString(fmt.Sprintf("<%s>%s</%s>", a.Name, xmlEscape(a.Value), a.Name))
	}

	buf.WriteString(fmt.Sprintf(`</u:%s>`, action))
	buf.WriteString(`</s:Body>`)
	buf.WriteString(`</s:Envelope>`)

	return buf.Bytes()
}

// xmlEscape escapes special XML characters.
func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
