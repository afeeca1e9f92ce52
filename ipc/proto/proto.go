// Package proto builds and reads the control protocol's response
// envelope: a numeric status plus a polymorphic JSON body, carried as a
// containerd/typeurl "any" so the client can recover the concrete Go
// type a response carries (SpawnInfo, an error message, or nothing)
// without the decoder needing a per-method switch ahead of time.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/containerd/typeurl"
	"github.com/gogo/protobuf/types"

	"github.com/xcjail/xc/ipc/packet"
	"github.com/xcjail/xc/models"
)

func init() {
	typeurl.Register(&models.SpawnInfo{}, "xc", "SpawnInfo")
	typeurl.Register(&ErrorBody{}, "xc", "ErrorBody")
	typeurl.Register(&Empty{}, "xc", "Empty")
}

// ErrorBody is the response body for a failed request.
type ErrorBody struct {
	Message string `json:"message"`
}

// Empty is the response body for methods with no meaningful result.
type Empty struct{}

// responseWire is the on-the-wire shape of a response frame.
type responseWire struct {
	Status  int             `json:"status"`
	TypeURL string          `json:"type_url,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// WriteResponse writes a framed response: status 0 means success, a
// POSIX errno otherwise. body is typically a *models.SpawnInfo,
// *ErrorBody, or *Empty.
func WriteResponse(fd int, status int, body interface{}) error {
	if body == nil {
		body = &Empty{}
	}
	any, err := typeurl.MarshalAny(body)
	if err != nil {
		return fmt.Errorf("proto: marshal response body: %w", err)
	}
	wire := responseWire{Status: status, TypeURL: any.GetTypeUrl(), Data: any.GetValue()}
	return packet.WriteFrame(fd, wire)
}

// ReadResponse reads one framed response and recovers its typed body.
func ReadResponse(fd int) (status int, body interface{}, err error) {
	var wire responseWire
	if err := packet.ReadFrame(fd, &wire); err != nil {
		return 0, nil, err
	}
	if wire.TypeURL == "" {
		return wire.Status, nil, nil
	}
	any := &types.Any{TypeUrl: wire.TypeURL, Value: wire.Data}
	v, err := typeurl.UnmarshalAny(any)
	if err != nil {
		return wire.Status, nil, fmt.Errorf("proto: unmarshal response body: %w", err)
	}
	return wire.Status, v, nil
}

// requestWire is the on-the-wire shape of a request frame: a literal
// {method, data} pair with no typeurl envelope, since every method's
// data already has one fixed JSON shape named by method and real
// clients must match it verbatim.
type requestWire struct {
	Method string      `json:"method"`
	Data   interface{} `json:"data,omitempty"`
}

// WriteRequest writes a framed request.
func WriteRequest(fd int, method string, data interface{}) error {
	return packet.WriteFrame(fd, requestWire{Method: method, Data: data})
}
