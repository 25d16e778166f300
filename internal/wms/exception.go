package wms

import "fmt"

// Code is an OGC service exception code; CodeNone renders without a code.
type Code string

const (
	CodeNone                  Code = ""
	CodeInvalidFormat         Code = "InvalidFormat"
	CodeInvalidCRS            Code = "InvalidCRS"
	CodeInvalidSRS            Code = "InvalidSRS"
	CodeLayerNotDefined       Code = "LayerNotDefined"
	CodeStyleNotDefined       Code = "StyleNotDefined"
	CodeOperationNotSupported Code = "OperationNotSupported"
)

// ServiceException is a client-facing WMS error. It is always answered with
// HTTP 200 and an XML report in the negotiated version's format.
type ServiceException struct {
	Code    Code
	Message string
}

func (e *ServiceException) Error() string {
	if e.Code == CodeNone {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newException(code Code, format string, args ...any) *ServiceException {
	return &ServiceException{Code: code, Message: fmt.Sprintf(format, args...)}
}

// RequestError is raised before a protocol version is settled and is
// answered as plain text.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }
