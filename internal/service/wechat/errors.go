package wechat

import "fmt"

// CredentialError means the platform refused or failed to issue an access
// token: network failure, malformed response, or an explicit errcode.
type CredentialError struct {
	Code int
	Msg  string
	Err  error
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wechat credential error: %v", e.Err)
	}
	return fmt.Sprintf("wechat credential error: errcode=%d errmsg=%s", e.Code, e.Msg)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// TransportError means the HTTP round trip or response decoding failed. It is
// never silently mapped to a success result.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("wechat %s transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PlatformError carries a non-zero errcode returned by the platform.
type PlatformError struct {
	Op   string
	Code int
	Msg  string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("wechat %s API error: errcode=%d errmsg=%s", e.Op, e.Code, e.Msg)
}
