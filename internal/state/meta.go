package state

import "encoding/json"

// Status is the lifecycle of one independently loaded resource.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ResourceMeta tracks the status of one resource. The zero value is idle.
//
// token is the request currently owning the resource. Only that request may
// settle it, which is what keeps late responses from overwriting newer ones.
type ResourceMeta struct {
	Status Status
	Error  string
	token  uint64
}

// Idle reports whether the resource has never been requested.
func (m ResourceMeta) Idle() bool { return m.Status == "" || m.Status == StatusIdle }

// Loading reports whether a request is outstanding.
func (m ResourceMeta) Loading() bool { return m.Status == StatusLoading }

// request moves the resource to loading for token. Tokens only move forward.
func (m ResourceMeta) request(token uint64) (ResourceMeta, bool) {
	if token <= m.token {
		return m, false
	}
	return ResourceMeta{Status: StatusLoading, token: token}, true
}

// succeed settles the resource if token still owns it.
func (m ResourceMeta) succeed(token uint64) (ResourceMeta, bool) {
	if !m.Loading() || m.token != token {
		return m, false
	}
	return ResourceMeta{Status: StatusSuccess, token: token}, true
}

// fail settles the resource with msg if token still owns it.
func (m ResourceMeta) fail(token uint64, msg string) (ResourceMeta, bool) {
	if !m.Loading() || m.token != token {
		return m, false
	}
	return ResourceMeta{Status: StatusError, Error: msg, token: token}, true
}

// release returns the resource to idle if token still owns it. Used when the
// owning request settles after the selection it served has gone away.
func (m ResourceMeta) release(token uint64) (ResourceMeta, bool) {
	if !m.Loading() || m.token != token {
		return m, false
	}
	return ResourceMeta{Status: StatusIdle, token: token}, true
}

// reset returns the resource to idle. The token is kept so requests issued
// before the reset still lose to later ones.
func (m ResourceMeta) reset() ResourceMeta {
	return ResourceMeta{Status: StatusIdle, token: m.token}
}

type metaJSON struct {
	Status Status  `json:"status"`
	Error  *string `json:"error"`
}

// MarshalJSON renders {"status": ..., "error": null|"..."}; error is non-null
// only in the error status.
func (m ResourceMeta) MarshalJSON() ([]byte, error) {
	out := metaJSON{Status: m.Status}
	if out.Status == "" {
		out.Status = StatusIdle
	}
	if m.Status == StatusError {
		msg := m.Error
		out.Error = &msg
	}
	return json.Marshal(out)
}

// UnmarshalJSON lets clients of the presentation boundary decode snapshots.
func (m *ResourceMeta) UnmarshalJSON(data []byte) error {
	var in metaJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	m.Status = in.Status
	m.Error = ""
	if in.Error != nil {
		m.Error = *in.Error
	}
	return nil
}
