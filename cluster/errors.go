package cluster

import "fmt"

// ProvisioningError indicates that a job's tasks could
// not be created or did not become ready.
type ProvisioningError struct {
	Job       string
	Requested int
	Available int
	Err       error
}

func (p *ProvisioningError) Error() string {
	msg := fmt.Sprintf("provision job %q: %d of %d tasks available", p.Job, p.Available,
		p.Requested)
	if p.Err != nil {
		msg += ": " + p.Err.Error()
	}
	return msg
}

// Cause returns the underlying error, if any.
func (p *ProvisioningError) Cause() error {
	return p.Err
}

func (p *ProvisioningError) Unwrap() error {
	return p.Err
}

// ConfigError indicates an invalid launch setting, such
// as a zone outside of the region or an unknown image.
type ConfigError struct {
	Field  string
	Reason string
}

func (c *ConfigError) Error() string {
	return "cluster config: " + c.Field + ": " + c.Reason
}
