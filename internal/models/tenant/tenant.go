package tenant

import "fmt"

// Context identifies the calling organization and user. Every engine and
// generator operation takes one explicitly; there is no ambient current-user
// state anywhere in the service.
type Context struct {
	TenantId string
	ActorId  string
}

func (c Context) Validate() error {
	if c.TenantId == "" {
		return fmt.Errorf("empty tenant id")
	}
	return nil
}
