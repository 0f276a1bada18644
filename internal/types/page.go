// README: Skip/limit pagination shared by every list endpoint.
package types

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

type Page struct {
	Skip  int
	Limit int
}

// Normalize clamps skip to >= 0 and limit to (0, MaxLimit], defaulting to DefaultLimit.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}
