package sim

// ReturnPriority is the conventional priority of a self-request that puts
// unconsumed output back into the producer. It is served after every
// ordinary consumer.
const ReturnPriority = -100

// Request asks for up to Max of Source's Property.
type Request struct {
	// Source is the ID of the component that declares Property as output.
	Source string

	// Property is the output being requested.
	Property string

	// As renames the granted amount in the requester's input. Empty means
	// Property.
	As string

	// Max caps the grant. Nil means "as much as is available".
	Max *float64

	// Priority orders requests against the same source, highest first.
	Priority int
}

// Cap returns a pointer to v, for use as Request.Max.
func Cap(v float64) *float64 {
	return &v
}

// Target returns the input property the grant is written to.
func (r Request) Target() string {
	if r.As != "" {
		return r.As
	}
	return r.Property
}
