package event

// FilterFunc decides whether an event is delivered to a subscription.
type FilterFunc func(ev Event) bool

// ForInstance accepts events addressed to instanceID only.
func ForInstance(instanceID string) FilterFunc {
	return func(ev Event) bool {
		return ev.Targets(instanceID)
	}
}

// AppliesToInstance accepts events addressed to instanceID or to every
// instance.
func AppliesToInstance(instanceID string) FilterFunc {
	return func(ev Event) bool {
		return ev.AppliesTo(instanceID)
	}
}

// ExcludeSource rejects events published by source, so a publisher that
// also subscribes skips its own echoes.
func ExcludeSource(source string) FilterFunc {
	return func(ev Event) bool {
		return source == "" || ev.Metadata.Source != source
	}
}

// All accepts events every non-nil filter accepts.
func All(filters ...FilterFunc) FilterFunc {
	return func(ev Event) bool {
		for _, f := range filters {
			if f != nil && !f(ev) {
				return false
			}
		}
		return true
	}
}
