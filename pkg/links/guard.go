package links

import "go.uber.org/zap"

// polarity distinguishes put events from remove events in guard keys.
type polarity byte

const (
	polarityPut    polarity = '+'
	polarityRemove polarity = '-'
)

// eventKey identifies one edge event. Two calls with the same key within one
// call tree are the same event.
type eventKey struct {
	base   string
	op     polarity
	tag    string
	target string
}

func (k eventKey) String() string {
	return k.base + " " + string(k.op) + k.tag + " " + k.target
}

// guard runs fn unless the event is already in flight on this repo. The key
// is released on every exit path, including errors and panics.
func (r *Repo) guard(key eventKey, fn func() error) error {
	if _, busy := r.inFlight[key]; busy {
		r.logger.Debug("skipping re-entrant event", zap.Stringer("event", key))
		return nil
	}
	r.inFlight[key] = struct{}{}
	defer delete(r.inFlight, key)
	return fn()
}
