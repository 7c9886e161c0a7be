package trace

// NamedProducer is a Producer known only by name and idling flag, used for
// tasks reconstructed from an export where the live workflow is gone.
type NamedProducer struct {
	ProducerName string
	IsIdling     bool
}

// Name implements Producer.
func (p NamedProducer) Name() string { return p.ProducerName }

// Idling implements Producer.
func (p NamedProducer) Idling() bool { return p.IsIdling }
