package initiator

// Option adjusts a single Read, Write, ReadAt or WriteAt call.
type Option func(*callOptions)

type callOptions struct {
	verify    bool
	increment bool
	reply     bool
	key       *uint8
	ext       *uint8
}

func defaultOptions() callOptions {
	return callOptions{verify: true, increment: true, reply: true}
}

func applyOptions(opts []Option) callOptions {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithVerify sets whether the target verifies write data before writing.
// Writes verify by default.
func WithVerify(on bool) Option {
	return func(o *callOptions) { o.verify = on }
}

// WithIncrement sets whether the target increments the address while
// transferring. On by default.
func WithIncrement(on bool) Option {
	return func(o *callOptions) { o.increment = on }
}

// WithReply sets whether a write is acknowledged. An unacknowledged write
// returns as soon as it has been sent. Reads always expect a reply.
func WithReply(on bool) Option {
	return func(o *callOptions) { o.reply = on }
}

// WithKey overrides the access key.
func WithKey(key uint8) Option {
	return func(o *callOptions) { o.key = &key }
}

// WithExtendedAddress sets the extended address of ReadAt and WriteAt.
// Named memory objects use their configured extended address.
func WithExtendedAddress(ext uint8) Option {
	return func(o *callOptions) { o.ext = &ext }
}
