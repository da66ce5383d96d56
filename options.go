package uthsync

import "github.com/sirupsen/logrus"

// config holds the pluggable pieces every primitive's constructor accepts
// via functional options, the way vanadium-go.lib's packages configure
// themselves with ...Opt parameters.
type config struct {
	sched        Scheduler
	queueFactory func() WaitQueue
	logger       *logrus.Logger
}

func defaultConfig() config {
	return config{
		sched:        DefaultScheduler,
		queueFactory: func() WaitQueue { return newFIFOQueue() },
		logger:       nil,
	}
}

// Option configures a primitive's constructor.
type Option func(*config)

// WithScheduler overrides the 2LS a primitive uses. Absent this option,
// every primitive uses DefaultScheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *config) { c.sched = s }
}

// WithQueueFactory overrides the WaitQueue implementation a primitive
// uses for its internal sleepers. Absent this option, every primitive
// uses the default FIFO.
func WithQueueFactory(f func() WaitQueue) Option {
	return func(c *config) { c.queueFactory = f }
}

// WithLogger attaches a structured logger to a primitive. Absent this
// option, primitives log nothing.
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) { c.logger = l }
}

func applyOptions(opts []Option) config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
