package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	p2pv1 "github.com/signalsfoundry/p2p-supplicant/api/p2p/v1"
	"github.com/signalsfoundry/p2p-supplicant/internal/logging"
	"github.com/signalsfoundry/p2p-supplicant/internal/p2p"
	"github.com/signalsfoundry/p2p-supplicant/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// CallbackIDMetadataKey is the response header naming the registration.
// It is sent once the stream is registered on the interface, so a client
// that waits for headers knows no later event will be missed.
const CallbackIDMetadataKey = "x-callback-id"

// streamCallback adapts a server stream to p2p.DetachableCallback. Events
// are queued without blocking the engine; when the queue is full the event
// is dropped and counted.
type streamCallback struct {
	id     string
	ifname string
	log    logging.Logger

	events  chan *p2pv1.Event
	closed  atomic.Bool
	dropped atomic.Uint64

	detachOnce sync.Once
	done       chan struct{}
	reason     error
}

func newStreamCallback(ifname string, buffer int, log logging.Logger) *streamCallback {
	return &streamCallback{
		id:     uuid.NewString(),
		ifname: ifname,
		log:    log,
		events: make(chan *p2pv1.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (c *streamCallback) OnEvent(ev model.Event) {
	if c.closed.Load() {
		return
	}
	select {
	case c.events <- EventToProto(ev):
	default:
		n := c.dropped.Add(1)
		c.log.Warn(context.Background(), "callback stream full, event dropped",
			logging.String("callback_id", c.id),
			logging.String("event", ev.Type.String()),
			logging.Any("dropped_total", n),
		)
	}
}

func (c *streamCallback) OnDetached(reason error) {
	c.detachOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// RegisterCallback installs the stream as the interface callback and
// forwards events until the client leaves, another stream replaces this
// one (Aborted/CALLBACK_REPLACED) or the interface goes away
// (FailedPrecondition/IFACE_INVALID).
func (s *IfaceService) RegisterCallback(req *p2pv1.IfaceRequest, stream grpc.ServerStreamingServer[p2pv1.Event]) error {
	ctx := stream.Context()
	log := logging.FromContext(ctx, s.log).With(logging.Ifname(req.Ifname))

	cb := newStreamCallback(req.Ifname, s.callbackBuffer, log)
	defer cb.closed.Store(true)

	if err := s.do(ctx, req.Ifname, "registerCallback", func(ctx context.Context, f *p2p.Iface) error {
		return f.RegisterCallback(ctx, cb)
	}); err != nil {
		return err
	}
	log = log.With(logging.String("callback_id", cb.id))
	log.Info(ctx, "callback stream registered")
	defer s.releaseCallback(req.Ifname, cb, log)

	if err := stream.SendHeader(metadata.Pairs(CallbackIDMetadataKey, cb.id)); err != nil {
		return err
	}

	for {
		select {
		case ev := <-cb.events:
			if err := stream.Send(ev); err != nil {
				return err
			}
		case <-cb.done:
			// Flush what was queued before the detach.
			for {
				select {
				case ev := <-cb.events:
					if err := stream.Send(ev); err != nil {
						return err
					}
				default:
					log.Info(ctx, "callback stream detached", logging.Err(cb.reason))
					return ToStatusError(cb.reason)
				}
			}
		case <-ctx.Done():
			log.Info(ctx, "callback stream closed by client")
			return ToStatusError(ctx.Err())
		}
	}
}

// releaseCallback clears the interface slot if the stream still holds it,
// so events stop counting as delivered once the client is gone.
func (s *IfaceService) releaseCallback(ifname string, cb *streamCallback, log logging.Logger) {
	ctx := context.Background()
	err := s.sup.Do(ctx, ifname, func(f *p2p.Iface) error {
		if f.UnregisterCallback(ctx, cb) {
			log.Info(ctx, "callback stream unregistered")
		}
		return nil
	})
	if err != nil {
		log.Debug(ctx, "callback release skipped", logging.Err(err))
	}
}
