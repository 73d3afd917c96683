package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"wapair/internal/broadcast"
	"wapair/internal/config"
	"wapair/internal/constants"
	"wapair/internal/gateway"
	"wapair/internal/logger"
	"wapair/internal/metrics"
	"wapair/internal/poller"
	"wapair/internal/registry"
	"wapair/internal/types"
)

var (
	// ErrSessionNotFound means a session id has no registry entry where one
	// is expected.
	ErrSessionNotFound = errors.New("session not found")

	errQRNotReady = errors.New("qr code not ready")
)

// Orchestrator coordinates the registry, broadcaster, poller and gateway. It
// holds no state of its own.
type Orchestrator struct {
	cfg     *config.Config
	store   registry.StoreInterface
	gateway gateway.Gateway
	streams *broadcast.Broadcaster
	poller  *poller.Poller
	connlog *logger.ConnectionLog
}

func New(cfg *config.Config, store registry.StoreInterface, gw gateway.Gateway,
	streams *broadcast.Broadcaster, p *poller.Poller, connlog *logger.ConnectionLog) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		gateway: gw,
		streams: streams,
		poller:  p,
		connlog: connlog,
	}
}

// Connect creates a provider instance for sessionID (generated when empty)
// and registers the session. A connect for a session that is already live
// replaces it: the old poller, stream and instance are torn down first.
func (o *Orchestrator) Connect(ctx context.Context, sessionID string) (*types.ConnectResponse, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	if old, ok := o.store.Get(sessionID); ok {
		log.Printf("♻️ Replacing live session: %s (%s)", sessionID, old.InstanceName)
		if o.poller.Active(old.InstanceName) {
			o.poller.Stop(old.InstanceName)
		}
		o.streams.Close(sessionID, nil)
		o.gateway.DeleteInstance(ctx, old.InstanceName)
		o.store.Remove(sessionID)
	}

	instanceName, err := o.gateway.CreateInstance(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	o.store.Put(sessionID, instanceName, constants.StatusCreated)
	metrics.ConnectsTotal.Inc()
	o.connlog.LogEvent(sessionID, instanceName, "connect", "instance created")

	return &types.ConnectResponse{SessionID: sessionID, InstanceName: instanceName}, nil
}

// Attach binds an event stream to the session and kicks off QR delivery. The
// stream gets an INSTANCE_NOT_FOUND error and is closed when the session was
// never registered. The stream's lifetime bounds the work: a transport that
// goes away cancels an in-flight QR retry and stops the instance's poll loop,
// and the session stays registered so the client can attach again.
func (o *Orchestrator) Attach(sessionID string, sink broadcast.Sink) {
	o.streams.Subscribe(sessionID, sink)

	instanceName, ok := o.store.FindInstanceName(sessionID)
	if !ok {
		o.connlog.LogError(sessionID, "", constants.CodeInstanceNotFound, "stream for unknown session")
		o.streams.Close(sessionID, errorEvent(constants.CodeInstanceNotFound, "no instance registered for this session"))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-sink.Done()
		cancel()
		if o.poller.Active(instanceName) {
			o.poller.Stop(instanceName)
		}
	}()

	go o.deliverQR(ctx, sessionID, instanceName)
}

// deliverQR polls the gateway for a QR code on a fixed cadence, bounded by
// the configured attempt count and the stream's lifetime. One code at most is
// published per stream.
func (o *Orchestrator) deliverQR(ctx context.Context, sessionID, instanceName string) {
	attempts := o.cfg.QRMaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var code string
	op := func() error {
		qr, err := o.gateway.GetQRCode(ctx, instanceName)
		if err != nil {
			return err
		}
		if qr == "" {
			return errQRNotReady
		}
		code = qr
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.cfg.QRInterval), uint64(attempts-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		if ctx.Err() != nil {
			log.Printf("📪 QR delivery abandoned, stream gone: %s", sessionID)
			return
		}

		log.Printf("⚠️ No QR code for %s after %d attempts: %v", instanceName, attempts, err)
		metrics.QRTimeoutsTotal.Inc()
		o.connlog.LogError(sessionID, instanceName, constants.CodeQRCodeTimeout, "qr attempts exhausted")

		o.streams.Close(sessionID, errorEvent(constants.CodeQRCodeTimeout, "qr code was not produced in time"))
		o.gateway.DeleteInstance(context.Background(), instanceName)
		o.store.Remove(sessionID)
		return
	}
	if ctx.Err() != nil {
		log.Printf("📪 QR delivery abandoned, stream gone: %s", sessionID)
		return
	}

	o.store.UpdateStatus(instanceName, constants.StatusQRIssued)
	o.connlog.LogStatus(sessionID, instanceName, constants.StatusQRIssued)
	metrics.QRIssuedTotal.Inc()

	o.streams.Publish(sessionID, types.Event{
		Type: constants.EventQRCode,
		Data: types.QRCodePayload{QRCode: code, Timestamp: time.Now()},
	})

	o.poller.Start(instanceName, sessionID, o.onStatusChange(sessionID, instanceName))

	// the stream may have died between the retry finishing and Start; the
	// watcher's Stop could then have run against an empty handle map
	if ctx.Err() != nil && o.poller.Active(instanceName) {
		o.poller.Stop(instanceName)
	}
}

// onStatusChange re-emits poller transitions as status events. Terminal
// states close the stream after a short grace delay so the last event is
// flushed before the transport ends.
func (o *Orchestrator) onStatusChange(sessionID, instanceName string) poller.ChangeFunc {
	return func(state gateway.ConnectionState) {
		o.store.UpdateStatus(instanceName, state.Status)
		o.connlog.LogStatus(sessionID, instanceName, state.Status)
		metrics.StatusChangesTotal.Inc()

		o.streams.Publish(sessionID, types.Event{
			Type: constants.EventStatus,
			Data: types.StatusPayload{
				Connected:    state.Connected,
				Status:       state.Status,
				InstanceName: instanceName,
				Timestamp:    time.Now(),
			},
		})

		terminal := state.Connected ||
			state.Status == constants.StatusTimeout ||
			state.Status == constants.StatusError
		if !terminal {
			return
		}

		if state.Status == constants.StatusTimeout {
			metrics.PollTimeoutsTotal.Inc()
		}

		time.AfterFunc(o.cfg.CloseGrace, func() {
			o.streams.Close(sessionID, nil)
		})

		// connected sessions stay registered so message sends can find
		// them; dead ones release their provider slot
		if !state.Connected {
			o.gateway.DeleteInstance(context.Background(), instanceName)
			o.store.Remove(sessionID)
		}
	}
}

// Status answers a point-in-time query with a live provider check, folding
// the answer back into the registry.
func (o *Orchestrator) Status(ctx context.Context, sessionID string) (*types.StatusResponse, error) {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}

	state, err := o.gateway.CheckStatus(ctx, sess.InstanceName)
	if err != nil {
		state = gateway.ConnectionState{Connected: false, Status: constants.StatusError}
	}
	if state.Status != sess.Status {
		o.store.UpdateStatus(sess.InstanceName, state.Status)
	}

	return &types.StatusResponse{
		Connected:    state.Connected,
		Status:       state.Status,
		InstanceName: sess.InstanceName,
	}, nil
}

// Disconnect tears the session down. Provider deletion is best-effort; the
// call succeeds for the caller regardless.
func (o *Orchestrator) Disconnect(ctx context.Context, sessionID string) error {
	sess, ok := o.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	if o.poller.Active(sess.InstanceName) {
		o.poller.Stop(sess.InstanceName)
	}
	o.streams.Close(sessionID, nil)
	o.gateway.DeleteInstance(ctx, sess.InstanceName)
	o.store.Remove(sessionID)
	o.connlog.LogEvent(sessionID, sess.InstanceName, "disconnect", "session torn down")

	log.Printf("👋 Session disconnected: %s", sessionID)
	return nil
}

// SendMessage routes a text through the first connected instance.
func (o *Orchestrator) SendMessage(ctx context.Context, phone, text string) error {
	var target string
	for _, sess := range o.store.List() {
		if sess.Status == constants.StatusOpen {
			target = sess.InstanceName
			break
		}
	}
	if target == "" {
		return gateway.ErrNoConnectedInstance
	}

	if err := o.gateway.SendMessage(ctx, target, phone, text); err != nil {
		return err
	}
	metrics.MessagesSentTotal.Inc()
	return nil
}

// Shutdown stops every poll loop and closes every open stream.
func (o *Orchestrator) Shutdown() {
	o.poller.StopAll()
	o.streams.CloseAll(nil)
}

func errorEvent(code, message string) *types.Event {
	return &types.Event{
		Type: constants.EventError,
		Data: types.ErrorPayload{Code: code, Message: message, Timestamp: time.Now()},
	}
}
