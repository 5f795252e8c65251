package relay

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

// route dispatches one inbound envelope to the owning business package.
// Malformed payloads are logged and dropped; they never terminate the
// connection. Unknown events are counted and ignored.
func (h *Hub) route(ctx context.Context, c *Client, env protocol.Envelope) {
	timer := prometheus.NewTimer(metrics.EventRoutingDuration.WithLabelValues(string(env.Event)))
	defer timer.ObserveDuration()

	var err error
	switch env.Event {
	case protocol.EventJoin:
		err = dispatch(env, func(req protocol.JoinRequest) { h.handleJoin(c, req) })

	case protocol.EventChatSend:
		err = dispatch(env, func(req protocol.ChatSendRequest) { h.chat.Send(c.id, req) })
	case protocol.EventChatTyping:
		err = dispatch(env, func(req protocol.TypingRequest) { h.chat.Typing(c.id, req) })

	case protocol.EventCallInitiate:
		err = dispatch(env, func(req protocol.CallInitiateRequest) { h.calls.Initiate(c.id, req) })
	case protocol.EventCallAccept:
		err = dispatch(env, func(req protocol.CallAnswerRequest) { h.calls.Accept(c.id, req) })
	case protocol.EventCallReject:
		err = dispatch(env, func(req protocol.CallAnswerRequest) { h.calls.Reject(c.id, req) })
	case protocol.EventCallEnd:
		err = dispatch(env, func(req protocol.CallEndRequest) { h.calls.End(c.id, req) })

	case protocol.EventNegotiateOffer:
		err = dispatch(env, func(req protocol.NegotiationRequest) { h.negotiate.Offer(c.id, req) })
	case protocol.EventNegotiateAnswer:
		err = dispatch(env, func(req protocol.NegotiationRequest) { h.negotiate.Answer(c.id, req) })
	case protocol.EventNegotiateCandidate:
		err = dispatch(env, func(req protocol.CandidateRequest) { h.negotiate.Candidate(c.id, req) })

	case protocol.EventMediaToggleVideo:
		err = dispatch(env, func(req protocol.MediaToggleRequest) { h.negotiate.ToggleVideo(c.id, req) })
	case protocol.EventMediaToggleAudio:
		err = dispatch(env, func(req protocol.MediaToggleRequest) { h.negotiate.ToggleAudio(c.id, req) })

	case protocol.EventScreenStart:
		err = dispatch(env, func(req protocol.ScreenShareRequest) { h.negotiate.ScreenStart(c.id, req) })
	case protocol.EventScreenStop:
		err = dispatch(env, func(req protocol.ScreenShareRequest) { h.negotiate.ScreenStop(c.id, req) })

	default:
		metrics.RelayEvents.WithLabelValues(string(env.Event), "unknown").Inc()
		logging.Warn(ctx, "Unknown event", zap.String("event", string(env.Event)))
		return
	}

	if err != nil {
		metrics.RelayEvents.WithLabelValues(string(env.Event), "decode_error").Inc()
		logging.Warn(ctx, "Malformed payload", zap.String("event", string(env.Event)), zap.Error(err))
		return
	}
	metrics.RelayEvents.WithLabelValues(string(env.Event), "ok").Inc()
}

// dispatch decodes the payload and invokes the handler on success.
func dispatch[T any](env protocol.Envelope, handle func(T)) error {
	req, err := protocol.DecodePayload[T](env)
	if err != nil {
		return err
	}
	handle(req)
	return nil
}
