package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/seandooa/cg4002-capstone-code/internal/feedback"
	"github.com/seandooa/cg4002-capstone-code/internal/metrics"
	"github.com/seandooa/cg4002-capstone-code/internal/protocol"
	"github.com/seandooa/cg4002-capstone-code/internal/registry"
)

const maxFrame = 64 << 10

// Handler accepts device websockets and dispatches their messages.
type Handler struct {
	reg        *registry.Registry
	gen        *feedback.Generator
	sendBuffer int
	log        *slog.Logger
	now        func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(reg *registry.Registry, gen *feedback.Generator, sendBuffer int, log *slog.Logger) *Handler {
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	return &Handler{
		reg:        reg,
		gen:        gen,
		sendBuffer: sendBuffer,
		log:        log,
		now:        time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Devices load their UI from arbitrary hosts.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("websocket accept failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(maxFrame)

	c := newConn(ws, r.RemoteAddr, h.sendBuffer, h.log)
	h.serve(r.Context(), c)
}

func (h *Handler) serve(ctx context.Context, c *Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.reg.Attach(c)
	h.updateGauges()
	c.log.Info("connection opened")

	go c.writeLoop(ctx)

	defer func() {
		c.close()
		deviceID, removed := h.reg.Unregister(c)
		h.updateGauges()
		if removed {
			c.log.Info("device disconnected", "device_id", deviceID)
		} else {
			c.log.Info("connection closed", "device_id", deviceID)
		}
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			c.log.Debug("ignoring binary frame", "size", len(data))
			continue
		}
		h.dispatch(c, data)
	}
}

func (h *Handler) dispatch(c *Conn, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		metrics.InboundMessages.WithLabelValues("invalid").Inc()
		c.log.Warn("dropping undecodable message", "error", err)
		return
	}

	switch env.Type {
	case protocol.TypeDeviceRegister:
		h.onRegister(c, env)
	case protocol.TypeBiometricData:
		h.onBiometric(c, env)
	case protocol.TypePoseData:
		h.onPose(c, env)
	case protocol.TypeRepDetection:
		h.onRep(c, env)
	default:
		metrics.InboundMessages.WithLabelValues("unknown").Inc()
		c.log.Debug("unknown message type", "type", env.Type)
		return
	}
	metrics.InboundMessages.WithLabelValues(env.Type).Inc()
}

func (h *Handler) onRegister(c *Conn, env *protocol.Envelope) {
	data, err := env.Register()
	if err != nil {
		c.log.Warn("bad register payload", "error", err)
		return
	}
	reg, err := h.reg.Register(c, env.DeviceID, data.ExerciseType)
	if err != nil {
		c.log.Warn("register rejected", "error", err)
		return
	}
	h.updateGauges()

	if reg.Kind == registry.Replace {
		prev := ""
		if reg.Previous != nil {
			prev = reg.Previous.ID()
		}
		c.log.Info("device re-registered", "device_id", env.DeviceID, "index", reg.Index, "previous_conn", prev)
	} else {
		c.log.Info("device registered", "device_id", env.DeviceID, "index", reg.Index, "exercise", data.ExerciseType)
	}
	h.reply(c, feedback.Welcome(data.ExerciseType))
}

func (h *Handler) onBiometric(c *Conn, env *protocol.Envelope) {
	data, err := env.Biometric()
	if err != nil {
		c.log.Warn("bad biometric payload", "error", err)
		return
	}
	if id, ok := h.deviceID(c, env); ok {
		h.reg.RecordReps(id, data.RepCount, h.now())
	}
	if fb, ok := feedback.ForBiometrics(data.ExerciseType, data.HeartRate, data.RepCount); ok {
		h.reply(c, fb)
	}
}

func (h *Handler) onPose(c *Conn, env *protocol.Envelope) {
	data, err := env.Pose()
	if err != nil {
		c.log.Warn("bad pose payload", "error", err)
		return
	}
	h.reply(c, h.gen.Random(data.ExerciseType))
}

func (h *Handler) onRep(c *Conn, env *protocol.Envelope) {
	data, err := env.Rep()
	if err != nil {
		c.log.Warn("bad rep payload", "error", err)
		return
	}
	c.log.Debug("rep detected", "reps", data.RepCount, "exercise", data.ExerciseType)
	if id, ok := h.deviceID(c, env); ok {
		h.reg.RecordReps(id, data.RepCount, h.now())
	}
	if fb, ok := feedback.ForRepDetection(data.ExerciseType, data.RepCount); ok {
		h.reply(c, fb)
	}
}

// deviceID prefers the connection's binding over the id claimed in the frame.
func (h *Handler) deviceID(c *Conn, env *protocol.Envelope) (string, bool) {
	if id, ok := h.reg.DeviceFor(c); ok {
		return id, true
	}
	if env.DeviceID == "" {
		return "", false
	}
	if bound, ok := h.reg.ConnectionFor(env.DeviceID); ok && bound == registry.Conn(c) {
		return env.DeviceID, true
	}
	return "", false
}

func (h *Handler) reply(c *Conn, fb protocol.Feedback) {
	msg := protocol.NewFeedback(fb)
	err := c.Send(msg)
	metrics.Sent(msg.Type, err)
	if err != nil {
		c.log.Warn("reply dropped", "error", err)
	}
}

func (h *Handler) updateGauges() {
	conns, devices := h.reg.Counts()
	metrics.OpenConnections.Set(float64(conns))
	metrics.ConnectedDevices.Set(float64(devices))
}
