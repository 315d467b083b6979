package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/ts-signal/internal/metrics"
	"github.com/technosupport/ts-signal/internal/session"
)

// DefaultAuthDeadline is how long a fresh connection has to authenticate
// before it is closed.
const DefaultAuthDeadline = 10 * time.Second

// TokenValidator resolves bearer tokens to sessions. Implemented by
// session.MemoryStore and session.RedisStore.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*session.Session, bool)
}

// MotionEvent is what gets handed to the external alert publisher for every
// accepted motion-detected message.
type MotionEvent struct {
	CameraID   string    `json:"camera_id"`
	CameraName string    `json:"camera_name"`
	OwnerID    string    `json:"owner_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MotionPublisher forwards motion events to external consumers. Publishing is
// best-effort and never gates the viewer fan-out.
type MotionPublisher interface {
	Publish(event MotionEvent)
}

// Config carries the broker's tunables and optional collaborators.
type Config struct {
	AuthDeadline time.Duration       // zero means DefaultAuthDeadline
	Metrics      *metrics.Collector  // nil disables instrumentation
	Alerts       MotionPublisher     // nil disables external motion publishing
}

// Broker owns the two registry tables and every connection's state machine.
// One mutex serializes registration, relay-target lookup, fan-out and
// cleanup, so each observes a consistent snapshot. Per-connection message
// order is preserved by the caller's read loop; the lock only interleaves
// distinct connections.
type Broker struct {
	sessions     TokenValidator
	authDeadline time.Duration
	collector    *metrics.Collector
	alerts       MotionPublisher
	now          func() time.Time

	mu       sync.Mutex
	registry *Registry
}

func New(sessions TokenValidator, cfg Config) *Broker {
	deadline := cfg.AuthDeadline
	if deadline == 0 {
		deadline = DefaultAuthDeadline
	}
	return &Broker{
		sessions:     sessions,
		authDeadline: deadline,
		collector:    cfg.Metrics,
		alerts:       cfg.Alerts,
		now:          time.Now,
		registry:     NewRegistry(),
	}
}

// Connect admits a new transport: assigns a connection id and arms the
// authentication deadline. The caller owns the read loop and must call
// Disconnect when the transport closes.
func (b *Broker) Connect(tr Transport) *Conn {
	c := &Conn{
		id:    ConnID(uuid.NewString()),
		tr:    tr,
		state: stateUnauthenticated,
	}

	b.mu.Lock()
	c.authTimer = time.AfterFunc(b.authDeadline, func() { b.authExpired(c) })
	b.mu.Unlock()

	if b.collector != nil {
		b.collector.ConnOpened()
	}
	log.Printf("Broker: new connection %s", c.id)
	return c
}

func (b *Broker) authExpired(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.state != stateUnauthenticated {
		return
	}
	c.send(errorf("authentication timeout"))
	c.tr.Close()
}

// HandleMessage processes one inbound frame for c. Malformed JSON yields an
// error reply and leaves the connection open.
func (b *Broker) HandleMessage(c *Conn, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		b.mu.Lock()
		c.send(errorf("invalid message"))
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if c.state == stateClosed {
		return
	}

	// Gate: everything except authenticate requires an authenticated state.
	if c.state == stateUnauthenticated && msg.Type != MsgAuthenticate {
		c.send(errorf("must authenticate first"))
		return
	}

	switch msg.Type {
	case MsgAuthenticate:
		b.handleAuthenticate(c, msg.Token)
	case MsgRegisterCamera:
		b.handleRegisterCamera(c, msg.Name)
	case MsgRegisterViewer:
		b.handleRegisterViewer(c)
	case MsgRequestCamera:
		b.handleRequestCamera(c, ConnID(msg.CameraID))
	case MsgMotionDetected:
		b.handleMotionDetected(c)
	case MsgOffer, MsgAnswer, MsgIceCandidate:
		b.relay(c, msg.Type, ConnID(msg.Target), raw)
	default:
		// Unknown post-auth types are ignored, matching the relay contract
		// of not surfacing errors for traffic we don't route.
		log.Printf("Broker: %s sent unknown message type %q", c.id, msg.Type)
	}
}

func (b *Broker) handleAuthenticate(c *Conn, token string) {
	if c.state != stateUnauthenticated {
		return
	}
	c.authTimer.Stop()

	sess, ok := b.sessions.Validate(context.Background(), token)
	if !ok {
		if b.collector != nil {
			b.collector.AuthFailure()
		}
		c.send(authFailedMsg{Type: MsgAuthFailed, Message: "invalid or expired token"})
		c.tr.Close()
		return
	}

	c.state = stateAuthenticated
	c.sess = sess
	c.send(authenticatedMsg{Type: MsgAuthenticated, UserID: sess.UserID, Role: string(sess.Role)})
	log.Printf("Broker: %s authenticated as %s (%s)", c.id, sess.UserID, sess.Role)
}

func (b *Broker) handleRegisterCamera(c *Conn, name string) {
	if c.state == stateRegistered {
		return // idempotent; re-registration under another role is unsupported
	}
	if c.sess.Role != session.RoleCamera {
		c.send(errorf("not authorized to stream"))
		return
	}

	if name == "" {
		name = fmt.Sprintf("Camera %d", b.registry.CameraCount()+1)
	}
	if _, err := b.registry.AddCamera(c.id, name, c.sess.UserID, c); err != nil {
		log.Printf("Broker: register-camera for %s: %v", c.id, err)
		return
	}
	c.state = stateRegistered
	c.role = session.RoleCamera

	c.send(registeredMsg{Type: MsgRegistered, ID: c.id, Role: string(session.RoleCamera)})
	b.broadcastCameraList()
	b.updateGauges()
	log.Printf("Broker: camera %q registered (%s)", name, c.sess.UserID)
}

func (b *Broker) handleRegisterViewer(c *Conn) {
	if c.state == stateRegistered {
		return
	}
	if c.sess.Role != session.RoleViewer {
		c.send(errorf("not authorized to view"))
		return
	}

	if _, err := b.registry.AddViewer(c.id, c.sess.UserID, c); err != nil {
		log.Printf("Broker: register-viewer for %s: %v", c.id, err)
		return
	}
	c.state = stateRegistered
	c.role = session.RoleViewer

	c.send(registeredMsg{Type: MsgRegistered, ID: c.id, Role: string(session.RoleViewer)})
	// A fresh viewer gets the list directly; broadcasts only happen on
	// camera table changes.
	c.send(cameraListMsg{Type: MsgCameraList, Cameras: b.registry.CameraList()})
	b.updateGauges()
	log.Printf("Broker: viewer registered (%s)", c.sess.UserID)
}

func (b *Broker) handleRequestCamera(c *Conn, cameraID ConnID) {
	camera := b.registry.Camera(cameraID)
	if camera == nil {
		return // silent drop: the camera may have disconnected mid-flow
	}
	if b.registry.Viewer(c.id) == nil {
		return // sender is not a registered viewer
	}
	b.registry.Watch(c.id, cameraID)
	camera.conn.send(viewerJoinedMsg{Type: MsgViewerJoined, ViewerID: c.id})
}

func (b *Broker) handleMotionDetected(c *Conn) {
	if c.sess.Role != session.RoleCamera {
		return
	}
	camera := b.registry.Camera(c.id)
	if camera == nil {
		return
	}

	occurred := b.now().UTC()
	alert := motionAlertMsg{
		Type:       MsgMotionAlert,
		CameraID:   camera.ID,
		CameraName: camera.Name,
		Timestamp:  occurred.Format(time.RFC3339),
	}

	// Global alert policy: every registered viewer gets it, not only the
	// camera's active watchers.
	delivered := 0
	b.registry.eachViewer(func(v *ViewerRecord) {
		v.conn.send(alert)
		delivered++
	})
	if b.collector != nil {
		b.collector.MotionAlerts(delivered)
	}
	log.Printf("Broker: motion on %q fanned out to %d viewers", camera.Name, delivered)

	if b.alerts != nil {
		event := MotionEvent{
			CameraID:   string(camera.ID),
			CameraName: camera.Name,
			OwnerID:    camera.OwnerID,
			OccurredAt: occurred,
		}
		// Publishing can retry with backoff; keep it off the broker lock.
		go b.alerts.Publish(event)
	}
}

// relay forwards the sender's original frame to the named target with only
// the from field rewritten to the sender's id, so origin cannot be spoofed.
// Unresolved targets are dropped without an error reply.
func (b *Broker) relay(c *Conn, msgType string, target ConnID, raw []byte) {
	var tc *Conn
	if camera := b.registry.Camera(target); camera != nil {
		tc = camera.conn
	} else if viewer := b.registry.Viewer(target); viewer != nil {
		tc = viewer.conn
	} else {
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	payload["from"] = string(c.id)
	tc.send(payload)

	if b.collector != nil {
		b.collector.Relayed(msgType)
	}
}

// Disconnect tears down a closed transport's registry state. Safe to call
// more than once for the same connection.
func (b *Broker) Disconnect(c *Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.state == stateClosed {
		return
	}
	prior := c.state
	c.state = stateClosed
	if c.authTimer != nil {
		c.authTimer.Stop()
	}

	if camera := b.registry.RemoveCamera(c.id); camera != nil {
		for vid := range camera.viewers {
			if viewer := b.registry.Viewer(vid); viewer != nil {
				viewer.conn.send(cameraDisconnectedMsg{Type: MsgCameraDisconnected, CameraID: camera.ID})
			}
		}
		b.broadcastCameraList()
		log.Printf("Broker: camera %s disconnected", c.id)
	} else if viewer := b.registry.RemoveViewer(c.id); viewer != nil {
		log.Printf("Broker: viewer %s disconnected", c.id)
	} else if prior != stateRegistered {
		log.Printf("Broker: connection %s closed before registration", c.id)
	}

	b.updateGauges()
	if b.collector != nil {
		b.collector.ConnClosed()
	}
}

func (b *Broker) broadcastCameraList() {
	msg := cameraListMsg{Type: MsgCameraList, Cameras: b.registry.CameraList()}
	b.registry.eachViewer(func(v *ViewerRecord) {
		v.conn.send(msg)
	})
}

func (b *Broker) updateGauges() {
	if b.collector == nil {
		return
	}
	b.collector.SetCameras(b.registry.CameraCount())
	b.collector.SetViewers(b.registry.ViewerCount())
}

// Counts reports the current registry sizes, for the health endpoint.
func (b *Broker) Counts() (cameras, viewers int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.CameraCount(), b.registry.ViewerCount()
}
