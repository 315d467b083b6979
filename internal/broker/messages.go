package broker

// Inbound message types (client -> broker).
const (
	MsgAuthenticate   = "authenticate"
	MsgRegisterCamera = "register-camera"
	MsgRegisterViewer = "register-viewer"
	MsgRequestCamera  = "request-camera"
	MsgMotionDetected = "motion-detected"
	MsgOffer          = "offer"
	MsgAnswer         = "answer"
	MsgIceCandidate   = "ice-candidate"
)

// Outbound message types (broker -> client).
const (
	MsgAuthenticated      = "authenticated"
	MsgAuthFailed         = "auth-failed"
	MsgRegistered         = "registered"
	MsgCameraList         = "camera-list"
	MsgViewerJoined       = "viewer-joined"
	MsgCameraDisconnected = "camera-disconnected"
	MsgMotionAlert        = "motion-alert"
	MsgError              = "error"
)

// inbound is the control envelope every frame is decoded into. Relay frames
// (offer/answer/ice-candidate) are additionally kept raw so their payloads
// pass through verbatim.
type inbound struct {
	Type     string `json:"type"`
	Token    string `json:"token"`
	Name     string `json:"name"`
	CameraID string `json:"cameraId"`
	Target   string `json:"target"`
}

type authenticatedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type authFailedMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type registeredMsg struct {
	Type string `json:"type"`
	ID   ConnID `json:"id"`
	Role string `json:"role"`
}

// CameraInfo is one entry of the camera list pushed to viewers.
type CameraInfo struct {
	ID      ConnID `json:"id"`
	Name    string `json:"name"`
	Viewers int    `json:"viewers"`
}

type cameraListMsg struct {
	Type    string       `json:"type"`
	Cameras []CameraInfo `json:"cameras"`
}

type viewerJoinedMsg struct {
	Type     string `json:"type"`
	ViewerID ConnID `json:"viewerId"`
}

type cameraDisconnectedMsg struct {
	Type     string `json:"type"`
	CameraID ConnID `json:"cameraId"`
}

type motionAlertMsg struct {
	Type       string `json:"type"`
	CameraID   ConnID `json:"cameraId"`
	CameraName string `json:"cameraName"`
	Timestamp  string `json:"timestamp"`
}

func errorf(message string) errorMsg {
	return errorMsg{Type: MsgError, Message: message}
}
