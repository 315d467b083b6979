package broker

import "errors"

// ConnID is the server-assigned identifier distinguishing one transport from
// all others for the process lifetime.
type ConnID string

var ErrIDInUse = errors.New("connection id already registered")

// CameraRecord is one registered camera source and the set of viewers
// currently watching it.
type CameraRecord struct {
	ID      ConnID
	Name    string
	OwnerID string
	viewers map[ConnID]struct{}
	conn    *Conn
}

func (r *CameraRecord) ViewerCount() int { return len(r.viewers) }

// Watchers returns the ids of the viewers attached to this camera.
func (r *CameraRecord) Watchers() []ConnID {
	ids := make([]ConnID, 0, len(r.viewers))
	for id := range r.viewers {
		ids = append(ids, id)
	}
	return ids
}

// ViewerRecord is one registered viewer sink and the camera it is watching,
// if any.
type ViewerRecord struct {
	ID       ConnID
	OwnerID  string
	Watching ConnID // empty when not watching
	conn     *Conn
}

// Registry holds the two role-partitioned tables. The camera and viewer key
// spaces are disjoint: an id registered in one table cannot be added to the
// other. The registry keeps the viewer<->camera back-references consistent on
// every mutation; callers never repair one side on its own. Not safe for
// concurrent use — the broker's lock covers it.
type Registry struct {
	cameras map[ConnID]*CameraRecord
	viewers map[ConnID]*ViewerRecord
	order   []ConnID // camera insertion order, drives camera-list ordering
}

func NewRegistry() *Registry {
	return &Registry{
		cameras: make(map[ConnID]*CameraRecord),
		viewers: make(map[ConnID]*ViewerRecord),
	}
}

func (r *Registry) AddCamera(id ConnID, name, ownerID string, conn *Conn) (*CameraRecord, error) {
	if _, ok := r.cameras[id]; ok {
		return nil, ErrIDInUse
	}
	if _, ok := r.viewers[id]; ok {
		return nil, ErrIDInUse
	}
	rec := &CameraRecord{
		ID:      id,
		Name:    name,
		OwnerID: ownerID,
		viewers: make(map[ConnID]struct{}),
		conn:    conn,
	}
	r.cameras[id] = rec
	r.order = append(r.order, id)
	return rec, nil
}

func (r *Registry) AddViewer(id ConnID, ownerID string, conn *Conn) (*ViewerRecord, error) {
	if _, ok := r.viewers[id]; ok {
		return nil, ErrIDInUse
	}
	if _, ok := r.cameras[id]; ok {
		return nil, ErrIDInUse
	}
	rec := &ViewerRecord{ID: id, OwnerID: ownerID, conn: conn}
	r.viewers[id] = rec
	return rec, nil
}

func (r *Registry) Camera(id ConnID) *CameraRecord { return r.cameras[id] }
func (r *Registry) Viewer(id ConnID) *ViewerRecord { return r.viewers[id] }

func (r *Registry) CameraCount() int { return len(r.cameras) }
func (r *Registry) ViewerCount() int { return len(r.viewers) }

// Watch attaches viewer to camera, detaching it from any camera it was
// previously watching. Both sides of the association change together.
// Returns false if either record is missing.
func (r *Registry) Watch(viewerID, cameraID ConnID) bool {
	viewer, ok := r.viewers[viewerID]
	if !ok {
		return false
	}
	camera, ok := r.cameras[cameraID]
	if !ok {
		return false
	}
	if viewer.Watching != "" && viewer.Watching != cameraID {
		if prev, ok := r.cameras[viewer.Watching]; ok {
			delete(prev.viewers, viewerID)
		}
	}
	viewer.Watching = cameraID
	camera.viewers[viewerID] = struct{}{}
	return true
}

// RemoveCamera deletes the camera and clears the back-reference of every
// viewer that was watching it. Returns nil if the id is not a camera.
func (r *Registry) RemoveCamera(id ConnID) *CameraRecord {
	rec, ok := r.cameras[id]
	if !ok {
		return nil
	}
	for vid := range rec.viewers {
		if viewer, ok := r.viewers[vid]; ok && viewer.Watching == id {
			viewer.Watching = ""
		}
	}
	delete(r.cameras, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec
}

// RemoveViewer deletes the viewer and detaches it from the camera it was
// watching, if that camera still exists. Returns nil if the id is not a
// viewer.
func (r *Registry) RemoveViewer(id ConnID) *ViewerRecord {
	rec, ok := r.viewers[id]
	if !ok {
		return nil
	}
	if rec.Watching != "" {
		if camera, ok := r.cameras[rec.Watching]; ok {
			delete(camera.viewers, id)
		}
	}
	delete(r.viewers, id)
	return rec
}

// CameraList snapshots all cameras in insertion order.
func (r *Registry) CameraList() []CameraInfo {
	list := make([]CameraInfo, 0, len(r.order))
	for _, id := range r.order {
		rec := r.cameras[id]
		list = append(list, CameraInfo{ID: rec.ID, Name: rec.Name, Viewers: rec.ViewerCount()})
	}
	return list
}

func (r *Registry) eachViewer(fn func(*ViewerRecord)) {
	for _, rec := range r.viewers {
		fn(rec)
	}
}
