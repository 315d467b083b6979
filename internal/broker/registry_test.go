package broker

import "testing"

func TestRegistry_DisjointKeySpaces(t *testing.T) {
	r := NewRegistry()
	if _, err := r.AddCamera("c1", "Front", "u1", nil); err != nil {
		t.Fatal(err)
	}

	if _, err := r.AddViewer("c1", "u2", nil); err != ErrIDInUse {
		t.Errorf("Expected ErrIDInUse adding viewer with camera id, got %v", err)
	}
	if _, err := r.AddCamera("c1", "Dup", "u3", nil); err != ErrIDInUse {
		t.Errorf("Expected ErrIDInUse adding duplicate camera, got %v", err)
	}
}

func TestRegistry_WatchKeepsBothSidesConsistent(t *testing.T) {
	r := NewRegistry()
	cam1, _ := r.AddCamera("c1", "Front", "u1", nil)
	cam2, _ := r.AddCamera("c2", "Back", "u1", nil)
	viewer, _ := r.AddViewer("v1", "u2", nil)

	if !r.Watch("v1", "c1") {
		t.Fatal("Watch failed")
	}
	if viewer.Watching != "c1" || cam1.ViewerCount() != 1 {
		t.Error("Association not set on both sides")
	}

	// Switching cameras detaches from the previous one.
	if !r.Watch("v1", "c2") {
		t.Fatal("Watch failed")
	}
	if cam1.ViewerCount() != 0 {
		t.Error("Previous camera must lose the viewer")
	}
	if viewer.Watching != "c2" || cam2.ViewerCount() != 1 {
		t.Error("New association not set on both sides")
	}
}

func TestRegistry_WatchMissingRecords(t *testing.T) {
	r := NewRegistry()
	r.AddCamera("c1", "Front", "u1", nil)
	r.AddViewer("v1", "u2", nil)

	if r.Watch("v1", "ghost-camera") {
		t.Error("Watch must fail for missing camera")
	}
	if r.Watch("ghost-viewer", "c1") {
		t.Error("Watch must fail for missing viewer")
	}
}

func TestRegistry_RemoveCameraClearsBackReferences(t *testing.T) {
	r := NewRegistry()
	r.AddCamera("c1", "Front", "u1", nil)
	viewer, _ := r.AddViewer("v1", "u2", nil)
	r.Watch("v1", "c1")

	rec := r.RemoveCamera("c1")
	if rec == nil || len(rec.Watchers()) != 1 {
		t.Fatalf("Removed record must retain its watcher set, got %v", rec)
	}
	if viewer.Watching != "" {
		t.Error("Viewer back-reference must be cleared with the camera")
	}
	if r.RemoveCamera("c1") != nil {
		t.Error("Second removal must return nil")
	}
}

func TestRegistry_RemoveViewerDetaches(t *testing.T) {
	r := NewRegistry()
	cam, _ := r.AddCamera("c1", "Front", "u1", nil)
	r.AddViewer("v1", "u2", nil)
	r.Watch("v1", "c1")

	if r.RemoveViewer("v1") == nil {
		t.Fatal("Expected viewer record")
	}
	if cam.ViewerCount() != 0 {
		t.Error("Camera must lose the removed viewer")
	}
	if r.RemoveViewer("v1") != nil {
		t.Error("Second removal must return nil")
	}
}

func TestRegistry_CameraListInsertionOrder(t *testing.T) {
	r := NewRegistry()
	r.AddCamera("c1", "First", "u1", nil)
	r.AddCamera("c2", "Second", "u1", nil)
	r.AddCamera("c3", "Third", "u1", nil)
	r.RemoveCamera("c2")
	r.AddCamera("c4", "Fourth", "u1", nil)

	list := r.CameraList()
	want := []string{"First", "Third", "Fourth"}
	if len(list) != len(want) {
		t.Fatalf("Expected %d cameras, got %d", len(want), len(list))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, list[i].Name)
		}
	}
}
