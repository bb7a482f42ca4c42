package resource

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestUnifiedTable_Basic(t *testing.T) {
	table := NewTable()

	h, err := table.Insert("pathlib.PosixPath", "test")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok = table.GetTagged(h, "pathlib.PosixPath"); !ok {
		t.Fatal("GetTagged with correct tag failed")
	}
	if _, ok = table.GetTagged(h, "int"); ok {
		t.Fatal("GetTagged with wrong tag should fail")
	}

	val, ok = table.Remove(h)
	if !ok {
		t.Fatal("Remove failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	if _, ok = table.Remove(h); ok {
		t.Fatal("second Remove should fail")
	}

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestUnifiedTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	cancel := table.Subscribe(obs)

	h, _ := table.Insert("int", 1)
	if len(obs.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(obs.events))
	}
	if obs.events[0].Type != EventAcquired {
		t.Fatal("Expected EventAcquired")
	}
	if obs.events[0].Handle != h || obs.events[0].Tag != "int" {
		t.Fatal("Wrong handle or tag in event")
	}

	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(obs.events))
	}
	if obs.events[1].Type != EventReleased {
		t.Fatal("Expected EventReleased")
	}
	if obs.events[1].Tag != "int" {
		t.Fatalf("released event should keep the tag, got %q", obs.events[1].Tag)
	}

	// A failed Remove emits nothing
	table.Remove(h)
	if len(obs.events) != 2 {
		t.Fatal("failed Remove should not notify")
	}

	cancel()
	table.Insert("int", 2)
	if len(obs.events) != 2 {
		t.Fatal("Should not receive events after cancel")
	}
}

func TestUnifiedTable_ObserverFunc(t *testing.T) {
	table := NewTable()
	var acquired, released int
	cancel := table.Subscribe(ObserverFunc(func(e Event) {
		switch e.Type {
		case EventAcquired:
			acquired++
		case EventReleased:
			released++
		}
	}))
	defer cancel()

	h1, _ := table.Insert("a", 1)
	table.Insert("a", 2)
	table.Remove(h1)

	if acquired != 2 || released != 1 {
		t.Fatalf("acquired=%d released=%d, want 2 and 1", acquired, released)
	}
}

func TestUnifiedTable_Counts(t *testing.T) {
	table := NewTable()

	table.Insert("pathlib.PosixPath", 1)
	h, _ := table.Insert("pathlib.PosixPath", 2)
	table.Insert("module", 3)

	counts := table.Counts()
	if counts["pathlib.PosixPath"] != 2 || counts["module"] != 1 {
		t.Fatalf("Counts() = %v", counts)
	}

	table.Remove(h)
	if got := table.Counts()["pathlib.PosixPath"]; got != 1 {
		t.Fatalf("Counts after Remove = %d, want 1", got)
	}
}

func TestUnifiedTable_Clear(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	table.Insert("x", "a")
	table.Insert("x", "b")
	table.Insert("x", "c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
	if len(obs.events) != 6 {
		t.Fatalf("Clear should emit one release per live ref, got %d events", len(obs.events))
	}
}

func TestUnifiedTable_Close(t *testing.T) {
	table := NewTable()

	table.Insert("x", "a")
	table.Insert("x", "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := table.Insert("x", "c"); err != ErrClosed {
		t.Fatalf("Expected ErrClosed after Close, got %v", err)
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestUnifiedTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h, _ := table.Insert("x", d)
	table.Remove(h)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestUnifiedTable_CloseDropsLive(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}
	table.Insert("x", d)

	table.Close()
	if d.count != 1 {
		t.Fatalf("Close should drop live values, Drop called %d times", d.count)
	}
}
